package oxidb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb/oxidbtest"
)

func getClient(t *testing.T) (*oxidb.Client, *oxidbtest.Server) {
	t.Helper()
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	c, err := oxidb.Connect(context.Background(), srv.Addr(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, srv
}

func TestPing(t *testing.T) {
	c, _ := getClient(t)
	pong, err := c.Ping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pong", pong)
}

func TestInsertFindUpdate(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a", "c"} {
		res, err := c.Insert(ctx, "people", map[string]any{"name": name, "group": "x"})
		require.NoError(t, err)
		assert.Contains(t, res, "id")
	}

	limit := 2
	docs, err := c.Find(ctx, "people", map[string]any{"group": "x"}, &oxidb.FindOptions{
		Sort:  map[string]any{"name": 1},
		Limit: &limit,
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0]["name"])
	assert.Equal(t, "b", docs[1]["name"])

	_, err = c.UpdateOne(ctx, "people", map[string]any{"name": "c"}, map[string]any{"$set": map[string]any{"group": "y"}})
	require.NoError(t, err)

	n, err := c.Count(ctx, "people", map[string]any{"group": "y"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	doc, err := c.FindOne(ctx, "people", map[string]any{"name": "missing"})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestUniqueIndex(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateUniqueIndex(ctx, "keys", "k"))
	_, err := c.Insert(ctx, "keys", map[string]any{"k": "one"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, "keys", map[string]any{"k": "one"})

	var serverErr *oxidb.Error
	require.ErrorAs(t, err, &serverErr)
	assert.Contains(t, serverErr.Msg, "duplicate")
}

func TestWithTransactionRollsBack(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := c.WithTransaction(ctx, func() error {
		if _, err := c.Insert(ctx, "tx", map[string]any{"n": 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, srv.Docs("tx"))

	err = c.WithTransaction(ctx, func() error {
		_, err := c.Insert(ctx, "tx", map[string]any{"n": 2})
		return err
	})
	require.NoError(t, err)
	assert.Len(t, srv.Docs("tx"), 1)
}

func TestCommitConflict(t *testing.T) {
	c, srv := getClient(t)
	ctx := context.Background()

	srv.FailNext("commit_tx", "write conflict on tx")
	err := c.WithTransaction(ctx, func() error { return nil })

	var conflict *oxidb.TransactionConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestBlobRoundTrip(t *testing.T) {
	c, _ := getClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateBucket(ctx, "files"))
	_, err := c.PutObject(ctx, "files", "k1", []byte("hello"), "text/plain", map[string]string{"name": "greeting"})
	require.NoError(t, err)

	data, meta, err := c.GetObject(ctx, "files", "k1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, "greeting", meta["name"])

	_, _, err = c.GetObject(ctx, "files", "missing")
	require.Error(t, err)
}

func TestBrokenAfterServerGone(t *testing.T) {
	c, srv := getClient(t)
	srv.Close()

	_, err := c.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, c.Broken())

	_, err = c.Ping(context.Background())
	assert.ErrorIs(t, err, oxidb.ErrBroken)
}

func TestCanceledContext(t *testing.T) {
	c, _ := getClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Broken())
}
