package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb/oxidbtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPoolRoundRobin(t *testing.T) {
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	defer srv.Close()

	p, err := NewPool(context.Background(), srv.Addr(), 3, logging.Nop())
	require.NoError(t, err)
	defer p.Close()

	seen := map[*oxidb.Client]bool{}
	for i := 0; i < 6; i++ {
		require.NoError(t, p.Do(context.Background(), func(c *oxidb.Client) error {
			seen[c] = true
			return nil
		}))
	}
	assert.Len(t, seen, 3)
	assert.NoError(t, p.Ping(context.Background()))
}

func TestPoolReplacesBrokenClient(t *testing.T) {
	srv, err := oxidbtest.Start()
	require.NoError(t, err)
	defer srv.Close()

	p, err := NewPool(context.Background(), srv.Addr(), 1, logging.Nop())
	require.NoError(t, err)
	defer p.Close()

	var first *oxidb.Client
	require.NoError(t, p.Do(context.Background(), func(c *oxidb.Client) error {
		first = c
		return nil
	}))
	first.Close()
	_, err = first.Ping(context.Background())
	require.Error(t, err)
	require.True(t, first.Broken())

	require.NoError(t, p.Ping(context.Background()))
	require.NoError(t, p.Do(context.Background(), func(c *oxidb.Client) error {
		assert.NotSame(t, first, c)
		return nil
	}))
}

func TestNewPoolUnreachable(t *testing.T) {
	_, err := NewPool(context.Background(), "127.0.0.1:1", 2, logging.Nop())
	assert.Error(t, err)
}
