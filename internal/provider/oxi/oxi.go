// Package oxi stores lead rows and workspace files in OxiDB: rows as
// documents in one collection, files as metadata documents plus blob
// objects in one bucket.
package oxi

import (
	"context"
	"errors"
	"strings"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
)

const (
	rowsCollection  = "_leads_rows"
	filesCollection = "_leads_files"
	DefaultBucket   = "leads"
)

// Pool hands out exclusive connections. *db.Pool implements it.
type Pool interface {
	Do(ctx context.Context, fn func(*oxidb.Client) error) error
}

// EnsureSchema creates the indexes and the blob bucket. It is safe to call
// on every start.
func EnsureSchema(ctx context.Context, p Pool, bucket string) error {
	return p.Do(ctx, func(c *oxidb.Client) error {
		for _, ix := range [][2]string{
			{rowsCollection, "store"},
			{rowsCollection, "row"},
			{filesCollection, "parent"},
			{filesCollection, "name"},
		} {
			if err := c.CreateIndex(ctx, ix[0], ix[1]); err != nil {
				return err
			}
		}
		if err := c.CreateUniqueIndex(ctx, filesCollection, "fid"); err != nil {
			return err
		}
		if err := c.CreateBucket(ctx, bucket); err != nil && !alreadyExists(err) {
			return err
		}
		return nil
	})
}

func alreadyExists(err error) bool {
	var e *oxidb.Error
	return errors.As(err, &e) && strings.Contains(strings.ToLower(e.Msg), "exists")
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strSlice(v any) []string {
	arr, _ := v.([]any)
	out := make([]string, 0, len(arr))
	for _, x := range arr {
		out = append(out, str(x))
	}
	return out
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}
