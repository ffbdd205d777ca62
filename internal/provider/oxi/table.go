package oxi

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// appendAttempts bounds retries when concurrent appends race for the same
// row number.
const appendAttempts = 3

// Table implements provider.ConditionalTable. Each row is one document
// {store, sheet, row, cells} where cells holds the full row from column A.
type Table struct {
	pool Pool
}

func NewTable(p Pool) *Table {
	return &Table{pool: p}
}

func (t *Table) ReadRows(ctx context.Context, storeID, rng string) ([][]string, error) {
	r, err := provider.ParseRange(rng)
	if err != nil {
		return nil, err
	}
	var docs []map[string]any
	err = t.pool.Do(ctx, func(c *oxidb.Client) error {
		docs, err = c.Find(ctx, rowsCollection, sheetQuery(storeID, r), &oxidb.FindOptions{
			Sort: map[string]any{"row": 1},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read rows %s: %w", rng, err)
	}

	last := 0
	byRow := make(map[int][]string, len(docs))
	for _, d := range docs {
		n := num(d["row"])
		byRow[n] = strSlice(d["cells"])
		last = max(last, n)
	}
	first := 1
	if r.FirstRow > 0 {
		first, last = r.FirstRow, min(r.LastRow, last)
	}
	var out [][]string
	for i := first; i <= last; i++ {
		out = append(out, r.Clip(byRow[i]))
	}
	return out, nil
}

func (t *Table) AppendRow(ctx context.Context, storeID, rng string, row []string) error {
	r, err := provider.ParseRange(rng)
	if err != nil {
		return err
	}
	for attempt := 1; ; attempt++ {
		err = t.pool.Do(ctx, func(c *oxidb.Client) error {
			return c.WithTransaction(ctx, func() error {
				limit := 1
				tail, err := c.Find(ctx, rowsCollection, sheetQuery(storeID, r), &oxidb.FindOptions{
					Sort:  map[string]any{"row": -1},
					Limit: &limit,
				})
				if err != nil {
					return err
				}
				next := 1
				if len(tail) > 0 {
					next = num(tail[0]["row"]) + 1
				}
				_, err = c.Insert(ctx, rowsCollection, rowDoc(storeID, r.Sheet, next, r.Place(nil, row)))
				return err
			})
		})
		var conflict *oxidb.TransactionConflictError
		if errors.As(err, &conflict) && attempt < appendAttempts {
			continue
		}
		if err != nil {
			return fmt.Errorf("append row %s: %w", rng, err)
		}
		return nil
	}
}

func (t *Table) UpdateRow(ctx context.Context, storeID, rng string, row []string) error {
	r, n, err := rowRange(rng)
	if err != nil {
		return err
	}
	err = t.pool.Do(ctx, func(c *oxidb.Client) error {
		return c.WithTransaction(ctx, func() error {
			return t.write(ctx, c, storeID, r, n, row)
		})
	})
	if err != nil {
		return fmt.Errorf("update row %s: %w", rng, err)
	}
	return nil
}

// UpdateRowIfMatch compares and writes inside one transaction. A commit
// conflict means another writer got there first and is reported as a
// version conflict.
func (t *Table) UpdateRowIfMatch(ctx context.Context, storeID, rng string, expected, row []string) error {
	r, n, err := rowRange(rng)
	if err != nil {
		return err
	}
	err = t.pool.Do(ctx, func(c *oxidb.Client) error {
		return c.WithTransaction(ctx, func() error {
			doc, err := c.FindOne(ctx, rowsCollection, rowQuery(storeID, r.Sheet, n))
			if err != nil {
				return err
			}
			var current []string
			if doc != nil {
				current = r.Clip(strSlice(doc["cells"]))
			}
			w := r.Width()
			if !slices.Equal(provider.PadRow(current, w), provider.PadRow(slices.Clone(expected), w)) {
				return models.ErrVersionConflict
			}
			return t.write(ctx, c, storeID, r, n, row)
		})
	})
	var conflict *oxidb.TransactionConflictError
	if errors.As(err, &conflict) {
		return fmt.Errorf("update row %s: %w", rng, models.ErrVersionConflict)
	}
	if err != nil {
		return fmt.Errorf("update row %s: %w", rng, err)
	}
	return nil
}

// write upserts row n, keeping cells outside r.
func (t *Table) write(ctx context.Context, c *oxidb.Client, storeID string, r provider.Range, n int, row []string) error {
	q := rowQuery(storeID, r.Sheet, n)
	doc, err := c.FindOne(ctx, rowsCollection, q)
	if err != nil {
		return err
	}
	if doc == nil {
		_, err = c.Insert(ctx, rowsCollection, rowDoc(storeID, r.Sheet, n, r.Place(nil, row)))
		return err
	}
	cells := r.Place(strSlice(doc["cells"]), row)
	_, err = c.UpdateOne(ctx, rowsCollection, q, map[string]any{"$set": map[string]any{"cells": cells}})
	return err
}

func rowRange(rng string) (provider.Range, int, error) {
	r, err := provider.ParseRange(rng)
	if err != nil {
		return provider.Range{}, 0, err
	}
	if r.FirstRow < 1 {
		return provider.Range{}, 0, fmt.Errorf("update needs a row range, got %s", rng)
	}
	return r, r.FirstRow, nil
}

func sheetQuery(storeID string, r provider.Range) map[string]any {
	return map[string]any{"store": storeID, "sheet": r.Sheet}
}

func rowQuery(storeID, sheet string, n int) map[string]any {
	return map[string]any{"store": storeID, "sheet": sheet, "row": n}
}

func rowDoc(storeID, sheet string, n int, cells []string) map[string]any {
	return map[string]any{"store": storeID, "sheet": sheet, "row": n, "cells": cells}
}
