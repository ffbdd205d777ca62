package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// Table implements provider.ConditionalTable. Each storeID/sheet pair is
// an independent grid.
type Table struct {
	mu     sync.Mutex
	sheets map[string]*[][]string
	fail   map[string]error
}

func NewTable() *Table {
	return &Table{sheets: make(map[string]*[][]string), fail: make(map[string]error)}
}

// FailOn makes op ("read_rows", "append_row", "update_row") fail with err;
// a nil err clears.
func (t *Table) FailOn(op string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.fail, op)
		return
	}
	t.fail[op] = err
}

// Rows returns a copy of the whole grid.
func (t *Table) Rows(storeID, sheet string) [][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	grid, ok := t.sheets[storeID+"/"+sheet]
	if !ok {
		return nil
	}
	return copyRows(*grid)
}

func (t *Table) ReadRows(ctx context.Context, storeID, rng string) ([][]string, error) {
	r, grid, err := t.open(ctx, "read_rows", storeID, rng)
	if err != nil {
		return nil, err
	}
	defer t.mu.Unlock()

	first, last := 1, len(*grid)
	if r.FirstRow > 0 {
		first, last = r.FirstRow, min(r.LastRow, len(*grid))
	}
	var out [][]string
	for i := first; i <= last; i++ {
		out = append(out, r.Clip((*grid)[i-1]))
	}
	return out, nil
}

func (t *Table) AppendRow(ctx context.Context, storeID, rng string, row []string) error {
	r, grid, err := t.open(ctx, "append_row", storeID, rng)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()
	*grid = append(*grid, r.Place(nil, row))
	return nil
}

func (t *Table) UpdateRow(ctx context.Context, storeID, rng string, row []string) error {
	r, grid, err := t.open(ctx, "update_row", storeID, rng)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()
	return write(grid, r, row)
}

func (t *Table) UpdateRowIfMatch(ctx context.Context, storeID, rng string, expected, row []string) error {
	r, grid, err := t.open(ctx, "update_row", storeID, rng)
	if err != nil {
		return err
	}
	defer t.mu.Unlock()
	var current []string
	if r.FirstRow >= 1 && r.FirstRow <= len(*grid) {
		current = r.Clip((*grid)[r.FirstRow-1])
	}
	if !slices.Equal(provider.PadRow(current, r.Width()), provider.PadRow(expected, r.Width())) {
		return models.ErrVersionConflict
	}
	return write(grid, r, row)
}

// open locks t on success; the caller unlocks.
func (t *Table) open(ctx context.Context, op, storeID, rng string) (provider.Range, *[][]string, error) {
	if err := ctx.Err(); err != nil {
		return provider.Range{}, nil, err
	}
	r, err := provider.ParseRange(rng)
	if err != nil {
		return provider.Range{}, nil, err
	}
	t.mu.Lock()
	if err := t.fail[op]; err != nil {
		t.mu.Unlock()
		return provider.Range{}, nil, err
	}
	key := storeID + "/" + r.Sheet
	grid, ok := t.sheets[key]
	if !ok {
		grid = new([][]string)
		t.sheets[key] = grid
	}
	return r, grid, nil
}

func write(grid *[][]string, r provider.Range, row []string) error {
	if r.FirstRow < 1 {
		return fmt.Errorf("update needs a row range, got %s", r)
	}
	for len(*grid) < r.FirstRow {
		*grid = append(*grid, nil)
	}
	(*grid)[r.FirstRow-1] = r.Place((*grid)[r.FirstRow-1], row)
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
