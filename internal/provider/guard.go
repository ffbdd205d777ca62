package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/metrics"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

// Limits bounds every call made through a Guard.
type Limits struct {
	RatePerSecond float64
	Burst         int
	CallTimeout   time.Duration
}

// DefaultLimits stay under the per-user quotas of the hosted APIs.
var DefaultLimits = Limits{RatePerSecond: 5, Burst: 10, CallTimeout: 30 * time.Second}

// Guard shares one token bucket and per-call timeout between the wrapped
// workspace and table. Failures come back as *models.ExternalServiceError.
type Guard struct {
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewGuard(l Limits, m *metrics.Metrics) *Guard {
	if l.RatePerSecond <= 0 {
		l.RatePerSecond = DefaultLimits.RatePerSecond
	}
	if l.Burst <= 0 {
		l.Burst = DefaultLimits.Burst
	}
	if l.CallTimeout <= 0 {
		l.CallTimeout = DefaultLimits.CallTimeout
	}
	return &Guard{
		limiter: rate.NewLimiter(rate.Limit(l.RatePerSecond), l.Burst),
		timeout: l.CallTimeout,
		metrics: m,
	}
}

func (g *Guard) do(ctx context.Context, op string, fn func(context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return models.NewExternalServiceError(op, err)
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	g.metrics.ObserveProviderCall(op, time.Since(start), err)
	if err != nil {
		return models.NewExternalServiceError(op, err)
	}
	return nil
}

// Workspace wraps w.
func (g *Guard) Workspace(w Workspace) Workspace { return &guardedWorkspace{g: g, w: w} }

// Table wraps t, keeping the conditional update when t supports it.
func (g *Guard) Table(t Table) Table {
	if ct, ok := t.(ConditionalTable); ok {
		return &guardedConditionalTable{guardedTable{g: g, t: t}, ct}
	}
	return &guardedTable{g: g, t: t}
}

type guardedWorkspace struct {
	g *Guard
	w Workspace
}

func (x *guardedWorkspace) CopyTemplate(ctx context.Context, templateID, name, parentID string) (f File, err error) {
	err = x.g.do(ctx, "copy_template", func(ctx context.Context) error {
		f, err = x.w.CopyTemplate(ctx, templateID, name, parentID)
		return err
	})
	return f, err
}

func (x *guardedWorkspace) BatchReplaceText(ctx context.Context, documentID string, reqs []Replacement) error {
	return x.g.do(ctx, "batch_replace_text", func(ctx context.Context) error {
		return x.w.BatchReplaceText(ctx, documentID, reqs)
	})
}

func (x *guardedWorkspace) CreateFolder(ctx context.Context, name, parentID string) (f File, err error) {
	err = x.g.do(ctx, "create_folder", func(ctx context.Context) error {
		f, err = x.w.CreateFolder(ctx, name, parentID)
		return err
	})
	return f, err
}

func (x *guardedWorkspace) FindFolder(ctx context.Context, name, parentID string) (f File, ok bool, err error) {
	err = x.g.do(ctx, "find_folder", func(ctx context.Context) error {
		f, ok, err = x.w.FindFolder(ctx, name, parentID)
		return err
	})
	return f, ok, err
}

func (x *guardedWorkspace) GetFile(ctx context.Context, id string) (f File, err error) {
	err = x.g.do(ctx, "get_file", func(ctx context.Context) error {
		f, err = x.w.GetFile(ctx, id)
		return err
	})
	return f, err
}

func (x *guardedWorkspace) MoveFolder(ctx context.Context, folderID, newParentID string) error {
	return x.g.do(ctx, "move_folder", func(ctx context.Context) error {
		return x.w.MoveFolder(ctx, folderID, newParentID)
	})
}

func (x *guardedWorkspace) ListFiles(ctx context.Context, parentID string) (files []File, err error) {
	err = x.g.do(ctx, "list_files", func(ctx context.Context) error {
		files, err = x.w.ListFiles(ctx, parentID)
		return err
	})
	return files, err
}

func (x *guardedWorkspace) UploadFile(ctx context.Context, name, mimeType, parentID string, data []byte) (f File, err error) {
	err = x.g.do(ctx, "upload_file", func(ctx context.Context) error {
		f, err = x.w.UploadFile(ctx, name, mimeType, parentID, data)
		return err
	})
	return f, err
}

type guardedTable struct {
	g *Guard
	t Table
}

func (x *guardedTable) ReadRows(ctx context.Context, storeID, rng string) (rows [][]string, err error) {
	err = x.g.do(ctx, "read_rows", func(ctx context.Context) error {
		rows, err = x.t.ReadRows(ctx, storeID, rng)
		return err
	})
	return rows, err
}

func (x *guardedTable) AppendRow(ctx context.Context, storeID, rng string, row []string) error {
	return x.g.do(ctx, "append_row", func(ctx context.Context) error {
		return x.t.AppendRow(ctx, storeID, rng, row)
	})
}

func (x *guardedTable) UpdateRow(ctx context.Context, storeID, rng string, row []string) error {
	return x.g.do(ctx, "update_row", func(ctx context.Context) error {
		return x.t.UpdateRow(ctx, storeID, rng, row)
	})
}

type guardedConditionalTable struct {
	guardedTable
	ct ConditionalTable
}

func (x *guardedConditionalTable) UpdateRowIfMatch(ctx context.Context, storeID, rng string, expected, row []string) error {
	return x.g.do(ctx, "update_row_if_match", func(ctx context.Context) error {
		return x.ct.UpdateRowIfMatch(ctx, storeID, rng, expected, row)
	})
}
