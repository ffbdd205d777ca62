// Package materialize turns a replacement map into the fixed, ordered set
// of documents for a phase.
package materialize

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/metrics"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/render"
)

// Orchestrator creates documents one at a time in plan order.
type Orchestrator struct {
	renderer *render.Renderer
	folders  provider.FolderStore
	log      *logging.Logger
	metrics  *metrics.Metrics

	// SkipExisting re-fills a document whose name already exists in the
	// destination folder instead of copying the template again, so a
	// re-run does not duplicate documents.
	SkipExisting bool
}

func NewOrchestrator(renderer *render.Renderer, folders provider.FolderStore, log *logging.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{renderer: renderer, folders: folders, log: log, metrics: m, SkipExisting: true}
}

// Request is one batch.
type Request struct {
	Phase        string
	BusinessName string
	Plan         []Document
	// Folders maps a plan folder name to its provider id.
	Folders      map[string]string
	Replacements render.ReplacementMap
}

// Materialize attempts every document. A failed document is recorded and
// the batch continues; the error is a *models.TotalMaterializationFailure
// only when nothing was produced.
func (o *Orchestrator) Materialize(ctx context.Context, req Request) ([]models.GeneratedDocument, error) {
	if len(req.Plan) == 0 {
		return nil, nil
	}

	existing := map[string]map[string]provider.File{}
	results := make([]models.GeneratedDocument, 0, len(req.Plan))
	var errs []error

	for _, d := range req.Plan {
		name := DocumentName(req.BusinessName, d.Title)
		res := o.one(ctx, d, name, req, existing)
		o.metrics.DocumentMaterialized(req.Phase, res.Err)
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, res.Err))
			o.log.Warn(ctx, "document failed", zap.String("document", name), zap.Error(res.Err))
		}
		results = append(results, res)
	}

	if len(errs) == len(results) {
		return results, &models.TotalMaterializationFailure{Attempted: len(results), Err: errors.Join(errs...)}
	}
	if p := Partial(results); p != nil {
		o.log.Warn(ctx, "partial materialization", zap.String("phase", req.Phase), zap.Error(p))
	}
	return results, nil
}

func (o *Orchestrator) one(ctx context.Context, d Document, name string, req Request, existing map[string]map[string]provider.File) models.GeneratedDocument {
	res := models.GeneratedDocument{Name: name, Folder: d.Folder}
	folderID, ok := req.Folders[d.Folder]
	if !ok || folderID == "" {
		res.Err = fmt.Errorf("no %q folder provisioned", d.Folder)
		return res
	}
	if d.TemplateID == "" {
		res.Err = errors.New("no template configured")
		return res
	}

	if o.SkipExisting {
		if f, ok := o.lookup(ctx, folderID, name, existing); ok {
			o.log.Debug(ctx, "document exists, refilling", zap.String("document", name), zap.String("id", f.ID))
			if err := o.renderer.Fill(ctx, f.ID, req.Replacements); err != nil {
				res.Err = fmt.Errorf("fill %s: %w", name, err)
				return res
			}
			res.ID, res.ViewLink = f.ID, f.ViewLink
			return res
		}
	}

	doc, err := o.renderer.Render(ctx, d.TemplateID, name, folderID, req.Replacements)
	if err != nil {
		res.Err = err
		return res
	}
	res.ID, res.ViewLink = doc.ID, doc.ViewLink
	return res
}

// lookup lists each folder once per batch. A failed listing is treated as
// an empty folder.
func (o *Orchestrator) lookup(ctx context.Context, folderID, name string, cache map[string]map[string]provider.File) (provider.File, bool) {
	byName, ok := cache[folderID]
	if !ok {
		byName = map[string]provider.File{}
		files, err := o.folders.ListFiles(ctx, folderID)
		if err != nil {
			o.log.Debug(ctx, "existing-document probe failed", zap.String("folder", folderID), zap.Error(err))
		}
		for _, f := range files {
			if !f.IsFolder() {
				byName[f.Name] = f
			}
		}
		cache[folderID] = byName
	}
	f, ok := byName[name]
	return f, ok
}

// Partial summarizes failed entries of a batch that produced at least one
// document; nil when every document succeeded or none did.
func Partial(docs []models.GeneratedDocument) *models.PartialMaterializationError {
	var failed []string
	for _, d := range docs {
		if !d.OK() {
			failed = append(failed, d.Name)
		}
	}
	if len(failed) == 0 || len(failed) == len(docs) {
		return nil
	}
	return &models.PartialMaterializationError{Failed: failed, Attempted: len(docs)}
}
