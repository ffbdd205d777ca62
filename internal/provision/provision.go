// Package provision finds or creates the folder tree a lead's documents
// live in. Every operation is safe to repeat.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// FolderSet is a case folder and its named subfolders.
type FolderSet struct {
	CaseID     string            `json:"caseId"`
	CaseName   string            `json:"caseName"`
	Subfolders map[string]string `json:"subfolders"`
}

type Provisioner struct {
	folders provider.FolderStore
	log     *logging.Logger
}

func New(folders provider.FolderStore, log *logging.Logger) *Provisioner {
	return &Provisioner{folders: folders, log: log}
}

// EnsureFolder returns the folder called name under parentID, creating it
// when absent. A failed lookup is logged and treated as absent.
func (p *Provisioner) EnsureFolder(ctx context.Context, name, parentID string) (provider.File, error) {
	f, ok, err := p.folders.FindFolder(ctx, name, parentID)
	if err != nil {
		p.log.Warn(ctx, "folder lookup failed, creating", zap.String("folder", name), zap.String("parent", parentID), zap.Error(err))
	}
	if err == nil && ok {
		return f, nil
	}
	f, err = p.folders.CreateFolder(ctx, name, parentID)
	if err != nil {
		return provider.File{}, fmt.Errorf("create folder %q: %w", name, err)
	}
	p.log.Info(ctx, "folder created", zap.String("folder", name), zap.String("id", f.ID))
	return f, nil
}

// EnsureSet provisions caseName under parentID and each subfolder inside it.
func (p *Provisioner) EnsureSet(ctx context.Context, caseName, parentID string, subfolders []string) (FolderSet, error) {
	c, err := p.EnsureFolder(ctx, caseName, parentID)
	if err != nil {
		return FolderSet{}, err
	}
	return p.EnsureSubfolders(ctx, c, subfolders)
}

// EnsureSubfolders provisions subfolders inside an existing case folder.
func (p *Provisioner) EnsureSubfolders(ctx context.Context, c provider.File, subfolders []string) (FolderSet, error) {
	set := FolderSet{CaseID: c.ID, CaseName: c.Name, Subfolders: make(map[string]string, len(subfolders))}
	for _, name := range subfolders {
		f, err := p.EnsureFolder(ctx, name, c.ID)
		if err != nil {
			return set, err
		}
		set.Subfolders[name] = f.ID
	}
	return set, nil
}

// MoveIfNeeded moves folderID under newParentID unless it is already
// there. It reports whether a move happened.
func (p *Provisioner) MoveIfNeeded(ctx context.Context, folderID, newParentID string) (bool, error) {
	f, err := p.folders.GetFile(ctx, folderID)
	if err != nil {
		return false, fmt.Errorf("inspect folder %s: %w", folderID, err)
	}
	if f.HasParent(newParentID) {
		return false, nil
	}
	if err := p.folders.MoveFolder(ctx, folderID, newParentID); err != nil {
		return false, fmt.Errorf("move folder %s: %w", folderID, err)
	}
	p.log.Info(ctx, "folder moved", zap.String("id", folderID), zap.String("parent", newParentID))
	return true, nil
}
