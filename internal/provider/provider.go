// Package provider declares the collaborator ports the lead pipeline talks
// to: a document store, a folder tree, a file store and a row table.
package provider

import (
	"context"
	"errors"
)

// ErrNotFound is returned by GetFile for unknown ids.
var ErrNotFound = errors.New("provider: not found")

const (
	FolderMimeType   = "application/vnd.google-apps.folder"
	DocumentMimeType = "application/vnd.google-apps.document"
)

// File is a handle to a document, folder or uploaded file.
type File struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	ViewLink string   `json:"viewLink,omitempty"`
}

// IsFolder reports whether f is a folder.
func (f File) IsFolder() bool { return f.MimeType == FolderMimeType }

// HasParent reports whether parentID is among f's parents.
func (f File) HasParent(parentID string) bool {
	for _, p := range f.Parents {
		if p == parentID {
			return true
		}
	}
	return false
}

// Replacement is one case-sensitive literal substitution.
type Replacement struct {
	Find    string
	Replace string
}

type DocumentStore interface {
	CopyTemplate(ctx context.Context, templateID, name, parentID string) (File, error)
	// BatchReplaceText applies every replacement in order as one request.
	BatchReplaceText(ctx context.Context, documentID string, reqs []Replacement) error
}

type FolderStore interface {
	CreateFolder(ctx context.Context, name, parentID string) (File, error)
	// FindFolder reports ok=false when no folder with that exact name is
	// a direct child of parentID.
	FindFolder(ctx context.Context, name, parentID string) (f File, ok bool, err error)
	GetFile(ctx context.Context, id string) (File, error)
	// MoveFolder detaches folderID from all current parents and attaches
	// it under newParentID.
	MoveFolder(ctx context.Context, folderID, newParentID string) error
	ListFiles(ctx context.Context, parentID string) ([]File, error)
}

type FileStore interface {
	UploadFile(ctx context.Context, name, mimeType, parentID string, data []byte) (File, error)
}

// Workspace bundles the document, folder and file capabilities of one
// backend.
type Workspace interface {
	DocumentStore
	FolderStore
	FileStore
}

// Table is a row store addressed by A1 ranges such as "Leads!A:L" or
// "Leads!A5:L5".
type Table interface {
	ReadRows(ctx context.Context, storeID, rng string) ([][]string, error)
	AppendRow(ctx context.Context, storeID, rng string, row []string) error
	UpdateRow(ctx context.Context, storeID, rng string, row []string) error
}

// ConditionalTable is implemented by tables that can compare and write a
// row atomically. UpdateRowIfMatch returns models.ErrVersionConflict when
// the stored row differs from expected.
type ConditionalTable interface {
	Table
	UpdateRowIfMatch(ctx context.Context, storeID, rng string, expected, row []string) error
}
