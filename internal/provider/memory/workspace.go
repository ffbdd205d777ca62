// Package memory is an in-process provider backend with failure injection,
// used by tests and by provider.kind=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// Operation names accepted by FailOn.
const (
	OpCopyTemplate = "copy_template"
	OpReplaceText  = "batch_replace_text"
	OpCreateFolder = "create_folder"
	OpFindFolder   = "find_folder"
	OpGetFile      = "get_file"
	OpMoveFolder   = "move_folder"
	OpListFiles    = "list_files"
	OpUploadFile   = "upload_file"
)

// Any matches every key in FailOn.
const Any = "*"

type entry struct {
	file provider.File
	body string
	data []byte
}

// Workspace implements provider.Workspace.
type Workspace struct {
	mu       sync.Mutex
	seq      int
	files    map[string]*entry
	failures map[string]error
	calls    map[string]int
}

func NewWorkspace() *Workspace {
	return &Workspace{
		files:    make(map[string]*entry),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// FailOn makes op fail with err for key: a template id for copies, a
// document id for replacements, a name for folder creation and uploads,
// a parent id for listing. Pass Any to fail every call; a nil err clears.
func (w *Workspace) FailOn(op, key string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err == nil {
		delete(w.failures, op+"/"+key)
		return
	}
	w.failures[op+"/"+key] = err
}

// Calls returns how many times op was invoked.
func (w *Workspace) Calls(op string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[op]
}

// AddTemplate seeds a template document.
func (w *Workspace) AddTemplate(id, name, body string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[id] = &entry{file: provider.File{ID: id, Name: name, MimeType: provider.DocumentMimeType}, body: body}
}

// AddFolder seeds a folder; an empty parent makes it a root.
func (w *Workspace) AddFolder(name, parentID string) provider.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.addFolder(name, parentID)
}

// AddRoot seeds a root folder under a fixed id, as configured root ids
// would exist in a hosted drive.
func (w *Workspace) AddRoot(id, name string) provider.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	if e, ok := w.files[id]; ok {
		return clone(e.file)
	}
	f := provider.File{ID: id, Name: name, MimeType: provider.FolderMimeType, ViewLink: "memory://" + id}
	w.files[id] = &entry{file: f}
	return clone(f)
}

// Body returns the text of a document.
func (w *Workspace) Body(id string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.files[id]
	if !ok {
		return "", false
	}
	return e.body, true
}

// Data returns the bytes of an uploaded file.
func (w *Workspace) Data(id string) ([]byte, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.files[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), e.data...), true
}

// Children lists direct children of parentID sorted by name.
func (w *Workspace) Children(parentID string) []provider.File {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.children(parentID)
}

func (w *Workspace) CopyTemplate(ctx context.Context, templateID, name, parentID string) (provider.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpCopyTemplate, templateID); err != nil {
		return provider.File{}, err
	}
	src, ok := w.files[templateID]
	if !ok {
		return provider.File{}, fmt.Errorf("template %s: %w", templateID, provider.ErrNotFound)
	}
	if _, ok := w.files[parentID]; !ok {
		return provider.File{}, fmt.Errorf("parent %s: %w", parentID, provider.ErrNotFound)
	}
	f := w.newFile(name, src.file.MimeType, parentID)
	w.files[f.ID] = &entry{file: f, body: src.body}
	return f, nil
}

func (w *Workspace) BatchReplaceText(ctx context.Context, documentID string, reqs []provider.Replacement) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpReplaceText, documentID); err != nil {
		return err
	}
	e, ok := w.files[documentID]
	if !ok {
		return fmt.Errorf("document %s: %w", documentID, provider.ErrNotFound)
	}
	for _, r := range reqs {
		if r.Find == "" {
			continue
		}
		e.body = strings.ReplaceAll(e.body, r.Find, r.Replace)
	}
	return nil
}

func (w *Workspace) CreateFolder(ctx context.Context, name, parentID string) (provider.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpCreateFolder, name); err != nil {
		return provider.File{}, err
	}
	if _, ok := w.files[parentID]; !ok {
		return provider.File{}, fmt.Errorf("parent %s: %w", parentID, provider.ErrNotFound)
	}
	return w.addFolder(name, parentID), nil
}

func (w *Workspace) FindFolder(ctx context.Context, name, parentID string) (provider.File, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpFindFolder, name); err != nil {
		return provider.File{}, false, err
	}
	for _, f := range w.children(parentID) {
		if f.IsFolder() && f.Name == name {
			return f, true, nil
		}
	}
	return provider.File{}, false, nil
}

func (w *Workspace) GetFile(ctx context.Context, id string) (provider.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpGetFile, id); err != nil {
		return provider.File{}, err
	}
	e, ok := w.files[id]
	if !ok {
		return provider.File{}, fmt.Errorf("file %s: %w", id, provider.ErrNotFound)
	}
	return clone(e.file), nil
}

func (w *Workspace) MoveFolder(ctx context.Context, folderID, newParentID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpMoveFolder, folderID); err != nil {
		return err
	}
	e, ok := w.files[folderID]
	if !ok {
		return fmt.Errorf("folder %s: %w", folderID, provider.ErrNotFound)
	}
	if _, ok := w.files[newParentID]; !ok {
		return fmt.Errorf("parent %s: %w", newParentID, provider.ErrNotFound)
	}
	e.file.Parents = []string{newParentID}
	return nil
}

func (w *Workspace) ListFiles(ctx context.Context, parentID string) ([]provider.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpListFiles, parentID); err != nil {
		return nil, err
	}
	return w.children(parentID), nil
}

func (w *Workspace) UploadFile(ctx context.Context, name, mimeType, parentID string, data []byte) (provider.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enter(ctx, OpUploadFile, name); err != nil {
		return provider.File{}, err
	}
	if _, ok := w.files[parentID]; !ok {
		return provider.File{}, fmt.Errorf("parent %s: %w", parentID, provider.ErrNotFound)
	}
	f := w.newFile(name, mimeType, parentID)
	w.files[f.ID] = &entry{file: f, data: append([]byte(nil), data...)}
	return f, nil
}

// enter counts the call and returns any injected or context error.
// Callers hold w.mu.
func (w *Workspace) enter(ctx context.Context, op, key string) error {
	w.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := w.failures[op+"/"+key]; ok {
		return err
	}
	if err, ok := w.failures[op+"/"+Any]; ok {
		return err
	}
	return nil
}

func (w *Workspace) addFolder(name, parentID string) provider.File {
	f := w.newFile(name, provider.FolderMimeType, parentID)
	w.files[f.ID] = &entry{file: f}
	return clone(f)
}

func (w *Workspace) newFile(name, mimeType, parentID string) provider.File {
	w.seq++
	id := fmt.Sprintf("mem-%04d", w.seq)
	f := provider.File{ID: id, Name: name, MimeType: mimeType, ViewLink: "memory://" + id}
	if parentID != "" {
		f.Parents = []string{parentID}
	}
	return f
}

func (w *Workspace) children(parentID string) []provider.File {
	var out []provider.File
	for _, e := range w.files {
		if e.file.HasParent(parentID) {
			out = append(out, clone(e.file))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func clone(f provider.File) provider.File {
	f.Parents = append([]string(nil), f.Parents...)
	return f
}
