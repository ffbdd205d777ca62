package oxi

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/oxidb"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// Workspace implements provider.Workspace. Folder and file metadata live
// in a collection keyed by fid; document bodies and uploads live in the
// bucket under the same fid.
type Workspace struct {
	pool   Pool
	bucket string
}

func NewWorkspace(p Pool, bucket string) *Workspace {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Workspace{pool: p, bucket: bucket}
}

// EnsureRoot creates the folder id if it does not exist yet, so configured
// root folder ids are valid parents.
func (w *Workspace) EnsureRoot(ctx context.Context, id, name string) error {
	return w.pool.Do(ctx, func(c *oxidb.Client) error {
		doc, err := c.FindOne(ctx, filesCollection, map[string]any{"fid": id})
		if err != nil || doc != nil {
			return err
		}
		_, err = c.Insert(ctx, filesCollection, w.fileDoc(provider.File{ID: id, Name: name, MimeType: provider.FolderMimeType}))
		return err
	})
}

// ImportTemplate stores or replaces a template document under id.
func (w *Workspace) ImportTemplate(ctx context.Context, id, name string, body []byte) error {
	return w.pool.Do(ctx, func(c *oxidb.Client) error {
		q := map[string]any{"fid": id}
		doc, err := c.FindOne(ctx, filesCollection, q)
		if err != nil {
			return err
		}
		if doc == nil {
			f := provider.File{ID: id, Name: name, MimeType: provider.DocumentMimeType}
			if _, err := c.Insert(ctx, filesCollection, w.fileDoc(f)); err != nil {
				return err
			}
		} else if _, err := c.UpdateOne(ctx, filesCollection, q, map[string]any{"$set": map[string]any{"name": name}}); err != nil {
			return err
		}
		_, err = c.PutObject(ctx, w.bucket, id, body, "text/plain", map[string]string{"name": name})
		return err
	})
}

func (w *Workspace) CopyTemplate(ctx context.Context, templateID, name, parentID string) (provider.File, error) {
	var f provider.File
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		src, err := w.lookup(ctx, c, templateID)
		if err != nil {
			return fmt.Errorf("template %s: %w", templateID, err)
		}
		if _, err := w.lookup(ctx, c, parentID); err != nil {
			return fmt.Errorf("parent %s: %w", parentID, err)
		}
		body, _, err := c.GetObject(ctx, w.bucket, templateID)
		if err != nil {
			return fmt.Errorf("template %s body: %w", templateID, err)
		}
		f = w.newFile(name, src.MimeType, parentID)
		if _, err := c.PutObject(ctx, w.bucket, f.ID, body, "text/plain", map[string]string{"name": name}); err != nil {
			return err
		}
		_, err = c.Insert(ctx, filesCollection, w.fileDoc(f))
		return err
	})
	return f, err
}

// BatchReplaceText applies the replacements in order to the stored body.
// The body is read and written on one held connection.
func (w *Workspace) BatchReplaceText(ctx context.Context, documentID string, reqs []provider.Replacement) error {
	return w.pool.Do(ctx, func(c *oxidb.Client) error {
		f, err := w.lookup(ctx, c, documentID)
		if err != nil {
			return fmt.Errorf("document %s: %w", documentID, err)
		}
		body, _, err := c.GetObject(ctx, w.bucket, documentID)
		if err != nil {
			return fmt.Errorf("document %s body: %w", documentID, err)
		}
		text := string(body)
		for _, r := range reqs {
			if r.Find == "" {
				continue
			}
			text = strings.ReplaceAll(text, r.Find, r.Replace)
		}
		_, err = c.PutObject(ctx, w.bucket, documentID, []byte(text), "text/plain", map[string]string{"name": f.Name})
		return err
	})
}

func (w *Workspace) CreateFolder(ctx context.Context, name, parentID string) (provider.File, error) {
	var f provider.File
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		if _, err := w.lookup(ctx, c, parentID); err != nil {
			return fmt.Errorf("parent %s: %w", parentID, err)
		}
		f = w.newFile(name, provider.FolderMimeType, parentID)
		_, err := c.Insert(ctx, filesCollection, w.fileDoc(f))
		return err
	})
	return f, err
}

func (w *Workspace) FindFolder(ctx context.Context, name, parentID string) (provider.File, bool, error) {
	var docs []map[string]any
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		var err error
		docs, err = c.Find(ctx, filesCollection, map[string]any{
			"name": name, "parent": parentID, "mimeType": provider.FolderMimeType,
		}, &oxidb.FindOptions{Sort: map[string]any{"fid": 1}})
		return err
	})
	if err != nil || len(docs) == 0 {
		return provider.File{}, false, err
	}
	return w.toFile(docs[0]), true, nil
}

func (w *Workspace) GetFile(ctx context.Context, id string) (provider.File, error) {
	var f provider.File
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		var err error
		f, err = w.lookup(ctx, c, id)
		return err
	})
	if err != nil {
		return provider.File{}, fmt.Errorf("file %s: %w", id, err)
	}
	return f, nil
}

func (w *Workspace) MoveFolder(ctx context.Context, folderID, newParentID string) error {
	return w.pool.Do(ctx, func(c *oxidb.Client) error {
		if _, err := w.lookup(ctx, c, folderID); err != nil {
			return fmt.Errorf("folder %s: %w", folderID, err)
		}
		if _, err := w.lookup(ctx, c, newParentID); err != nil {
			return fmt.Errorf("parent %s: %w", newParentID, err)
		}
		_, err := c.UpdateOne(ctx, filesCollection, map[string]any{"fid": folderID},
			map[string]any{"$set": map[string]any{"parent": newParentID}})
		return err
	})
}

func (w *Workspace) ListFiles(ctx context.Context, parentID string) ([]provider.File, error) {
	var docs []map[string]any
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		var err error
		docs, err = c.Find(ctx, filesCollection, map[string]any{"parent": parentID}, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]provider.File, 0, len(docs))
	for _, d := range docs {
		out = append(out, w.toFile(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (w *Workspace) UploadFile(ctx context.Context, name, mimeType, parentID string, data []byte) (provider.File, error) {
	var f provider.File
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		if _, err := w.lookup(ctx, c, parentID); err != nil {
			return fmt.Errorf("parent %s: %w", parentID, err)
		}
		f = w.newFile(name, mimeType, parentID)
		if _, err := c.PutObject(ctx, w.bucket, f.ID, data, mimeType, map[string]string{"name": name}); err != nil {
			return err
		}
		_, err := c.Insert(ctx, filesCollection, w.fileDoc(f))
		return err
	})
	return f, err
}

// Body returns the stored body of a document or upload.
func (w *Workspace) Body(ctx context.Context, id string) ([]byte, error) {
	var body []byte
	err := w.pool.Do(ctx, func(c *oxidb.Client) error {
		var err error
		body, _, err = c.GetObject(ctx, w.bucket, id)
		return err
	})
	return body, err
}

func (w *Workspace) lookup(ctx context.Context, c *oxidb.Client, id string) (provider.File, error) {
	doc, err := c.FindOne(ctx, filesCollection, map[string]any{"fid": id})
	if err != nil {
		return provider.File{}, err
	}
	if doc == nil {
		return provider.File{}, provider.ErrNotFound
	}
	return w.toFile(doc), nil
}

func (w *Workspace) newFile(name, mimeType, parentID string) provider.File {
	id := uuid.NewString()
	return provider.File{ID: id, Name: name, MimeType: mimeType, Parents: []string{parentID}, ViewLink: w.link(id)}
}

func (w *Workspace) link(id string) string {
	return "oxidb://" + w.bucket + "/" + id
}

func (w *Workspace) fileDoc(f provider.File) map[string]any {
	parent := ""
	if len(f.Parents) > 0 {
		parent = f.Parents[0]
	}
	return map[string]any{"fid": f.ID, "name": f.Name, "mimeType": f.MimeType, "parent": parent}
}

func (w *Workspace) toFile(doc map[string]any) provider.File {
	f := provider.File{
		ID:       str(doc["fid"]),
		Name:     str(doc["name"]),
		MimeType: str(doc["mimeType"]),
	}
	f.ViewLink = w.link(f.ID)
	if p := str(doc["parent"]); p != "" {
		f.Parents = []string{p}
	}
	return f
}
