// Package attachments copies files referenced by URL in a submission into
// a lead folder.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/logging"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// DefaultMaxBytes caps one download.
const DefaultMaxBytes = 25 << 20

// Store is where fetched files land.
type Store interface {
	provider.FileStore
	ListFiles(ctx context.Context, parentID string) ([]provider.File, error)
}

type Fetcher struct {
	client   *http.Client
	store    Store
	log      *logging.Logger
	maxBytes int64
}

// New builds a fetcher; a nil client gets a 60s timeout default.
func New(client *http.Client, store Store, log *logging.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: client, store: store, log: log.Named("attachments"), maxBytes: DefaultMaxBytes}
}

// Attach downloads every URL in urls (a single value or a ", " joined list)
// and uploads it under parentID as baseName plus the URL's extension.
// Files whose name already exists in the folder are skipped, so reruns do
// not duplicate uploads. Failures are logged and returned joined; the
// successfully stored files are returned either way.
func (f *Fetcher) Attach(ctx context.Context, urls, baseName, parentID string) ([]provider.File, error) {
	list := Split(urls)
	if len(list) == 0 {
		return nil, nil
	}
	existing := map[string]bool{}
	files, err := f.store.ListFiles(ctx, parentID)
	if err != nil {
		f.log.Warn(ctx, "attachment probe failed", zap.String("folder", parentID), zap.Error(err))
	}
	for _, file := range files {
		existing[file.Name] = true
	}

	var (
		out  []provider.File
		errs []error
	)
	for i, u := range list {
		name := baseName
		if len(list) > 1 {
			name = fmt.Sprintf("%s (%d)", baseName, i+1)
		}
		name += extension(u)
		if existing[name] {
			f.log.Debug(ctx, "attachment exists, skipping", zap.String("name", name))
			continue
		}
		file, err := f.fetch(ctx, u, name, parentID)
		if err != nil {
			f.log.Warn(ctx, "attachment failed", zap.String("name", name), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		out = append(out, file)
	}
	return out, errors.Join(errs...)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, name, parentID string) (provider.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return provider.File{}, fmt.Errorf("attachment %s: %w", name, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return provider.File{}, fmt.Errorf("attachment %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.File{}, fmt.Errorf("attachment %s: unexpected status %s", name, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return provider.File{}, fmt.Errorf("attachment %s: %w", name, err)
	}
	if int64(len(data)) > f.maxBytes {
		return provider.File{}, fmt.Errorf("attachment %s: larger than %d bytes", name, f.maxBytes)
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ct == "" {
		ct = mime.TypeByExtension(extension(rawURL))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	file, err := f.store.UploadFile(ctx, name, ct, parentID, data)
	if err != nil {
		return provider.File{}, fmt.Errorf("attachment %s: upload: %w", name, err)
	}
	return file, nil
}

// Split returns the http(s) URLs in a submitted value.
func Split(v string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' '
	}) {
		u, err := url.Parse(part)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func extension(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	ext := path.Ext(u.Path)
	if len(ext) > 6 {
		return ""
	}
	return strings.ToLower(ext)
}
