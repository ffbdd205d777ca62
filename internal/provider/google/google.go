// Package google backs the provider ports with Google Drive, Docs and
// Sheets.
package google

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/docs/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

const fileFields = "id, name, mimeType, parents, webViewLink"

var scopes = []string{
	drive.DriveScope,
	docs.DocumentsScope,
	sheets.SpreadsheetsScope,
}

// Credentials selects how requests are authorized. CredentialsJSON wins
// over AccessToken.
type Credentials struct {
	CredentialsJSON []byte
	AccessToken     string
}

// ClientOptions turns creds into api options.
func ClientOptions(ctx context.Context, creds Credentials) ([]option.ClientOption, error) {
	switch {
	case len(creds.CredentialsJSON) > 0:
		c, err := googleoauth.CredentialsFromJSON(ctx, creds.CredentialsJSON, scopes...)
		if err != nil {
			return nil, fmt.Errorf("google: parse credentials: %w", err)
		}
		return []option.ClientOption{option.WithCredentials(c)}, nil
	case creds.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.AccessToken})
		return []option.ClientOption{option.WithTokenSource(ts)}, nil
	}
	return nil, errors.New("google: no credentials configured")
}

// Workspace implements provider.Workspace and provider.Table.
type Workspace struct {
	drive  *drive.Service
	docs   *docs.Service
	sheets *sheets.Service
}

// New builds the three services with the same options.
func New(ctx context.Context, opts ...option.ClientOption) (*Workspace, error) {
	d, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: drive: %w", err)
	}
	dc, err := docs.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: docs: %w", err)
	}
	s, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: sheets: %w", err)
	}
	return &Workspace{drive: d, docs: dc, sheets: s}, nil
}

func (w *Workspace) CopyTemplate(ctx context.Context, templateID, name, parentID string) (provider.File, error) {
	f, err := w.drive.Files.Copy(templateID, &drive.File{Name: name, Parents: []string{parentID}}).
		SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.File{}, wrap("copy template "+templateID, err)
	}
	return toFile(f), nil
}

func (w *Workspace) BatchReplaceText(ctx context.Context, documentID string, reqs []provider.Replacement) error {
	var batch []*docs.Request
	for _, r := range reqs {
		if r.Find == "" {
			continue
		}
		batch = append(batch, &docs.Request{ReplaceAllText: &docs.ReplaceAllTextRequest{
			ContainsText: &docs.SubstringMatchCriteria{Text: r.Find, MatchCase: true},
			ReplaceText:  r.Replace,
		}})
	}
	if len(batch) == 0 {
		return nil
	}
	_, err := w.docs.Documents.BatchUpdate(documentID, &docs.BatchUpdateDocumentRequest{Requests: batch}).
		Context(ctx).Do()
	return wrap("replace text "+documentID, err)
}

func (w *Workspace) CreateFolder(ctx context.Context, name, parentID string) (provider.File, error) {
	f, err := w.drive.Files.Create(&drive.File{
		Name:     name,
		MimeType: provider.FolderMimeType,
		Parents:  []string{parentID},
	}).SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.File{}, wrap("create folder "+name, err)
	}
	return toFile(f), nil
}

func (w *Workspace) FindFolder(ctx context.Context, name, parentID string) (provider.File, bool, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escape(name), escape(parentID), provider.FolderMimeType)
	files, err := w.list(ctx, q, 1)
	if err != nil {
		return provider.File{}, false, wrap("find folder "+name, err)
	}
	if len(files) == 0 {
		return provider.File{}, false, nil
	}
	return files[0], true, nil
}

func (w *Workspace) GetFile(ctx context.Context, id string) (provider.File, error) {
	f, err := w.drive.Files.Get(id).SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.File{}, wrap("get file "+id, err)
	}
	return toFile(f), nil
}

func (w *Workspace) MoveFolder(ctx context.Context, folderID, newParentID string) error {
	cur, err := w.GetFile(ctx, folderID)
	if err != nil {
		return err
	}
	_, err = w.drive.Files.Update(folderID, &drive.File{}).
		AddParents(newParentID).RemoveParents(strings.Join(cur.Parents, ",")).
		SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	return wrap("move folder "+folderID, err)
}

func (w *Workspace) ListFiles(ctx context.Context, parentID string) ([]provider.File, error) {
	files, err := w.list(ctx, fmt.Sprintf("'%s' in parents and trashed = false", escape(parentID)), 0)
	if err != nil {
		return nil, wrap("list files "+parentID, err)
	}
	return files, nil
}

func (w *Workspace) UploadFile(ctx context.Context, name, mimeType, parentID string, data []byte) (provider.File, error) {
	f, err := w.drive.Files.Create(&drive.File{Name: name, MimeType: mimeType, Parents: []string{parentID}}).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		SupportsAllDrives(true).Fields(fileFields).Context(ctx).Do()
	if err != nil {
		return provider.File{}, wrap("upload "+name, err)
	}
	return toFile(f), nil
}

// list pages through a Drive query; limit 0 means all results.
func (w *Workspace) list(ctx context.Context, q string, limit int) ([]provider.File, error) {
	var out []provider.File
	call := w.drive.Files.List().Q(q).
		SupportsAllDrives(true).IncludeItemsFromAllDrives(true).
		OrderBy("name").PageSize(100).
		Fields(googleapi.Field("nextPageToken, files(" + fileFields + ")"))
	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			out = append(out, toFile(f))
			if limit > 0 && len(out) >= limit {
				return errStop
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}

var errStop = errors.New("stop paging")

func (w *Workspace) ReadRows(ctx context.Context, storeID, rng string) ([][]string, error) {
	vr, err := w.sheets.Spreadsheets.Values.Get(storeID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrap("read rows "+rng, err)
	}
	out := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (w *Workspace) AppendRow(ctx context.Context, storeID, rng string, row []string) error {
	_, err := w.sheets.Spreadsheets.Values.Append(storeID, rng, valueRange(row)).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return wrap("append row "+rng, err)
}

func (w *Workspace) UpdateRow(ctx context.Context, storeID, rng string, row []string) error {
	_, err := w.sheets.Spreadsheets.Values.Update(storeID, rng, valueRange(row)).
		ValueInputOption("RAW").Context(ctx).Do()
	return wrap("update row "+rng, err)
}

func valueRange(row []string) *sheets.ValueRange {
	cells := make([]interface{}, len(row))
	for i, c := range row {
		cells[i] = c
	}
	return &sheets.ValueRange{Values: [][]interface{}{cells}}
}

func toFile(f *drive.File) provider.File {
	return provider.File{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Parents:  f.Parents,
		ViewLink: f.WebViewLink,
	}
}

// escape quotes a value for a Drive query string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// wrap maps a 404 to provider.ErrNotFound and keeps other errors.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, provider.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
