package models

import "encoding/json"

// GeneratedDocument is one entry of a materialization batch. Exactly one of
// ID or Err is set.
type GeneratedDocument struct {
	ID       string
	Name     string
	ViewLink string
	Folder   string
	Err      error
}

// OK reports whether the document was produced.
func (d GeneratedDocument) OK() bool { return d.Err == nil }

// MarshalJSON emits {id,name,viewLink} on success and {error,name} on failure.
func (d GeneratedDocument) MarshalJSON() ([]byte, error) {
	if d.Err != nil {
		return json.Marshal(struct {
			Error string `json:"error"`
			Name  string `json:"name"`
		}{Error: d.Err.Error(), Name: d.Name})
	}
	return json.Marshal(struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		ViewLink string `json:"viewLink"`
	}{ID: d.ID, Name: d.Name, ViewLink: d.ViewLink})
}
