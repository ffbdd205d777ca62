// Package render expands canonical fields into every placeholder spelling a
// template may contain and applies them to a copied document.
package render

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

// ReplacementMap maps a literal placeholder to its substitution.
type ReplacementMap map[string]string

// Placeholder is the visible marker used for a missing value.
func Placeholder(f fields.Field) string {
	return "[" + f.Label() + "]"
}

// Spellings returns the literals a template may use for f: bare, {{f}},
// [f] and the title-cased [F]. A field whose label differs from its title
// case, like "[EIN]" for ein, gets that spelling as well.
func Spellings(f fields.Field) []string {
	out := []string{string(f), "{{" + string(f) + "}}", "[" + string(f) + "]", "[" + fields.TitleCase(string(f)) + "]"}
	if p := Placeholder(f); p != out[3] {
		out = append(out, p)
	}
	return out
}

// Expand builds the replacement map. Every vocabulary field is present so
// unresolved placeholders render as "[Label]" rather than vanishing.
func Expand(c fields.Canonical) ReplacementMap {
	m := make(ReplacementMap, len(c)*4)
	add := func(f fields.Field, v string) {
		if v == "" {
			v = Placeholder(f)
		}
		for _, s := range Spellings(f) {
			m[s] = v
		}
	}
	for _, def := range fields.Vocabulary() {
		add(def.Field, c.Get(def.Field))
	}
	for f, v := range c {
		if !f.Known() {
			add(f, v)
		}
	}
	return m
}

// Requests orders the map into replacement requests, longest literal
// first so "first_name" never rewrites part of "{{first_name_poc}}".
// Entries that would replace a literal with itself are dropped, as are
// bare one-word names like "email" or "ein" that occur inside prose.
func (m ReplacementMap) Requests() []provider.Replacement {
	return m.requests(false)
}

// AllRequests is Requests including bare one-word names.
func (m ReplacementMap) AllRequests() []provider.Replacement {
	return m.requests(true)
}

func (m ReplacementMap) requests(bareWords bool) []provider.Replacement {
	out := make([]provider.Replacement, 0, len(m))
	for k, v := range m {
		if k == "" || k == v {
			continue
		}
		if !bareWords && !strings.ContainsAny(k, "_{[") {
			continue
		}
		out = append(out, provider.Replacement{Find: k, Replace: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Find) != len(out[j].Find) {
			return len(out[i].Find) > len(out[j].Find)
		}
		return out[i].Find < out[j].Find
	})
	return out
}

// Renderer creates one filled-in document per call.
type Renderer struct {
	docs      provider.DocumentStore
	bareWords bool
}

type Option func(*Renderer)

// WithBareWords makes the renderer also replace bare one-word names, for
// templates that spell placeholders as plain "email" or "ein".
func WithBareWords(on bool) Option {
	return func(r *Renderer) { r.bareWords = on }
}

func NewRenderer(docs provider.DocumentStore, opts ...Option) *Renderer {
	r := &Renderer{docs: docs}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render copies templateID into folderID as name and applies m to the copy.
// A copy whose replacement fails is returned with the error so the caller
// can report the half-made document.
func (r *Renderer) Render(ctx context.Context, templateID, name, folderID string, m ReplacementMap) (provider.File, error) {
	doc, err := r.docs.CopyTemplate(ctx, templateID, name, folderID)
	if err != nil {
		return provider.File{}, fmt.Errorf("copy template %s: %w", templateID, err)
	}
	if err := r.Fill(ctx, doc.ID, m); err != nil {
		return doc, fmt.Errorf("fill %s: %w", name, err)
	}
	return doc, nil
}

// Fill applies m to an existing document. Already substituted text no
// longer matches, so filling twice is harmless.
func (r *Renderer) Fill(ctx context.Context, documentID string, m ReplacementMap) error {
	reqs := m.requests(r.bareWords)
	if len(reqs) == 0 {
		return nil
	}
	return r.docs.BatchReplaceText(ctx, documentID, reqs)
}
