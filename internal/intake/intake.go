// Package intake decodes webhook bodies from the supported form builders
// into a raw submission.
package intake

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed submission")

// DefaultMaxBytes caps request bodies.
const DefaultMaxBytes = 10 << 20

// Shape is the wire layout a submission arrived in.
type Shape int

const (
	ShapeFlat Shape = iota
	ShapeQuestions
	ShapeData
	ShapeResponses
)

func (s Shape) String() string {
	switch s {
	case ShapeQuestions:
		return "questions"
	case ShapeData:
		return "data"
	case ShapeResponses:
		return "responses"
	}
	return "flat"
}

// containers in detection order.
var containers = []struct {
	key   string
	shape Shape
}{
	{"questions", ShapeQuestions},
	{"data", ShapeData},
	{"responses", ShapeResponses},
}

var (
	itemKeys   = []string{"name", "question", "label", "title", "key"}
	itemValues = []string{"value", "answer", "response"}
)

// Item is one labelled answer of a list-shaped submission.
type Item struct {
	Key   string
	Value any
}

// Payload is a decoded submission. Flat holds top-level entries; Items
// holds the answers of list shapes in wire order.
type Payload struct {
	Shape Shape
	Flat  map[string]any
	Items []Item
}

// Decode parses a JSON body.
func Decode(body []byte) (Payload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Payload{}, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch t := v.(type) {
	case []any:
		return Payload{Shape: ShapeData, Flat: map[string]any{}, Items: items(t)}, nil
	case map[string]any:
		for _, c := range containers {
			list, ok := t[c.key].([]any)
			if !ok {
				continue
			}
			flat := make(map[string]any, len(t))
			for k, v := range t {
				if k != c.key {
					flat[k] = v
				}
			}
			return Payload{Shape: c.shape, Flat: flat, Items: items(list)}, nil
		}
		return Payload{Shape: ShapeFlat, Flat: t}, nil
	}
	return Payload{}, fmt.Errorf("%w: expected an object or a list, got %T", ErrMalformed, v)
}

// items reads {name,value} style entries. An object without a
// recognizable key contributes all of its entries.
func items(list []any) []Item {
	var out []Item
	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		key := first(obj, itemKeys)
		if key == "" {
			for k, v := range obj {
				out = append(out, Item{Key: k, Value: v})
			}
			continue
		}
		var val any
		for _, vk := range itemValues {
			if v, ok := obj[vk]; ok {
				val = v
				break
			}
		}
		out = append(out, Item{Key: key, Value: val})
	}
	return out
}

func first(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// Raw flattens the payload. Items are applied after top-level entries; an
// empty answer never replaces a non-empty one.
func (p Payload) Raw() fields.Raw {
	out := make(fields.Raw, len(p.Flat)+len(p.Items))
	for k, v := range p.Flat {
		out[k] = v
	}
	for _, it := range p.Items {
		if prev, ok := out[it.Key]; ok && !fields.IsEmpty(prev) && fields.IsEmpty(it.Value) {
			continue
		}
		out[it.Key] = it.Value
	}
	return out
}

// DecodeRequest reads JSON bodies, form posts carrying a rawRequest JSON
// field, and plain urlencoded or multipart forms.
func DecodeRequest(r *http.Request, maxBytes int64) (Payload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Decode(body)
	}

	if raw := r.PostForm.Get("rawRequest"); raw != "" {
		return Decode([]byte(raw))
	}
	flat := make(map[string]any, len(r.PostForm))
	for k, vs := range r.PostForm {
		switch len(vs) {
		case 0:
		case 1:
			flat[k] = vs[0]
		default:
			list := make([]any, len(vs))
			for i, v := range vs {
				list[i] = v
			}
			flat[k] = list
		}
	}
	if len(flat) == 0 {
		return Payload{}, fmt.Errorf("%w: empty form", ErrMalformed)
	}
	return Payload{Shape: ShapeFlat, Flat: flat}, nil
}
