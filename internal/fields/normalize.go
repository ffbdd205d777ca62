package fields

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Raw is an inbound submission: free-text labels or already namespaced keys
// mapped to scalars, lists or nested objects.
type Raw map[string]any

// Canonical holds values keyed by vocabulary fields only.
type Canonical map[Field]string

// Get returns the value for f, or "" when absent.
func (c Canonical) Get(f Field) string { return c[f] }

// Clone returns an independent copy.
func (c Canonical) Clone() Canonical {
	out := make(Canonical, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Strings converts to a plain string-keyed map.
func (c Canonical) Strings() map[string]string {
	out := make(map[string]string, len(c))
	for k, v := range c {
		out[string(k)] = v
	}
	return out
}

// FromStrings keeps the entries of m whose keys are vocabulary fields.
func FromStrings(m map[string]string) Canonical {
	out := make(Canonical, len(m))
	for k, v := range m {
		if f, ok := Lookup(k); ok {
			out[f] = v
		}
	}
	return out
}

// Normalizer applies an alias table to raw submissions.
type Normalizer struct {
	table *Table
}

// NewNormalizer builds a normalizer; a nil table means the embedded one.
func NewNormalizer(t *Table) *Normalizer {
	if t == nil {
		t = DefaultTable()
	}
	return &Normalizer{table: t}
}

// Normalize maps raw onto the vocabulary.
//
// Aliases are applied in table order. A field touched by any alias or
// pass-through key is present in the result, "" when every candidate was
// empty. An empty value never replaces a non-empty one, and a non-empty
// value under a canonical key of raw wins over aliased values.
func (n *Normalizer) Normalize(raw Raw) Canonical {
	out := make(Canonical)

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byLabel := make(map[string]string, len(raw))
	for _, k := range keys {
		label := NormalizeLabel(k)
		v := Stringify(raw[k])
		if prev, seen := byLabel[label]; seen && prev != "" {
			continue
		}
		byLabel[label] = v
	}

	for _, rule := range n.table.Rules {
		v, ok := byLabel[rule.Label]
		if !ok {
			continue
		}
		set(out, rule.Field, v)
	}

	for _, k := range keys {
		f, ok := Lookup(k)
		if !ok {
			continue
		}
		set(out, f, Stringify(raw[k]))
	}
	return out
}

func set(out Canonical, f Field, v string) {
	if v == "" {
		if _, seen := out[f]; !seen {
			out[f] = ""
		}
		return
	}
	out[f] = v
}

// IsEmpty reports whether v is semantically absent: nil, blank, or the
// literal text "null" or "unanswered" in any case.
func IsEmpty(v any) bool {
	return Stringify(v) == ""
}

// Stringify renders a raw value as a single string, "" for empty values.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return cleanScalar(t)
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case []string:
		parts := make([]any, len(t))
		for i, s := range t {
			parts[i] = s
		}
		return joinList(parts)
	case []any:
		return joinList(t)
	case map[string]any:
		return stringifyObject(t)
	default:
		return cleanScalar(fmt.Sprint(t))
	}
}

func cleanScalar(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "unanswered":
		return ""
	}
	return s
}

func joinList(items []any) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if s := Stringify(it); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// stringifyObject flattens the nested objects form builders emit for
// address and full-name widgets.
func stringifyObject(m map[string]any) string {
	if _, ok := m["addr_line1"]; ok {
		return addressObject(m)
	}
	if _, ok := m["first"]; ok {
		return joinNonEmpty(" ", Stringify(m["prefix"]), Stringify(m["first"]), Stringify(m["middle"]), Stringify(m["last"]), Stringify(m["suffix"]))
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := Stringify(m[k]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func addressObject(m map[string]any) string {
	stateZip := joinNonEmpty(" ", Stringify(m["state"]), Stringify(m["postal"]))
	locality := joinNonEmpty(", ", Stringify(m["city"]), stateZip)
	return joinNonEmpty("\n",
		Stringify(m["addr_line1"]),
		Stringify(m["addr_line2"]),
		locality,
		Stringify(m["country"]),
	)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
