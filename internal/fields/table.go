package fields

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var embeddedAliases []byte

// Rule maps one normalized raw label to a canonical field.
type Rule struct {
	Label string
	Field Field
}

// Table is an ordered alias table. Rule order is the application order.
type Table struct {
	Version int
	Rules   []Rule
}

type tableFile struct {
	Version int `yaml:"version"`
	Aliases []struct {
		Field  string   `yaml:"field"`
		Labels []string `yaml:"labels"`
	} `yaml:"aliases"`
}

// LoadTable parses an alias table and checks every target against the
// vocabulary.
func LoadTable(data []byte) (*Table, error) {
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}
	if tf.Version != VocabularyVersion {
		return nil, fmt.Errorf("alias table version %d does not match vocabulary version %d", tf.Version, VocabularyVersion)
	}
	t := &Table{Version: tf.Version}
	for _, entry := range tf.Aliases {
		f, ok := Lookup(entry.Field)
		if !ok {
			return nil, fmt.Errorf("alias table: unknown field %q", entry.Field)
		}
		for _, label := range entry.Labels {
			key := NormalizeLabel(label)
			if key == "" {
				return nil, fmt.Errorf("alias table: empty label for %s", f)
			}
			t.Rules = append(t.Rules, Rule{Label: key, Field: f})
		}
	}
	return t, nil
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// DefaultTable returns the embedded alias table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := LoadTable(embeddedAliases)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// NormalizeLabel lowercases, collapses whitespace and trims trailing
// ":", "?" and "*" so cosmetic label edits do not break the mapping.
func NormalizeLabel(label string) string {
	s := strings.ToLower(strings.Join(strings.Fields(label), " "))
	return strings.TrimSpace(strings.TrimRight(s, ":?* "))
}
