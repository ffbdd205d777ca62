package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/materialize"
)

func TestReadTemplates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nda.txt"), []byte("NDA for {{business_legal_name}}"), 0o600))

	got, err := readTemplates(dir, materialize.Templates{NDA: "nda", PowerOfAttorney: "nda"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"nda": []byte("NDA for {{business_legal_name}}")}, got)

	_, err = readTemplates(dir, materialize.Templates{NDA: "nda", FormC: "form_c"})
	assert.ErrorContains(t, err, "form_c")

	got, err = readTemplates("", materialize.Templates{NDA: "nda"})
	require.NoError(t, err)
	assert.Nil(t, got)
}
