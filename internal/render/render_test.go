package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider/memory"
)

func TestExpand_AllSpellings(t *testing.T) {
	m := Expand(fields.Canonical{fields.BusinessLegalName: "Acme LLC"})

	for _, s := range []string{
		"business_legal_name",
		"{{business_legal_name}}",
		"[business_legal_name]",
		"[Business Legal Name]",
	} {
		assert.Equal(t, "Acme LLC", m[s], s)
	}
}

func TestExpand_MissingValuesBecomePlaceholders(t *testing.T) {
	m := Expand(fields.Canonical{fields.EIN: ""})

	assert.Equal(t, "[EIN]", m["{{ein}}"])
	assert.Equal(t, "[First Name POC]", m["{{first_name_poc}}"])
	assert.Equal(t, "[Phase Two Submission]", m["phase_two_submission"])
}

func TestExpand_EveryKeyHasBareAndCurly(t *testing.T) {
	c := fields.Canonical{fields.Field("custom_extra"): "x"}
	m := Expand(c)
	for _, def := range fields.Vocabulary() {
		assert.Contains(t, m, string(def.Field))
		assert.Contains(t, m, "{{"+string(def.Field)+"}}")
	}
	assert.Equal(t, "x", m["{{custom_extra}}"])
}

func TestRequests_LongestFirst(t *testing.T) {
	m := ReplacementMap{
		"first_name":         "Alice",
		"{{first_name}}":     "Alice",
		"first_name_poc":     "Bob",
		"{{first_name_poc}}": "Bob",
		"[EIN]":              "[EIN]",
		"email":              "a@b.c",
	}
	reqs := m.Requests()

	finds := make([]string, len(reqs))
	for i, r := range reqs {
		finds[i] = r.Find
	}
	assert.Equal(t, []string{"{{first_name_poc}}", "first_name_poc", "{{first_name}}", "first_name"}, finds)
}

func TestRenderer_Render(t *testing.T) {
	ctx := context.Background()
	ws := memory.NewWorkspace()
	folder := ws.AddFolder("Acme", "")
	ws.AddTemplate("tpl", "Overview", "Project {{project_name}} for first_name_poc / {{first_name}}. Signed: [Full Name]")

	m := Expand(fields.Canonical{
		fields.ProjectName:  "Solar Farm",
		fields.FirstNamePOC: "Bob",
		fields.FirstName:    "Alice",
	})
	doc, err := NewRenderer(ws).Render(ctx, "tpl", "Acme - Overview", folder.ID, m)
	require.NoError(t, err)

	body, _ := ws.Body(doc.ID)
	assert.Equal(t, "Project Solar Farm for Bob / Alice. Signed: [Full Name]", body)
}

func TestRenderer_ReplaceFailureReturnsDocument(t *testing.T) {
	ctx := context.Background()
	ws := memory.NewWorkspace()
	folder := ws.AddFolder("Acme", "")
	ws.AddTemplate("tpl", "NDA", "{{ein}}")
	ws.FailOn(memory.OpReplaceText, memory.Any, errors.New("rate limited"))

	doc, err := NewRenderer(ws).Render(ctx, "tpl", "NDA", folder.ID, Expand(nil))
	require.Error(t, err)
	assert.NotEmpty(t, doc.ID)
}

func TestExpand_TitleCaseAndLabelSpellings(t *testing.T) {
	m := Expand(fields.Canonical{
		fields.ZipIssuer:    "90210",
		fields.EIN:          "12-3456789",
		fields.FirstNamePOC: "Bob",
		fields.LinkedIn:     "in/bob",
	})

	for spelling, want := range map[string]string{
		"[Zip Issuer]":     "90210",
		"[ZIP Issuer]":     "90210",
		"[Ein]":            "12-3456789",
		"[EIN]":            "12-3456789",
		"[First Name Poc]": "Bob",
		"[First Name POC]": "Bob",
		"[Linkedin]":       "in/bob",
		"[LinkedIn]":       "in/bob",
	} {
		assert.Equal(t, want, m[spelling], spelling)
	}
	assert.Len(t, Spellings(fields.BusinessLegalName), 4)
}

func TestRenderer_BareWords(t *testing.T) {
	ctx := context.Background()
	ws := memory.NewWorkspace()
	folder := ws.AddFolder("Acme", "")
	ws.AddTemplate("tpl", "NDA", "EIN: ein, ZIP: [Zip Issuer]")
	m := Expand(fields.Canonical{fields.EIN: "12-3456789", fields.ZipIssuer: "90210"})

	doc, err := NewRenderer(ws).Render(ctx, "tpl", "default", folder.ID, m)
	require.NoError(t, err)
	body, _ := ws.Body(doc.ID)
	assert.Equal(t, "EIN: ein, ZIP: 90210", body)

	doc, err = NewRenderer(ws, WithBareWords(true)).Render(ctx, "tpl", "bare", folder.ID, m)
	require.NoError(t, err)
	body, _ = ws.Body(doc.ID)
	assert.Equal(t, "EIN: 12-3456789, ZIP: 90210", body)
}

func TestAllRequests_KeepsBareWords(t *testing.T) {
	m := ReplacementMap{"email": "a@b.c", "{{email}}": "a@b.c"}
	assert.Len(t, m.Requests(), 1)
	assert.Len(t, m.AllRequests(), 2)
}
