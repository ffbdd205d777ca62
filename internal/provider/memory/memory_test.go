package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/provider"
)

func TestWorkspace_CopyAndReplace(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace()
	root := w.AddFolder("Leads", "")
	w.AddTemplate("tpl-nda", "NDA", "Agreement with {{business_legal_name}} ([Business Legal Name])")

	doc, err := w.CopyTemplate(ctx, "tpl-nda", "Acme - NDA", root.ID)
	require.NoError(t, err)
	assert.True(t, doc.HasParent(root.ID))

	err = w.BatchReplaceText(ctx, doc.ID, []provider.Replacement{
		{Find: "{{business_legal_name}}", Replace: "Acme"},
		{Find: "[Business Legal Name]", Replace: "Acme"},
	})
	require.NoError(t, err)

	body, ok := w.Body(doc.ID)
	require.True(t, ok)
	assert.Equal(t, "Agreement with Acme (Acme)", body)

	tpl, _ := w.Body("tpl-nda")
	assert.Contains(t, tpl, "{{business_legal_name}}", "template must be untouched")
}

func TestWorkspace_FailOn(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace()
	root := w.AddFolder("Leads", "")
	w.AddTemplate("a", "A", "")
	w.AddTemplate("b", "B", "")
	boom := errors.New("quota")

	w.FailOn(OpCopyTemplate, "a", boom)
	_, err := w.CopyTemplate(ctx, "a", "A copy", root.ID)
	assert.ErrorIs(t, err, boom)
	_, err = w.CopyTemplate(ctx, "b", "B copy", root.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, w.Calls(OpCopyTemplate))

	w.FailOn(OpCopyTemplate, "a", nil)
	_, err = w.CopyTemplate(ctx, "a", "A copy", root.ID)
	assert.NoError(t, err)
}

func TestWorkspace_FoldersAndMove(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace()
	one := w.AddFolder("Phase One", "")
	two := w.AddFolder("Phase Two", "")

	c, err := w.CreateFolder(ctx, "Acme", one.ID)
	require.NoError(t, err)

	found, ok, err := w.FindFolder(ctx, "Acme", one.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.ID, found.ID)

	require.NoError(t, w.MoveFolder(ctx, c.ID, two.ID))
	assert.Empty(t, w.Children(one.ID))
	require.Len(t, w.Children(two.ID), 1)

	_, err = w.GetFile(ctx, "missing")
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestWorkspace_AddRoot(t *testing.T) {
	ctx := context.Background()
	w := NewWorkspace()
	root := w.AddRoot("phase-one", "Phase One")
	assert.Equal(t, "phase-one", root.ID)
	assert.True(t, root.IsFolder())
	assert.Equal(t, root, w.AddRoot("phase-one", "Other"))

	c, err := w.CreateFolder(ctx, "Acme", "phase-one")
	require.NoError(t, err)
	assert.Equal(t, []string{"phase-one"}, c.Parents)
}

func TestTable_AppendReadUpdate(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()

	require.NoError(t, tbl.AppendRow(ctx, "s", "Leads!A:C", []string{"id", "status", "name"}))
	require.NoError(t, tbl.AppendRow(ctx, "s", "Leads!A:C", []string{"L1", "NEW", "Acme"}))

	rows, err := tbl.ReadRows(ctx, "s", "Leads!A:C")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id", "status", "name"}, {"L1", "NEW", "Acme"}}, rows)

	header, err := tbl.ReadRows(ctx, "s", "Leads!A1:C1")
	require.NoError(t, err)
	assert.Len(t, header, 1)

	require.NoError(t, tbl.UpdateRow(ctx, "s", "Leads!A2:C2", []string{"L1", "DONE", "Acme"}))
	assert.Equal(t, "DONE", tbl.Rows("s", "Leads")[1][1])
}

func TestTable_UpdateRowIfMatch(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	require.NoError(t, tbl.AppendRow(ctx, "s", "Leads!A:B", []string{"L1", "1"}))

	err := tbl.UpdateRowIfMatch(ctx, "s", "Leads!A1:B1", []string{"L1", "0"}, []string{"L1", "2"})
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	err = tbl.UpdateRowIfMatch(ctx, "s", "Leads!A1:B1", []string{"L1", "1"}, []string{"L1", "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"L1", "2"}, tbl.Rows("s", "Leads")[0])
}
