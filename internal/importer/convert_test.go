package importer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/testutil"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert_AssignsLocalIDs(t *testing.T) {
	c, err := Convert(validFullFile())
	require.NoError(t, err)

	require.NotNil(t, c.Budget)
	assert.Equal(t, domain.ID(1), c.Budget.ID)
	assert.Equal(t, domain.NodeBudget, c.Budget.Kind)
	assert.Equal(t, "Short film", c.Budget.Description)

	require.Len(t, c.Fringes, 1)
	payroll := c.Fringes[0].ID
	assert.Equal(t, domain.ID(2), payroll)

	require.Len(t, c.Nodes, 4)
	camera, op, ac, grip := c.Nodes[0], c.Nodes[1], c.Nodes[2], c.Nodes[3]
	assert.Equal(t, domain.NodeAccount, camera.Kind)
	assert.Equal(t, c.Budget.ID, camera.ParentID)
	assert.Equal(t, domain.NodeSubAccount, op.Kind)
	assert.Equal(t, camera.ID, op.ParentID)
	assert.Equal(t, []domain.ID{payroll}, op.Fringes)
	assert.Equal(t, 4.0, ac.Actual)
	assert.Equal(t, domain.NodeAccount, grip.Kind)

	require.Len(t, c.Groups, 1)
	assert.Equal(t, camera.ID, c.Groups[0].ParentID)
	assert.Equal(t, []domain.ID{op.ID, ac.ID}, c.Groups[0].Children)

	require.Len(t, c.Markups, 2)
	assert.Equal(t, []domain.ID{op.ID}, c.Markups[0].Children)
	assert.Equal(t, c.Budget.ID, c.Markups[1].ParentID)
	assert.Empty(t, c.Markups[1].Children)
}

func TestConvert_BuildsConsistentTree(t *testing.T) {
	c, err := Convert(validMinimalFile())
	require.NoError(t, err)

	var col testutil.Collector
	store, err := tree.Build(c, col.Sink())
	require.NoError(t, err)
	assert.Empty(t, col.Items)

	root, ok := store.Node(store.Root())
	require.True(t, ok)
	assert.InDelta(t, 20.0, root.Estimated(), 1e-9)
}

func TestConvert_UnknownRef(t *testing.T) {
	f := validMinimalFile()
	f.Groups = []GroupImport{{Name: "Crew", Members: []string{"nobody"}}}
	_, err := Convert(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown node ref "nobody"`)
}

func TestExport_RoundTrip(t *testing.T) {
	c, err := Convert(validFullFile())
	require.NoError(t, err)
	store, err := tree.Build(c, nil)
	require.NoError(t, err)

	exported := Export(store)
	assert.Empty(t, ValidateBudgetFile(exported))
	assert.Equal(t, "Feature", exported.Budget.Identifier)
	assert.Len(t, exported.Nodes, 4)
	assert.Len(t, exported.Fringes, 1)
	assert.Len(t, exported.Groups, 1)
	assert.Len(t, exported.Markups, 2)

	c2, err := Convert(exported)
	require.NoError(t, err)
	store2, err := tree.Build(c2, nil)
	require.NoError(t, err)

	r1, _ := store.Node(store.Root())
	r2, _ := store2.Node(store2.Root())
	assert.InDelta(t, r1.Estimated(), r2.Estimated(), 1e-9)
	assert.InDelta(t, r1.Actual, r2.Actual, 1e-9)
}

func TestExport_SkipsPlaceholders(t *testing.T) {
	store, err := tree.Build(testutil.NewScenario(), nil)
	require.NoError(t, err)
	require.NoError(t, store.UpsertNode(&domain.Node{
		ID:            -1,
		Kind:          domain.NodeSubAccount,
		ParentID:      testutil.ScenarioAccount,
		IsPlaceholder: true,
	}))
	require.NoError(t, store.AddToGroup(testutil.ScenarioGroup, []domain.ID{-1}))

	f := Export(store)
	assert.Len(t, f.Nodes, 3)
	require.Len(t, f.Groups, 1)
	assert.Equal(t, []string{"n100", "n101"}, f.Groups[0].Members)
	assert.Equal(t, ptrStr("n10"), f.Groups[0].ParentRef)
}

func TestLoadBudgetFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, validFullFile()))

	path := filepath.Join(t.TempDir(), "budget.json")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	f, err := LoadBudgetFile(path)
	require.NoError(t, err)
	assert.Equal(t, validFullFile(), f)

	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))
	_, err = LoadBudgetFile(path)
	assert.ErrorContains(t, err, "parsing budget file")
}
