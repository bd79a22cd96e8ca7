package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T, api BudgetAPI) *engine.Processor {
	t.Helper()
	p := engine.NewProcessor(api, engine.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() {
		p.Close()
		p.Wait()
	})
	return p
}

func TestPipeline_EditsReachTheDatabase(t *testing.T) {
	api, _ := setupBudgetAPI(t)
	ctx := context.Background()
	s := seed(t, api)

	p := newPipeline(t, api)
	require.NoError(t, <-p.Load(ctx, s.budget))

	require.NoError(t, p.Dispatch(ctx, engine.SetField(s.s1, domain.FieldRate, 20.0)))
	p.Wait()
	assert.Empty(t, p.Unsynced())

	contents, err := api.LoadBudget(ctx, s.budget)
	require.NoError(t, err)
	var s1 *domain.Node
	for _, n := range contents.Nodes {
		if n.ID == s.s1 {
			s1 = n
		}
	}
	require.NotNil(t, s1)
	assert.Equal(t, 20.0, *s1.Rate)

	acc, ok := p.Snapshot().Node(s.account)
	require.True(t, ok)
	assert.InDelta(t, 45.0, acc.Estimated(), 1e-9)
}

func TestPipeline_PlaceholderBecomesRow(t *testing.T) {
	api, _ := setupBudgetAPI(t)
	ctx := context.Background()
	s := seed(t, api)

	p := newPipeline(t, api)
	require.NoError(t, <-p.Load(ctx, s.budget))

	temp, err := p.AddRow(ctx, s.account, "", -1)
	require.NoError(t, err)
	require.NoError(t, p.Dispatch(ctx, engine.SetField(temp, domain.FieldDescription, "Dolly")))
	require.NoError(t, p.Dispatch(ctx, engine.SetField(temp, domain.FieldQuantity, 2.0)))
	require.NoError(t, p.Dispatch(ctx, engine.SetField(temp, domain.FieldRate, 150.0)))
	p.Wait()

	listed, err := api.List(ctx, domain.EntitySubAccount, s.account, "dolly")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	created := listed[0].Node
	assert.Equal(t, 2.0, *created.Quantity)

	_, stillTemp := p.Snapshot().Node(temp)
	assert.False(t, stillTemp)
	n, ok := p.Snapshot().Node(created.ID)
	require.True(t, ok)
	assert.InDelta(t, 300.0, n.NominalValue, 1e-9)
}

func TestPipeline_GroupAndMarkupRoundTrip(t *testing.T) {
	api, _ := setupBudgetAPI(t)
	ctx := context.Background()
	s := seed(t, api)

	p := newPipeline(t, api)
	require.NoError(t, <-p.Load(ctx, s.budget))

	require.NoError(t, p.Dispatch(ctx, engine.GroupAdded(&domain.Group{ParentID: s.account, Name: "Crew", Children: []domain.ID{s.s1, s.s2}})))
	require.NoError(t, p.Dispatch(ctx, engine.MarkupAdded(&domain.Markup{
		ParentID: s.account, Unit: domain.UnitPercent, Rate: domain.Float(0.1), Children: []domain.ID{s.s1},
	})))
	p.Wait()

	fresh := newPipeline(t, api)
	require.NoError(t, <-fresh.Load(ctx, s.budget))
	rows := fresh.Materialize(s.account)

	var kinds []domain.RowKind
	for _, r := range rows {
		kinds = append(kinds, r.Kind)
	}
	assert.Equal(t, []domain.RowKind{domain.RowData, domain.RowData, domain.RowGroup, domain.RowMarkup}, kinds)

	acc, ok := fresh.Snapshot().Node(s.account)
	require.True(t, ok)
	assert.InDelta(t, 27.0, acc.Estimated(), 1e-9)
}
