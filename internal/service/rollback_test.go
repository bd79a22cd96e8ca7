package service

import (
	"context"
	"errors"
	"testing"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected write failure")

func TestUpdateGroup_RollbackOnMemberFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	s := seed(t, newBudgetAPI(database, testutil.NewTestUoW(database)))

	clean := newBudgetAPI(database, testutil.NewTestUoW(database))
	g, err := clean.Create(ctx, domain.EntityGroup, s.account, domain.Patch{
		domain.FieldName:     "Crew",
		domain.FieldChildren: []domain.ID{s.s1},
	})
	require.NoError(t, err)

	failing := newBudgetAPI(database, &testutil.FailingWriteUoW{DB: database, Match: "SET group_id = ?,", Err: errInjected})
	_, err = failing.Update(ctx, domain.EntityGroup, g.ID(), domain.Patch{
		domain.FieldName:     "Renamed",
		domain.FieldChildren: []domain.ID{s.s2},
	})
	require.ErrorIs(t, err, errInjected)

	groups, err := clean.List(ctx, domain.EntityGroup, s.account, "")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Crew", groups[0].Group.Name)
	assert.Equal(t, []domain.ID{s.s1}, groups[0].Group.Children)
}

func TestCreateMarkup_RollbackOnChildLinkFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	clean := newBudgetAPI(database, testutil.NewTestUoW(database))
	s := seed(t, clean)

	failing := newBudgetAPI(database, &testutil.FailingWriteUoW{DB: database, Match: "INSERT INTO markup_children", Err: errInjected})
	_, err := failing.Create(ctx, domain.EntityMarkup, s.account, domain.Patch{
		domain.FieldUnit:     "percent",
		domain.FieldRate:     0.2,
		domain.FieldChildren: []domain.ID{s.s1, s.s2},
	})
	require.ErrorIs(t, err, errInjected)

	markups, err := clean.List(ctx, domain.EntityMarkup, s.account, "")
	require.NoError(t, err)
	assert.Empty(t, markups)
}

func TestDeleteAccount_RollbackLeavesSubtree(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	clean := newBudgetAPI(database, testutil.NewTestUoW(database))
	s := seed(t, clean)

	failing := newBudgetAPI(database, &testutil.FailingWriteUoW{DB: database, Err: errInjected})
	require.ErrorIs(t, failing.Delete(ctx, domain.EntityAccount, s.account), errInjected)

	contents, err := clean.LoadBudget(ctx, s.budget)
	require.NoError(t, err)
	assert.Len(t, contents.Nodes, 3)
}

func TestImportBudget_RollbackOnMarkupFailure(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	clean := newBudgetAPI(database, testutil.NewTestUoW(database))

	contents := testutil.NewScenario()
	contents.Markups = []*domain.Markup{
		testutil.NewTestPercentMarkup(600, testutil.ScenarioAccount, 0.1, testutil.ScenarioS1),
	}
	failing := newBudgetAPI(database, &testutil.FailingWriteUoW{DB: database, Match: "INSERT INTO markup_children", Err: errInjected})
	_, err := failing.ImportBudget(ctx, contents)
	require.ErrorIs(t, err, errInjected)

	budgets, err := clean.ListBudgets(ctx)
	require.NoError(t, err)
	assert.Empty(t, budgets)
}
