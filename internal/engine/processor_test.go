package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/placeholder"
	"github.com/alexanderramin/budgetcore/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const testDebounce = 20 * time.Millisecond

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(t *testing.T, api API, opts Options) *Processor {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.SearchDebounce == 0 {
		opts.SearchDebounce = testDebounce
	}
	p := NewProcessor(api, opts)
	t.Cleanup(func() {
		p.Close()
		p.Wait()
	})
	return p
}

// setupProcessor returns a processor with the reference scenario loaded.
func setupProcessor(t *testing.T) (*Processor, *fakeAPI) {
	t.Helper()
	api := newFakeAPI(testutil.NewScenario())
	p := newTestProcessor(t, api, Options{})
	require.NoError(t, <-p.Load(context.Background(), testutil.ScenarioBudget))
	return p, api
}

type recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
}

func (r *recorder) failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Failure
	for _, u := range r.updates {
		out = append(out, u.Failures...)
	}
	return out
}

// remapUpdate returns the first update carrying a remap for from.
func (r *recorder) remapUpdate(from string) (Update, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.updates {
		if _, ok := u.Remaps[from]; ok {
			return u, true
		}
	}
	return Update{}, false
}

func findRow(rows []domain.Row, id string) (domain.Row, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Row{}, false
}

func storeNode(t *testing.T, p *Processor, id domain.ID) *domain.Node {
	t.Helper()
	n, ok := p.Snapshot().Node(id)
	require.True(t, ok, "node %d should be present", id)
	return n
}

func TestLoad_BuildsRows(t *testing.T) {
	p, _ := setupProcessor(t)

	assert.Equal(t, testutil.ScenarioBudget, p.Root())
	rows := p.Materialize(testutil.ScenarioAccount)
	require.Len(t, rows, 3)
	assert.Equal(t, domain.DataRowID(testutil.ScenarioS1), rows[0].ID)
	assert.Equal(t, domain.DataRowID(testutil.ScenarioS2), rows[1].ID)
	assert.Equal(t, domain.GroupRowID(testutil.ScenarioGroup), rows[2].ID)
	assert.InDelta(t, 25.0, rows[2].Totals.Estimated, 1e-9)
}

func TestLoad_UnknownBudgetFails(t *testing.T) {
	api := newFakeAPI(testutil.NewScenario())
	p := newTestProcessor(t, api, Options{})

	err := <-p.Load(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, p.Root())
}

func TestLoad_NewerLoadSupersedesOlder(t *testing.T) {
	release := make(chan struct{})
	api := newFakeAPI(testutil.NewScenario())
	api.onLoad = func(id domain.ID) (domain.BudgetContents, error) {
		if id == testutil.ScenarioBudget {
			<-release
			return testutil.NewScenario(), nil
		}
		return domain.BudgetContents{Budget: testutil.NewTestBudget(id)}, nil
	}
	p := newTestProcessor(t, api, Options{})
	ctx := context.Background()

	first := p.Load(ctx, testutil.ScenarioBudget)
	second := p.Load(ctx, 2)
	require.NoError(t, <-second)
	assert.Equal(t, domain.ID(2), p.Root())

	close(release)
	assert.ErrorIs(t, <-first, ErrSuperseded)
	assert.Equal(t, domain.ID(2), p.Root(), "stale load must not replace the store")
}

func TestDispatch_DataChangePropagatesAndPersists(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldRate, 20.0)))

	rows := p.Materialize(testutil.ScenarioAccount)
	s1, ok := findRow(rows, domain.DataRowID(testutil.ScenarioS1))
	require.True(t, ok)
	assert.InDelta(t, 40.0, s1.Node.NominalValue, 1e-9)
	assert.InDelta(t, 45.0, storeNode(t, p, testutil.ScenarioAccount).Estimated(), 1e-9)

	p.Wait()
	calls := api.updateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, EntityRef{Kind: domain.EntitySubAccount, ID: testutil.ScenarioS1}, calls[0].ref)
	assert.Equal(t, 20.0, *calls[0].patch.Float(domain.FieldRate))
	assert.Empty(t, p.Unsynced())
}

func TestDispatch_RejectsBeforeApplying(t *testing.T) {
	tests := []struct {
		name    string
		intent  Intent
		wantErr error
	}{
		{
			name:    "absent node",
			intent:  SetField(999, domain.FieldRate, 1.0),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "computed field",
			intent:  SetField(testutil.ScenarioS1, domain.FieldNominalValue, 1.0),
			wantErr: domain.ErrInvalidMutation,
		},
		{
			name:    "leaf field on a parent",
			intent:  SetField(testutil.ScenarioAccount, domain.FieldRate, 1.0),
			wantErr: domain.ErrInvalidMutation,
		},
		{
			name:    "empty data change",
			intent:  DataChange(testutil.ScenarioS1),
			wantErr: domain.ErrInvalidMutation,
		},
		{
			name:    "delete root",
			intent:  RowDelete(testutil.ScenarioBudget),
			wantErr: domain.ErrInvalidMutation,
		},
		{
			name:    "delete absent row",
			intent:  RowDelete(testutil.ScenarioS1, 999),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "unknown group",
			intent:  RowAddToGroup(999, testutil.ScenarioS1),
			wantErr: domain.ErrNotFound,
		},
		{
			name:    "unknown intent",
			intent:  Intent{Kind: "rowShuffle"},
			wantErr: domain.ErrInvalidMutation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, api := setupProcessor(t)
			before := p.Materialize(testutil.ScenarioAccount)

			err := p.Dispatch(context.Background(), tt.intent)
			assert.ErrorIs(t, err, tt.wantErr)

			p.Wait()
			assert.Equal(t, before, p.Materialize(testutil.ScenarioAccount))
			assert.Empty(t, api.updateCalls())
			assert.Empty(t, api.deleteCalls())
		})
	}
}

func TestRowAdd_CreatesOnceRequiredFieldsArePresent(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	release := make(chan struct{})
	api.onCreate = func(kind domain.EntityKind, parent domain.ID, patch domain.Patch) (domain.Entity, error) {
		<-release
		n := &domain.Node{ID: 1000, Kind: domain.NodeSubAccount, ParentID: parent,
			Quantity: patch.Float(domain.FieldQuantity), Rate: patch.Float(domain.FieldRate)}
		return domain.Entity{Kind: kind, Node: n}, nil
	}
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	temp, err := p.AddRow(ctx, testutil.ScenarioAccount, "", -1)
	require.NoError(t, err)
	assert.True(t, temp.IsTemp())
	row, ok := findRow(p.Materialize(testutil.ScenarioAccount), domain.DataRowID(temp))
	require.True(t, ok)
	assert.True(t, row.IsPlaceholder())

	require.NoError(t, p.Dispatch(ctx, SetField(temp, domain.FieldDescription, "Camera rental")))
	require.NoError(t, p.Dispatch(ctx, SetField(temp, domain.FieldQuantity, 3.0)))
	assert.Empty(t, api.createCalls(), "no create before rate is entered")

	require.NoError(t, p.Dispatch(ctx, SetField(temp, domain.FieldRate, 100.0)))
	require.Eventually(t, func() bool { return len(api.createCalls()) == 1 }, time.Second, 5*time.Millisecond)

	// Edits while the create is in flight stay local and follow up afterwards.
	require.NoError(t, p.Dispatch(ctx, SetField(temp, domain.FieldMultiplier, 3.0)))
	assert.InDelta(t, 900.0, storeNode(t, p, temp).NominalValue, 1e-9)
	state, ok := p.Placeholder(temp)
	require.True(t, ok)
	assert.Equal(t, placeholder.PendingCreate, state.State)

	close(release)
	p.Wait()

	require.Len(t, api.createCalls(), 1)
	n := storeNode(t, p, 1000)
	assert.False(t, n.IsPlaceholder)
	assert.Equal(t, "Camera rental", n.Description)
	assert.InDelta(t, 900.0, n.NominalValue, 1e-9)
	_, stillTemp := p.Snapshot().Node(temp)
	assert.False(t, stillTemp)

	var followup []updateCall
	for _, c := range api.updateCalls() {
		if c.ref.ID == 1000 {
			followup = append(followup, c)
		}
	}
	require.Len(t, followup, 1)
	assert.Equal(t, 3.0, *followup[0].patch.Float(domain.FieldMultiplier))

	upd, ok := rec.remapUpdate(domain.DataRowID(temp))
	require.True(t, ok)
	assert.Equal(t, domain.DataRowID(1000), upd.Remaps[domain.DataRowID(temp)])
	_, carriesNew := findRow(upd.Rows, domain.DataRowID(1000))
	assert.True(t, carriesNew, "remap arrives with the rows that use the new id")

	state, ok = p.Placeholder(temp)
	require.True(t, ok)
	assert.Equal(t, placeholder.Activated, state.State)
}

func TestRowAdd_CreateFailureReturnsToEditing(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	api.setCreateErr(errBoom)
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	temp, err := p.AddRow(ctx, testutil.ScenarioAccount, domain.NodeSubAccount, 0)
	require.NoError(t, err)
	in := DataChange(temp,
		domain.FieldChange{Field: domain.FieldQuantity, New: 2.0},
		domain.FieldChange{Field: domain.FieldRate, New: 7.0},
	)
	require.NoError(t, p.Dispatch(ctx, in))
	p.Wait()

	state, ok := p.Placeholder(temp)
	require.True(t, ok)
	assert.Equal(t, placeholder.Editing, state.State)
	assert.InDelta(t, 14.0, storeNode(t, p, temp).NominalValue, 1e-9, "entered data is kept")

	failures := rec.failures()
	require.Len(t, failures, 1)
	assert.Equal(t, in.ID, failures[0].IntentID)
	assert.Equal(t, OpCreate, failures[0].Op)
	assert.ErrorIs(t, failures[0], domain.ErrPersistence)
	assert.ErrorIs(t, failures[0], errBoom)

	api.setCreateErr(nil)
	require.NoError(t, p.Retry(ctx, EntityRef{Kind: domain.EntitySubAccount, ID: temp}))
	p.Wait()
	assert.Len(t, api.createCalls(), 2)
	n := storeNode(t, p, 1000)
	assert.Equal(t, testutil.ScenarioAccount, n.ParentID)
	assert.Equal(t, domain.DataRowID(1000), p.Materialize(testutil.ScenarioAccount)[0].ID)
}

func TestRowDelete_PlaceholderMakesNoCall(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()

	temp, err := p.AddRow(ctx, testutil.ScenarioAccount, "", -1)
	require.NoError(t, err)
	require.NoError(t, p.Dispatch(ctx, RowDelete(temp)))
	p.Wait()

	assert.Empty(t, api.deleteCalls())
	_, ok := findRow(p.Materialize(testutil.ScenarioAccount), domain.DataRowID(temp))
	assert.False(t, ok)
}

func TestRowDelete_RemovesRowAndPersists(t *testing.T) {
	p, api := setupProcessor(t)

	require.NoError(t, p.Dispatch(context.Background(), RowDelete(testutil.ScenarioS2)))

	rows := p.Materialize(testutil.ScenarioAccount)
	require.Len(t, rows, 2)
	group, ok := findRow(rows, domain.GroupRowID(testutil.ScenarioGroup))
	require.True(t, ok)
	assert.Equal(t, []domain.ID{testutil.ScenarioS1}, group.Children)
	assert.InDelta(t, 20.0, group.Totals.Estimated, 1e-9)

	p.Wait()
	assert.Equal(t, []EntityRef{{Kind: domain.EntitySubAccount, ID: testutil.ScenarioS2}}, api.deleteCalls())
}

func TestRowDelete_BlockedWhileMarkupIsCreated(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	release := make(chan struct{})
	api.onCreate = func(kind domain.EntityKind, parent domain.ID, patch domain.Patch) (domain.Entity, error) {
		<-release
		m := &domain.Markup{ID: 700, ParentID: parent}
		if err := m.Apply(patch); err != nil {
			return domain.Entity{}, err
		}
		return domain.Entity{Kind: kind, Markup: m}, nil
	}
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	mid, err := p.dispatch(ctx, MarkupAdded(&domain.Markup{
		ParentID: testutil.ScenarioAccount,
		Unit:     domain.UnitPercent,
		Rate:     domain.Float(0.1),
		Children: []domain.ID{testutil.ScenarioS1},
	}))
	require.NoError(t, err)
	assert.True(t, mid.IsTemp())
	assert.InDelta(t, 2.0, storeNode(t, p, testutil.ScenarioS1).MarkupContribution, 1e-9)

	err = p.Dispatch(ctx, RowDelete(testutil.ScenarioS1))
	assert.ErrorIs(t, err, domain.ErrInvalidMutation)
	err = p.Dispatch(ctx, MarkupDelete(mid))
	assert.ErrorIs(t, err, domain.ErrInvalidMutation)

	close(release)
	p.Wait()

	_, ok := p.Snapshot().Markup(700)
	assert.True(t, ok)
	upd, ok := rec.remapUpdate(domain.MarkupRowID(mid))
	require.True(t, ok)
	assert.Equal(t, domain.MarkupRowID(700), upd.Remaps[domain.MarkupRowID(mid)])

	require.NoError(t, p.Dispatch(ctx, RowDelete(testutil.ScenarioS1)))
	p.Wait()
	assert.Contains(t, api.deleteCalls(), EntityRef{Kind: domain.EntitySubAccount, ID: testutil.ScenarioS1})
}

func TestUpdate_FailureIsReportedAndRetried(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	api.setUpdateErr(errBoom)
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	in := SetField(testutil.ScenarioS1, domain.FieldDescription, "Lenses")
	require.NoError(t, p.Dispatch(ctx, in))
	p.Wait()

	failures := rec.failures()
	require.Len(t, failures, 1)
	assert.Equal(t, in.ID, failures[0].IntentID)
	assert.Equal(t, IntentDataChange, failures[0].Intent)
	assert.ErrorIs(t, failures[0], domain.ErrPersistence)
	assert.Equal(t, "Lenses", storeNode(t, p, testutil.ScenarioS1).Description, "local value is kept")

	unsynced := p.Unsynced()
	require.Len(t, unsynced, 1)
	ref := EntityRef{Kind: domain.EntitySubAccount, ID: testutil.ScenarioS1}
	assert.Equal(t, ref, unsynced[0].Ref)
	assert.ErrorIs(t, unsynced[0].Err, errBoom)

	api.setUpdateErr(nil)
	require.NoError(t, p.Retry(ctx, ref))
	p.Wait()
	assert.Empty(t, p.Unsynced())
	assert.Len(t, rec.failures(), 1)

	err := p.Retry(ctx, ref)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_SupersededResultIsDiscarded(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	release := make(chan struct{})
	api.onUpdate = func(kind domain.EntityKind, id domain.ID, patch domain.Patch) (domain.Entity, error) {
		desc := patch.Text(domain.FieldDescription)
		if desc == "first" {
			<-release
		}
		n := testutil.NewTestSubAccount(id, testutil.ScenarioAccount,
			testutil.WithQuantity(2), testutil.WithRate(10), testutil.WithDescription(desc))
		return domain.Entity{Kind: kind, Node: n}, nil
	}

	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldDescription, "first")))
	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldDescription, "second")))
	require.Eventually(t, func() bool { return len(p.Unsynced()) == 0 }, time.Second, 5*time.Millisecond)

	close(release)
	p.Wait()
	assert.Equal(t, "second", storeNode(t, p, testutil.ScenarioS1).Description)
	assert.Len(t, api.updateCalls(), 2)
}

func TestGroupAdded_ActivatesWithServerID(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	gid, err := p.dispatch(ctx, GroupAdded(&domain.Group{
		ParentID: testutil.ScenarioAccount,
		Name:     "Crew",
		Color:    "#00ff00",
		Children: []domain.ID{testutil.ScenarioS2},
	}))
	require.NoError(t, err)
	assert.True(t, gid.IsTemp())
	p.Wait()

	creates := api.createCalls()
	require.Len(t, creates, 1)
	assert.Equal(t, []domain.ID{testutil.ScenarioS2}, creates[0].patch.IDs(domain.FieldChildren))

	snap := p.Snapshot()
	g, ok := snap.Group(1000)
	require.True(t, ok)
	assert.Equal(t, "Crew", g.Name)
	assert.Equal(t, domain.ID(1000), *storeNode(t, p, testutil.ScenarioS2).Group)
	old, ok := snap.Group(testutil.ScenarioGroup)
	require.True(t, ok)
	assert.Equal(t, []domain.ID{testutil.ScenarioS1}, old.Children)

	upd, ok := rec.remapUpdate(domain.GroupRowID(gid))
	require.True(t, ok)
	assert.Equal(t, domain.GroupRowID(1000), upd.Remaps[domain.GroupRowID(gid)])
}

func TestGroupAdded_CreateFailureRollsBack(t *testing.T) {
	p, api := setupProcessor(t)
	api.setCreateErr(errBoom)
	rec := &recorder{}
	p.Subscribe(testutil.ScenarioAccount, rec.record)

	gid, err := p.dispatch(context.Background(), GroupAdded(&domain.Group{ParentID: testutil.ScenarioAccount, Name: "Empty"}))
	require.NoError(t, err)
	p.Wait()

	_, ok := p.Snapshot().Group(gid)
	assert.False(t, ok)
	require.Len(t, rec.failures(), 1)
	assert.Equal(t, EntityRef{Kind: domain.EntityGroup, ID: gid}, rec.failures()[0].Ref)
}

func TestGroupMembership_PersistsChildren(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()

	require.NoError(t, p.Dispatch(ctx, RowRemoveFromGroup(testutil.ScenarioGroup, testutil.ScenarioS2)))
	p.Wait()

	calls := api.updateCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, EntityRef{Kind: domain.EntityGroup, ID: testutil.ScenarioGroup}, calls[0].ref)
	assert.Equal(t, []domain.ID{testutil.ScenarioS1}, calls[0].patch.IDs(domain.FieldChildren))
	assert.Nil(t, storeNode(t, p, testutil.ScenarioS2).Group)
}

func TestFringeLifecycle(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()

	fid, err := p.dispatch(ctx, FringeAdded(&domain.Fringe{Name: "Payroll tax", Unit: domain.UnitPercent, Rate: domain.Float(0.5)}))
	require.NoError(t, err)
	assert.True(t, fid.IsTemp())

	err = p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldFringes, []domain.ID{fid}))
	assert.ErrorIs(t, err, domain.ErrInvalidMutation, "temp fringes cannot be attached")

	p.Wait()
	creates := api.createCalls()
	require.Len(t, creates, 1)
	assert.Equal(t, testutil.ScenarioBudget, creates[0].ref.ID)

	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldFringes, []domain.ID{1000})))
	assert.InDelta(t, 10.0, storeNode(t, p, testutil.ScenarioS1).AccumulatedFringeContribution, 1e-9)

	require.NoError(t, p.Dispatch(ctx, FringeDelete(1000)))
	assert.Empty(t, storeNode(t, p, testutil.ScenarioS1).Fringes)
	p.Wait()
	assert.Contains(t, api.deleteCalls(), EntityRef{Kind: domain.EntityFringe, ID: 1000})
}

func TestFetch_MirrorsLevelAndKeepsLocalState(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()

	api.setUpdateErr(errBoom)
	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldDescription, "local")))
	p.Wait()
	temp, err := p.AddRow(ctx, testutil.ScenarioAccount, "", -1)
	require.NoError(t, err)

	api.onList = func(kind domain.EntityKind, parent domain.ID, _ string) ([]domain.Entity, error) {
		return []domain.Entity{
			{Kind: kind, Node: testutil.NewTestSubAccount(testutil.ScenarioS1, parent, testutil.WithDescription("server"))},
			{Kind: kind, Node: testutil.NewTestSubAccount(102, parent, testutil.WithQuantity(1), testutil.WithRate(1))},
		}, nil
	}
	require.NoError(t, <-p.Fetch(ctx, domain.EntitySubAccount, testutil.ScenarioAccount))

	snap := p.Snapshot()
	s1, ok := snap.Node(testutil.ScenarioS1)
	require.True(t, ok)
	assert.Equal(t, "local", s1.Description, "unsynced entity keeps its local state")
	_, ok = snap.Node(testutil.ScenarioS2)
	assert.False(t, ok, "entity missing from the listing is removed")
	_, ok = snap.Node(102)
	assert.True(t, ok)
	_, ok = snap.Node(temp)
	assert.True(t, ok, "placeholders are untouched")
}

func TestFetch_SwitchingParentSupersedesOlderFetch(t *testing.T) {
	contents := testutil.NewScenario()
	contents.Nodes = append(contents.Nodes, testutil.NewTestAccount(20, testutil.ScenarioBudget))
	api := newFakeAPI(contents)
	release := make(chan struct{})
	api.onList = func(kind domain.EntityKind, parent domain.ID, _ string) ([]domain.Entity, error) {
		if parent == testutil.ScenarioAccount {
			<-release
			return nil, nil
		}
		return []domain.Entity{{Kind: kind, Node: testutil.NewTestSubAccount(200, parent, testutil.WithQuantity(1), testutil.WithRate(3))}}, nil
	}
	p := newTestProcessor(t, api, Options{})
	ctx := context.Background()
	require.NoError(t, <-p.Load(ctx, testutil.ScenarioBudget))

	first := p.Fetch(ctx, domain.EntitySubAccount, testutil.ScenarioAccount)
	second := p.Fetch(ctx, domain.EntitySubAccount, 20)
	require.NoError(t, <-second)
	assert.InDelta(t, 3.0, storeNode(t, p, 20).Estimated(), 1e-9)

	close(release)
	assert.ErrorIs(t, <-first, ErrSuperseded)
	assert.Len(t, p.Materialize(testutil.ScenarioAccount), 3, "stale empty listing was not applied")
}

func TestSearch_DebouncesQueries(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	api.onList = func(kind domain.EntityKind, parent domain.ID, search string) ([]domain.Entity, error) {
		return []domain.Entity{{Kind: kind, Node: testutil.NewTestSubAccount(300, parent, testutil.WithDescription(search))}}, nil
	}

	var (
		mu      sync.Mutex
		results [][]domain.Entity
	)
	fn := func(ents []domain.Entity, err error) {
		assert.NoError(t, err)
		mu.Lock()
		results = append(results, ents)
		mu.Unlock()
	}
	for _, q := range []string{"c", "ca", "cam"} {
		p.Search(ctx, domain.EntitySubAccount, testutil.ScenarioAccount, q, fn)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDebounce)
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, "cam", results[0][0].Node.Description)
	calls := api.listCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "cam", calls[0].search)
	_, mirrored := p.Snapshot().Node(300)
	assert.False(t, mirrored)
}

func TestSubscribeDiagnostics_ReceivesLoadInconsistencies(t *testing.T) {
	contents := testutil.NewScenario()
	contents.Groups = append(contents.Groups, testutil.NewTestGroup(501, testutil.ScenarioAccount, 999))
	api := newFakeAPI(contents)
	p := newTestProcessor(t, api, Options{})

	var (
		mu    sync.Mutex
		codes []domain.InconsistencyCode
	)
	unsubscribe := p.SubscribeDiagnostics(func(inc domain.Inconsistency) {
		mu.Lock()
		codes = append(codes, inc.Code)
		mu.Unlock()
	})
	defer unsubscribe()

	require.NoError(t, <-p.Load(context.Background(), testutil.ScenarioBudget))
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, codes, domain.InconsistencyMissingChild)
}

func TestSubscribe_UnsubscribeStopsUpdates(t *testing.T) {
	p, api := setupProcessor(t)
	ctx := context.Background()
	api.onUpdate = func(kind domain.EntityKind, _ domain.ID, _ domain.Patch) (domain.Entity, error) {
		return domain.Entity{Kind: kind}, nil
	}
	rec := &recorder{}
	unsubscribe := p.Subscribe(testutil.ScenarioAccount, rec.record)

	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS2, domain.FieldQuantity, 4.0)))
	unsubscribe()
	unsubscribe()
	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS2, domain.FieldQuantity, 5.0)))
	p.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.updates, 1)
	s2, ok := findRow(rec.updates[0].Rows, domain.DataRowID(testutil.ScenarioS2))
	require.True(t, ok)
	assert.InDelta(t, 20.0, s2.Node.NominalValue, 1e-9)
}

func TestDispatch_RecordsSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	api := newFakeAPI(testutil.NewScenario())
	p := newTestProcessor(t, api, Options{Tracer: tp.Tracer("test")})
	ctx := context.Background()
	require.NoError(t, <-p.Load(ctx, testutil.ScenarioBudget))

	require.NoError(t, p.Dispatch(ctx, SetField(testutil.ScenarioS1, domain.FieldRate, 11.0)))
	require.Error(t, p.Dispatch(ctx, SetField(999, domain.FieldRate, 11.0)))
	p.Wait()

	var names []string
	var failed int
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
		if s.Name() == "engine.Dispatch" && s.Status().Code == codes.Error {
			failed++
		}
	}
	assert.Contains(t, names, "engine.api.load")
	assert.Contains(t, names, "engine.api.update")
	assert.Equal(t, 1, failed)
}

type recordingObserver struct {
	mu     sync.Mutex
	events []UseCaseEvent
}

func (o *recordingObserver) ObserveUseCase(_ context.Context, e UseCaseEvent) {
	o.mu.Lock()
	o.events = append(o.events, e)
	o.mu.Unlock()
}

func TestDispatch_ReportsUseCases(t *testing.T) {
	obs := &recordingObserver{}
	api := newFakeAPI(testutil.NewScenario())
	p := newTestProcessor(t, api, Options{Observer: obs})
	ctx := context.Background()
	require.NoError(t, <-p.Load(ctx, testutil.ScenarioBudget))

	in := SetField(testutil.ScenarioS1, domain.FieldIdentifier, "1100")
	require.NoError(t, p.Dispatch(ctx, in))
	p.Wait()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	byName := make(map[string]UseCaseEvent)
	for _, e := range obs.events {
		byName[e.Name] = e
	}
	require.Contains(t, byName, "dispatch.dataChange")
	assert.True(t, byName["dispatch.dataChange"].Success())
	assert.Equal(t, in.ID, byName["dispatch.dataChange"].IntentID)
	assert.Equal(t, testutil.ScenarioS1, byName["dispatch.dataChange"].Ref.ID)
	require.Contains(t, byName, "api.update")
	require.Contains(t, byName, "api.load")
}
