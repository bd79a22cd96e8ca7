package cli

import (
	"errors"
	"testing"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/alexanderramin/budgetcore/internal/table"
	"github.com/alexanderramin/budgetcore/internal/teatest"
	"github.com/alexanderramin/budgetcore/internal/testutil"
	"github.com/alexanderramin/budgetcore/internal/tree"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves rows straight from a tree store and records
// subscriptions.
type fakeSource struct {
	store  *tree.Store
	subs   []domain.ID
	active int
}

func newFakeSource(t *testing.T) *fakeSource {
	t.Helper()
	store, err := tree.Build(testutil.NewScenario(), nil)
	require.NoError(t, err)
	return &fakeSource{store: store}
}

func (f *fakeSource) Materialize(parent domain.ID) []domain.Row {
	return table.Materialize(f.store, parent)
}

func (f *fakeSource) Subscribe(parent domain.ID, fn func(engine.Update)) func() {
	f.subs = append(f.subs, parent)
	f.active++
	done := false
	return func() {
		if !done {
			done = true
			f.active--
		}
	}
}

func (f *fakeSource) Snapshot() *tree.Store { return f.store }

func newWatchDriver(t *testing.T, src *fakeSource) *teatest.Driver {
	t.Helper()
	d := teatest.New(t, newWatchModel(src, testutil.ScenarioBudget), teatest.WithSize(120, 40))
	d.DrainInit()
	return d
}

func TestWatchShowsBudgetLevel(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	view := d.PlainView()
	assert.Contains(t, view, "Budget 1")
	assert.Contains(t, view, "0010")
	assert.Contains(t, view, "25.00")
	assert.Contains(t, view, "q quit")
	assert.Equal(t, []domain.ID{testutil.ScenarioBudget}, src.subs)
}

func TestWatchDrillsIntoAccountAndBack(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	d.Press(tea.KeyEnter)
	view := d.PlainView()
	assert.Contains(t, view, "Budget 1 › 0010")
	assert.Contains(t, view, "0100")
	assert.Contains(t, view, "Group 500 (2)")
	assert.Equal(t, 1, src.active, "old level must be unsubscribed")

	d.Press(tea.KeyDown)
	assert.Regexp(t, `▸ 101 `, d.PlainView())

	// Leaf subaccounts have no level below them.
	d.Press(tea.KeyEnter)
	assert.Contains(t, d.PlainView(), "Budget 1 › 0010")

	d.Press(tea.KeyEsc)
	view = d.PlainView()
	assert.NotContains(t, view, "›")
	assert.Equal(t, []domain.ID{testutil.ScenarioBudget, testutil.ScenarioAccount, testutil.ScenarioBudget}, src.subs)
}

func TestWatchCursorStaysInBounds(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	d.Press(tea.KeyUp)
	d.Press(tea.KeyDown)
	d.Press(tea.KeyDown)
	m := d.Model.(*watchModel)
	assert.Equal(t, 0, m.cursor)
}

func TestWatchRefreshesOnUpdate(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)
	d.Press(tea.KeyEnter)

	require.NoError(t, src.store.ApplyPatch(testutil.ScenarioS1, domain.Patch{domain.FieldQuantity: 3.0}))
	d.Send(levelUpdateMsg{update: engine.Update{ParentID: testutil.ScenarioAccount}})

	assert.Contains(t, d.PlainView(), "30.00")
	assert.Contains(t, d.PlainView(), "35.00")
}

func TestWatchShowsAndClearsFailures(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	failure := engine.Failure{
		Op:  engine.OpUpdate,
		Ref: engine.EntityRef{Kind: domain.EntitySubAccount, ID: testutil.ScenarioS1},
		Err: errors.New("disk full"),
	}
	d.Send(levelUpdateMsg{update: engine.Update{Failures: []engine.Failure{failure}}})
	assert.Contains(t, d.PlainView(), "disk full")

	d.PressKey('c')
	assert.NotContains(t, d.PlainView(), "disk full")
}

func TestWatchCapsFailureLines(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	var failures []engine.Failure
	for i := 0; i < 5; i++ {
		failures = append(failures, engine.Failure{Op: engine.OpCreate, Err: errors.New("nope")})
	}
	d.Send(levelUpdateMsg{update: engine.Update{Failures: failures}})
	assert.Contains(t, d.PlainView(), "2 earlier errors")
}

func TestWatchReload(t *testing.T) {
	src := newFakeSource(t)
	m := newWatchModel(src, testutil.ScenarioBudget)
	calls := 0
	m.reload = func() error {
		calls++
		return errors.New("database locked")
	}
	d := teatest.New(t, m)
	d.DrainInit()

	d.PressKey('r')
	assert.Equal(t, 1, calls)
	assert.Contains(t, d.PlainView(), "reload: database locked")
	assert.Contains(t, d.Seen, tea.Msg(reloadedMsg{err: errors.New("database locked")}))
}

func TestWatchQuitUnsubscribes(t *testing.T) {
	src := newFakeSource(t)
	d := newWatchDriver(t, src)

	d.PressKey('q')
	assert.True(t, d.Quitting)
	assert.Equal(t, 0, src.active)
}
