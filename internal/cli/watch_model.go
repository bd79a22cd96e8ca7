package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// rowSource is the part of the change processor the watch view reads.
type rowSource interface {
	Materialize(parent domain.ID) []domain.Row
	Subscribe(parent domain.ID, fn func(engine.Update)) (unsubscribe func())
	Snapshot() *tree.Store
}

type watchKeys struct {
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
	Open   key.Binding
	Back   key.Binding
	Clear  key.Binding
	Reload key.Binding
}

func defaultWatchKeys() watchKeys {
	return watchKeys{
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Open:   key.NewBinding(key.WithKeys("enter", "right", "l"), key.WithHelp("enter", "open")),
		Back:   key.NewBinding(key.WithKeys("backspace", "left", "h", "esc"), key.WithHelp("esc", "back")),
		Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear errors")),
		Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Open, k.Back, k.Reload, k.Clear, k.Quit}
}

// levelUpdateMsg carries one subscription update into the event loop.
type levelUpdateMsg struct {
	update engine.Update
}

// reloadedMsg reports the end of a reload from storage.
type reloadedMsg struct {
	err error
}

// tickMsg triggers a periodic reload.
type tickMsg time.Time

// maxShownFailures bounds the error lines under the table.
const maxShownFailures = 3

// watchModel shows one level of the budget and follows it live. Drilling
// into a row resubscribes to that row's level.
type watchModel struct {
	src     rowSource
	keys    watchKeys
	updates chan engine.Update
	unsub   func()

	// reload refetches the budget; nil disables reloading. every > 0
	// reloads on a timer.
	reload    func() error
	every     time.Duration
	reloading bool
	loadErr   error

	parent   domain.ID
	rows     []domain.Row
	cursor   int
	failures []engine.Failure
}

func newWatchModel(src rowSource, parent domain.ID) *watchModel {
	m := &watchModel{
		src:     src,
		keys:    defaultWatchKeys(),
		updates: make(chan engine.Update, 16),
	}
	m.enter(parent)
	return m
}

// enter switches the view to the level below parent.
func (m *watchModel) enter(parent domain.ID) {
	if m.unsub != nil {
		m.unsub()
	}
	m.parent = parent
	m.cursor = 0
	m.rows = m.src.Materialize(parent)
	ch := m.updates
	m.unsub = m.src.Subscribe(parent, func(u engine.Update) {
		select {
		case ch <- u:
		default:
		}
	})
}

func (m *watchModel) close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

func (m *watchModel) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return levelUpdateMsg{update: u}
	}
}

func (m *watchModel) reloadCmd() tea.Cmd {
	if m.reload == nil || m.reloading {
		return nil
	}
	m.reloading = true
	reload := m.reload
	return func() tea.Msg {
		return reloadedMsg{err: reload()}
	}
}

func (m *watchModel) tick() tea.Cmd {
	if m.reload == nil || m.every <= 0 {
		return nil
	}
	return tea.Tick(m.every, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *watchModel) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

func (m *watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case levelUpdateMsg:
		m.failures = append(m.failures, msg.update.Failures...)
		m.rows = m.src.Materialize(m.parent)
		m.clampCursor()
		return m, m.waitForUpdate()

	case reloadedMsg:
		m.reloading = false
		m.loadErr = msg.err
		if _, ok := m.src.Snapshot().Node(m.parent); !ok {
			// The level vanished in storage; fall back to the budget.
			m.enter(m.src.Snapshot().Root())
		}
		m.rows = m.src.Materialize(m.parent)
		m.clampCursor()
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.reloadCmd(), m.tick())

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case key.Matches(msg, m.keys.Open):
			if r, ok := m.selected(); ok && canOpen(r) {
				m.enter(r.Node.ID)
			}
		case key.Matches(msg, m.keys.Back):
			if n, ok := m.src.Snapshot().Node(m.parent); ok && n.ParentID != 0 {
				m.enter(n.ParentID)
			}
		case key.Matches(msg, m.keys.Reload):
			return m, m.reloadCmd()
		case key.Matches(msg, m.keys.Clear):
			m.failures = nil
			m.loadErr = nil
		}
	}
	return m, nil
}

func (m *watchModel) selected() (domain.Row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return domain.Row{}, false
	}
	return m.rows[m.cursor], true
}

// canOpen reports whether a row has a level of its own to drill into.
// Accounts always do; subaccounts only once they have children.
func canOpen(r domain.Row) bool {
	if r.Kind != domain.RowData || r.Node == nil {
		return false
	}
	return r.Node.Kind == domain.NodeAccount || !r.Node.IsLeaf()
}

func (m *watchModel) clampCursor() {
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// breadcrumb names the path from the budget down to the current level.
func (m *watchModel) breadcrumb(snap *tree.Store) string {
	ids := append([]domain.ID{m.parent}, snap.Ancestors(m.parent)...)
	parts := make([]string, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if n, ok := snap.Node(ids[i]); ok {
			parts = append(parts, n.Label())
		}
	}
	return strings.Join(parts, " › ")
}

func (m *watchModel) View() string {
	snap := m.src.Snapshot()
	var b strings.Builder

	b.WriteString(formatter.Header(m.breadcrumb(snap)) + "\n")
	if n, ok := snap.Node(m.parent); ok {
		fmt.Fprintf(&b, "%s %s   %s %s\n",
			formatter.Dim("estimated"), formatter.Bold(formatter.FormatAmount(n.Estimated())),
			formatter.Dim("variance"), formatter.VarianceStyle(n.Variance()).Render(formatter.FormatAmount(n.Variance())))
	}
	b.WriteString("\n")

	table := strings.TrimRight(formatter.FormatRows(m.rows), "\n")
	lines := strings.Split(table, "\n")
	for i, line := range lines {
		// The first two lines are the table header and its rule.
		marker := "  "
		if len(m.rows) > 0 && i-2 == m.cursor {
			marker = formatter.StylePurple.Render("▸ ")
		}
		b.WriteString(marker + line + "\n")
	}

	if m.loadErr != nil {
		b.WriteString("\n" + formatter.StyleRed.Render("  ✗ reload: "+m.loadErr.Error()) + "\n")
	}
	if len(m.failures) > 0 {
		b.WriteString("\n")
		start := 0
		if len(m.failures) > maxShownFailures {
			start = len(m.failures) - maxShownFailures
			b.WriteString(formatter.Dim(fmt.Sprintf("  … %d earlier errors", start)) + "\n")
		}
		for _, f := range m.failures[start:] {
			b.WriteString(formatter.StyleRed.Render("  ✗ "+f.Error()) + "\n")
		}
	}

	hints := make([]string, 0, len(m.keys.ShortHelp()))
	for _, kb := range m.keys.ShortHelp() {
		hints = append(hints, kb.Help().Key+" "+kb.Help().Desc)
	}
	b.WriteString("\n" + formatter.Dim(strings.Join(hints, " • ")))
	return b.String()
}
