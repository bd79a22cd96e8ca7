// Package teatest drives bubbletea models synchronously in tests.
//
// The driver calls Update directly and runs every returned Cmd in the test
// goroutine's stead, queueing the messages they produce until the model goes
// quiet. Cmds that block, such as ones waiting on a subscription channel,
// are abandoned after a short timeout.
package teatest

import (
	"regexp"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// MaxMessages bounds how many messages one Send may process.
const MaxMessages = 100

// cmdTimeout separates message factories, which return at once, from Cmds
// that wait on external events.
const cmdTimeout = 10 * time.Millisecond

var ansi = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// Driver is a synchronous harness for any tea.Model.
type Driver struct {
	T     *testing.T
	Model tea.Model

	// Quitting is set once a Cmd produced tea.QuitMsg.
	Quitting bool
	// Seen lists every message delivered to Update, oldest first.
	Seen []tea.Msg
}

type Option func(*Driver)

// WithSize delivers a WindowSizeMsg before anything else.
func WithSize(w, h int) Option {
	return func(d *Driver) {
		d.update(tea.WindowSizeMsg{Width: w, Height: h})
	}
}

// New creates a Driver. Call DrainInit to run the model's Init command.
func New(t *testing.T, model tea.Model, opts ...Option) *Driver {
	t.Helper()
	d := &Driver{T: t, Model: model}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) DrainInit() {
	d.T.Helper()
	d.settle(d.Model.Init())
}

// Send feeds msg through Update and processes whatever it leads to.
func (d *Driver) Send(msg tea.Msg) {
	d.T.Helper()
	if d.Quitting {
		return
	}
	d.settle(d.update(msg))
}

// PressKey sends a rune key such as 'q'.
func (d *Driver) PressKey(r rune) {
	d.T.Helper()
	d.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
}

func (d *Driver) Press(t tea.KeyType) {
	d.T.Helper()
	d.Send(tea.KeyMsg{Type: t})
}

// Type presses each rune of keys in turn.
func (d *Driver) Type(keys string) {
	d.T.Helper()
	for _, r := range keys {
		d.PressKey(r)
	}
}

func (d *Driver) View() string {
	return d.Model.View()
}

// PlainView returns the view with terminal styling removed.
func (d *Driver) PlainView() string {
	return ansi.ReplaceAllString(d.Model.View(), "")
}

func (d *Driver) update(msg tea.Msg) tea.Cmd {
	d.Seen = append(d.Seen, msg)
	updated, cmd := d.Model.Update(msg)
	d.Model = updated
	return cmd
}

// settle runs cmd and every Cmd it leads to, breadth first.
func (d *Driver) settle(cmd tea.Cmd) {
	d.T.Helper()
	queue := []tea.Cmd{cmd}
	processed := 0
	for len(queue) > 0 && !d.Quitting {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := run(next).(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case tea.QuitMsg:
			d.Quitting = true
			d.update(msg)
		default:
			if processed++; processed > MaxMessages {
				d.T.Logf("teatest.Driver: message limit (%d) reached", MaxMessages)
				return
			}
			queue = append(queue, d.update(msg))
		}
	}
}

// run executes cmd, giving up after cmdTimeout.
func run(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() {
		ch <- cmd()
	}()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(cmdTimeout):
		return nil
	}
}
