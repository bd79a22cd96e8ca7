package formatter

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// showElapsedAfter is how long a spinner runs before it shows a timer.
const showElapsedAfter = time.Second

// Spinner animates a one-line progress message on a terminal while a
// budget loads or drains. Frames and rate come from a bubbles spinner.
type Spinner struct {
	out   io.Writer
	style spinner.Spinner

	mu      sync.Mutex
	message string

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:     out,
		style:   spinner.MiniDot,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetMessage replaces the text shown next to the spinner.
func (s *Spinner) SetMessage(msg string) {
	s.mu.Lock()
	s.message = msg
	s.mu.Unlock()
}

// Start begins the animation. Call Stop to end it.
func (s *Spinner) Start() {
	started := time.Now()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.style.FPS)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			select {
			case <-s.stop:
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprint(s.out, s.line(frame, time.Since(started)))
			}
		}
	}()
}

func (s *Spinner) line(frame int, elapsed time.Duration) string {
	s.mu.Lock()
	msg := s.message
	s.mu.Unlock()
	glyph := s.style.Frames[frame%len(s.style.Frames)]
	out := fmt.Sprintf("\r\033[K  %s %s", StylePurple.Render(glyph), Dim(msg))
	if elapsed >= showElapsedAfter {
		out += Dim(fmt.Sprintf(" (%.1fs)", elapsed.Seconds()))
	}
	return out
}

// Stop ends the animation and clears the line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}

// StartSpinner creates and starts a spinner and returns its Stop.
func StartSpinner(out io.Writer, message string) func() {
	s := NewSpinner(out, message)
	s.Start()
	return s.Stop
}
