package cli

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alexanderramin/budgetcore/internal/cli/formatter"
	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/engine"
	"github.com/spf13/cobra"
)

// session is one loaded budget behind a change processor. It records every
// failure, remap and inconsistency the processor reports so that a command
// can summarize them after its writes settle.
type session struct {
	p      *engine.Processor
	budget domain.ID

	mu       sync.Mutex
	failures []engine.Failure
	remaps   map[string]string
	diags    []domain.Inconsistency
	unsubs   []func()
}

func openSession(cmd *cobra.Command, app *App, opts *rootOptions) (*session, error) {
	ctx := cmd.Context()
	budget, err := opts.resolveBudget(ctx, app)
	if err != nil {
		return nil, err
	}

	s := &session{p: app.NewProcessor(), budget: budget, remaps: make(map[string]string)}
	s.unsubs = append(s.unsubs, s.p.SubscribeDiagnostics(s.recordDiag))

	stop := func() {}
	if app.interactive() {
		stop = formatter.StartSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Loading budget %s", budget))
	}
	err = <-s.p.Load(ctx, budget)
	stop()
	if err != nil {
		s.p.Close()
		return nil, fmt.Errorf("loading budget %d: %w", budget, err)
	}

	s.unsubs = append(s.unsubs, s.p.Subscribe(s.p.Root(), s.record))
	return s, nil
}

func (s *session) record(u engine.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, u.Failures...)
	for from, to := range u.Remaps {
		s.remaps[from] = to
	}
}

func (s *session) recordDiag(inc domain.Inconsistency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, inc)
}

// settle waits for every outstanding API call and returns the failures
// reported so far.
func (s *session) settle() error {
	s.p.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(s.failures))
	for _, f := range s.failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// remapped returns the new ids of activated rows, sorted.
func (s *session) remapped() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.remaps))
	for _, to := range s.remaps {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

func (s *session) diagnostics() []domain.Inconsistency {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Inconsistency(nil), s.diags...)
}

// close settles the session and releases the processor.
func (s *session) close() error {
	err := s.settle()
	for _, u := range s.unsubs {
		u()
	}
	s.p.Close()
	return err
}

// parentOf returns the parent of a node in the loaded budget.
func (s *session) parentOf(id domain.ID) (domain.ID, error) {
	n, ok := s.p.Snapshot().Node(id)
	if !ok {
		return 0, domain.NotFound("node", id)
	}
	if n.ParentID == 0 {
		return n.ID, nil
	}
	return n.ParentID, nil
}

// withSession opens a session, runs fn and closes it, joining any
// persistence failures into the returned error.
func withSession(cmd *cobra.Command, app *App, opts *rootOptions, fn func(*session) error) error {
	s, err := openSession(cmd, app, opts)
	if err != nil {
		return err
	}
	runErr := fn(s)
	return errors.Join(runErr, s.close())
}
