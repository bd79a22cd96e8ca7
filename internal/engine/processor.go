package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alexanderramin/budgetcore/internal/domain"
	"github.com/alexanderramin/budgetcore/internal/placeholder"
	"github.com/alexanderramin/budgetcore/internal/stream"
	"github.com/alexanderramin/budgetcore/internal/table"
	"github.com/alexanderramin/budgetcore/internal/tree"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/alexanderramin/budgetcore/internal/engine"

// Options configures a Processor. Zero values are usable.
type Options struct {
	SearchDebounce time.Duration
	Logger         *slog.Logger
	Observer       UseCaseObserver
	Tracer         trace.Tracer
}

type subscription struct {
	parent domain.ID
	fn     func(Update)
	last   []domain.Row
}

type overlayCreate struct {
	children []domain.ID
}

// origin is the intent that first submitted a placeholder's creation.
// Retries report failures under it.
type origin struct {
	id   uuid.UUID
	kind IntentKind
}

// Processor is the single owner of one budget's tree store. Every mutation,
// including the completion of asynchronous API calls, runs under its mutex;
// subscribers are notified after the mutex is released.
type Processor struct {
	mu       sync.Mutex
	api      API
	store    *tree.Store
	recon    *placeholder.Reconciler
	gens     *stream.Generations
	search   *stream.Debouncer
	logger   *slog.Logger
	observer UseCaseObserver
	tracer   trace.Tracer
	wg       sync.WaitGroup

	nextSub int
	subs    map[int]*subscription
	diags   map[int]func(domain.Inconsistency)

	nextTemp domain.ID
	inflight map[EntityRef]overlayCreate
	unsynced map[EntityRef]*Unsynced
	origins  map[domain.ID]origin

	outFailures []Failure
	outRemaps   map[string]string
	outDiags    []domain.Inconsistency
}

func NewProcessor(api API, opts Options) *Processor {
	debounce := opts.SearchDebounce
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	p := &Processor{
		api:       api,
		gens:      stream.NewGenerations(),
		search:    stream.NewDebouncer(debounce),
		logger:    logger.With("component", "engine"),
		observer:  observerOrNoop(opts.Observer),
		tracer:    tracer,
		subs:      make(map[int]*subscription),
		diags:     make(map[int]func(domain.Inconsistency)),
		nextTemp:  -1,
		inflight:  make(map[EntityRef]overlayCreate),
		unsynced:  make(map[EntityRef]*Unsynced),
		origins:   make(map[domain.ID]origin),
		outRemaps: make(map[string]string),
	}
	p.reset(tree.New(p.report))
	return p
}

func (p *Processor) reset(store *tree.Store) {
	p.store = store
	p.recon = placeholder.New(store)
	p.inflight = make(map[EntityRef]overlayCreate)
	p.unsynced = make(map[EntityRef]*Unsynced)
	p.origins = make(map[domain.ID]origin)
}

// report is the store's inconsistency sink. It runs under p.mu.
func (p *Processor) report(inc domain.Inconsistency) {
	p.logger.Warn("budget inconsistency",
		"code", string(inc.Code),
		"ids", inc.IDs,
		"message", inc.Message,
	)
	p.outDiags = append(p.outDiags, inc)
}

// locked runs fn as the store's owner, then notifies subscribers of whatever
// fn changed.
func (p *Processor) locked(fn func()) {
	for _, d := range p.underLock(fn) {
		d()
	}
}

// underLock runs fn and collects the notifications it produced. The mutex
// is released even if fn panics.
func (p *Processor) underLock(fn func()) []func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
	return p.flush()
}

func (p *Processor) flush() []func() {
	var out []func()
	failures := p.outFailures
	remaps := p.outRemaps
	diags := p.outDiags
	p.outFailures = nil
	p.outRemaps = make(map[string]string)
	p.outDiags = nil

	ids := make([]int, 0, len(p.subs))
	for id := range p.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		sub := p.subs[id]
		rows := table.Materialize(p.store, sub.parent)
		changed := !table.Equal(rows, sub.last)
		if !changed && len(failures) == 0 && len(remaps) == 0 {
			continue
		}
		upd := Update{ParentID: sub.parent, Failures: failures}
		if len(remaps) > 0 {
			upd.Remaps = remaps
		}
		if changed {
			sub.last = rows
			upd.Rows = rows
		}
		fn := sub.fn
		out = append(out, func() { fn(upd) })
	}

	if len(diags) > 0 {
		dids := make([]int, 0, len(p.diags))
		for id := range p.diags {
			dids = append(dids, id)
		}
		sort.Ints(dids)
		for _, id := range dids {
			fn := p.diags[id]
			out = append(out, func() {
				for _, inc := range diags {
					fn(inc)
				}
			})
		}
	}
	return out
}

// Materialize returns the current rows of the level below parent.
func (p *Processor) Materialize(parent domain.ID) []domain.Row {
	var rows []domain.Row
	p.locked(func() {
		rows = table.Materialize(p.store, p.recon.Resolve(parent))
	})
	return rows
}

// Subscribe registers fn to receive an Update whenever the rows below parent
// change and whenever a persistence call fails. The returned function
// removes the subscription.
func (p *Processor) Subscribe(parent domain.ID, fn func(Update)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = &subscription{
		parent: parent,
		fn:     fn,
		last:   table.Materialize(p.store, parent),
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

// SubscribeDiagnostics registers fn to receive every inconsistency observed
// in the store.
func (p *Processor) SubscribeDiagnostics(fn func(domain.Inconsistency)) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.diags[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.diags, id)
			p.mu.Unlock()
		})
	}
}

// Snapshot returns a read-only copy of the store for export.
func (p *Processor) Snapshot() *tree.Store {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Snapshot()
}

// Root returns the id of the loaded budget, or zero.
func (p *Processor) Root() domain.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Root()
}

// Placeholder returns the reconciler state of a placeholder row.
func (p *Processor) Placeholder(id domain.ID) (placeholder.Row, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recon.Get(id)
}

// Unsynced lists local changes not yet confirmed by the API collaborator,
// ordered by entity.
func (p *Processor) Unsynced() []Unsynced {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Unsynced, 0, len(p.unsynced))
	for _, u := range p.unsynced {
		cp := *u
		cp.Patch = u.Patch.Clone()
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ref.Kind != out[j].Ref.Kind {
			return out[i].Ref.Kind < out[j].Ref.Kind
		}
		return out[i].Ref.ID < out[j].Ref.ID
	})
	return out
}

// Wait blocks until every API call started so far, and any follow-up it
// triggered, has completed. Debounced searches that have not fired yet are
// not waited for.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Close cancels any pending debounced search.
func (p *Processor) Close() {
	p.search.Stop()
}

func (p *Processor) spawn(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		fn()
	}()
}

func (p *Processor) allocTemp() domain.ID {
	id := p.nextTemp
	p.nextTemp--
	return id
}

// detach returns a context for work that outlives the dispatch call but
// keeps its values, such as the active span.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
