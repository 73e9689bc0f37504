// Package loader fetches and merges pages for keyed collections with at most
// one fetch in flight per key.
package loader

import (
	"context"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/metrics"
	"github.com/d60-Lab/sagesync/internal/state"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

// Params are the filter parameters of a collection (category, filter, ...).
type Params map[string]string

// Fetcher requests one page. page is 1-based.
type Fetcher[T any] func(ctx context.Context, key string, params Params, page, pageSize int) (items []T, hasNext bool, err error)

// Outcome describes what a load call did.
type Outcome int

const (
	// Done means the fetch ran and its result (or error) was merged.
	Done Outcome = iota
	// Skipped means nothing was requested: a fetch was already in flight or
	// there were no more pages.
	Skipped
	// Superseded means the key was reset while the fetch was in flight and
	// the response was discarded.
	Superseded
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Superseded:
		return "superseded"
	}
	return "unknown"
}

type EventKind int

const (
	EventStarted EventKind = iota
	EventSucceeded
	EventFailed
)

// Event is delivered to observers when a fetch starts and when its result is
// merged. Superseded fetches produce no completion event.
type Event struct {
	Key  string
	Kind EventKind
	Page int
	Err  error
}

type Option func(*options)

type options struct {
	name      string
	observers []func(Event)
}

// WithName labels the loader in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithObserver registers fn for load events. fn must not call back into the
// loader synchronously.
func WithObserver(fn func(Event)) Option {
	return func(o *options) { o.observers = append(o.observers, fn) }
}

type entry[T any] struct {
	coll     *state.Collection[T]
	params   Params
	gen      uint64
	inflight bool
	page     int
	hasMore  bool
	loaded   bool
}

// Loader is the paginated collection engine.
type Loader[T any] struct {
	fetch    Fetcher[T]
	pageSize int
	opts     options
	identity func(T) string
	log      *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry[T]
}

func New[T any](fetch Fetcher[T], pageSize int, opts ...Option) *Loader[T] {
	o := options{name: "collection"}
	for _, opt := range opts {
		opt(&o)
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Loader[T]{
		fetch:    fetch,
		pageSize: pageSize,
		opts:     o,
		log:      logger.Named("loader").With(zap.String("collection", o.name)),
		entries:  make(map[string]*entry[T]),
	}
}

// SetIdentity enables duplicate suppression on append: an item from a later
// page whose identity is already present is dropped. Call before loading.
func (l *Loader[T]) SetIdentity(fn func(T) string) {
	l.mu.Lock()
	l.identity = fn
	l.mu.Unlock()
}

func (l *Loader[T]) PageSize() int { return l.pageSize }

func (l *Loader[T]) entryLocked(key string) *entry[T] {
	e, ok := l.entries[key]
	if !ok {
		e = &entry[T]{coll: state.NewCollection[T](), hasMore: true}
		l.entries[key] = e
	}
	return e
}

// Collection returns the collection for key, creating it empty if needed.
func (l *Loader[T]) Collection(key string) *state.Collection[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entryLocked(key).coll
}

// Params returns a copy of the parameters of the last load for key.
func (l *Loader[T]) Params(key string) Params {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.entryLocked(key).params)
}

// Loaded reports whether a first page has been merged since the last reset.
func (l *Loader[T]) Loaded(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && e.loaded
}

func (l *Loader[T]) InFlight(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	return ok && e.inflight
}

// LoadFirstPage requests page 1 and replaces the items on success. It is a
// no-op while a fetch for key is in flight.
func (l *Loader[T]) LoadFirstPage(ctx context.Context, key string, params Params) (Outcome, error) {
	l.mu.Lock()
	e := l.entryLocked(key)
	if e.inflight {
		l.mu.Unlock()
		l.skipped(key, 1)
		return Skipped, nil
	}
	e.params = maps.Clone(params)
	return l.loadFirst(ctx, key, e, false)
}

// Reset discards the current items and parameters and loads page 1 with the
// new params. A fetch already in flight for key is not aborted; its response
// is dropped when it arrives.
func (l *Loader[T]) Reset(ctx context.Context, key string, params Params) (Outcome, error) {
	l.mu.Lock()
	e := l.entryLocked(key)
	e.params = maps.Clone(params)
	return l.loadFirst(ctx, key, e, true)
}

// loadFirst is entered with l.mu held and returns with it released.
func (l *Loader[T]) loadFirst(ctx context.Context, key string, e *entry[T], reset bool) (Outcome, error) {
	if reset {
		e.gen++
		e.page = 0
		e.hasMore = true
		e.loaded = false
	}
	e.inflight = true
	gen := e.gen
	params := maps.Clone(e.params)
	notify := e.coll.Apply(func(s *state.Snapshot[T]) {
		if reset {
			s.Items = nil
			s.Page = 0
			s.HasMore = true
		}
		s.Loading = true
		s.Err = nil
	})
	l.mu.Unlock()
	notify()
	l.emit(Event{Key: key, Kind: EventStarted, Page: 1})

	items, hasNext, err := l.fetch(ctx, key, params, 1, l.pageSize)

	l.mu.Lock()
	if e.gen != gen {
		l.mu.Unlock()
		l.superseded(key, 1)
		return Superseded, nil
	}
	e.inflight = false
	if err != nil {
		e.page = 0
		e.loaded = false
		notify = e.coll.Apply(func(s *state.Snapshot[T]) {
			s.Items = nil
			s.Page = 0
			s.Loading = false
			s.Err = err
		})
		l.mu.Unlock()
		notify()
		l.failed(key, 1, err)
		return Done, err
	}
	e.page = 1
	e.hasMore = hasNext
	e.loaded = true
	merged := l.dedupe(nil, items)
	notify = e.coll.Apply(func(s *state.Snapshot[T]) {
		s.Items = merged
		s.Page = 1
		s.HasMore = hasNext
		s.Loading = false
		s.Err = nil
	})
	l.mu.Unlock()
	notify()
	l.succeeded(key, 1, len(merged))
	return Done, nil
}

// LoadNextPage appends the next page. It is a no-op when there are no more
// pages or a fetch for key is in flight. On failure loaded items are kept.
func (l *Loader[T]) LoadNextPage(ctx context.Context, key string) (Outcome, error) {
	l.mu.Lock()
	e := l.entryLocked(key)
	if e.inflight || !e.hasMore {
		page := e.page + 1
		l.mu.Unlock()
		l.skipped(key, page)
		return Skipped, nil
	}
	next := e.page + 1
	e.inflight = true
	gen := e.gen
	params := maps.Clone(e.params)
	notify := e.coll.Apply(func(s *state.Snapshot[T]) {
		s.Loading = true
		s.Err = nil
	})
	l.mu.Unlock()
	notify()
	l.emit(Event{Key: key, Kind: EventStarted, Page: next})

	items, hasNext, err := l.fetch(ctx, key, params, next, l.pageSize)

	l.mu.Lock()
	if e.gen != gen {
		l.mu.Unlock()
		l.superseded(key, next)
		return Superseded, nil
	}
	e.inflight = false
	if err != nil {
		notify = e.coll.Apply(func(s *state.Snapshot[T]) {
			s.Loading = false
			s.Err = err
		})
		l.mu.Unlock()
		notify()
		l.failed(key, next, err)
		return Done, err
	}
	e.page = next
	e.hasMore = hasNext
	e.loaded = true
	var added int
	notify = e.coll.Apply(func(s *state.Snapshot[T]) {
		fresh := l.dedupe(s.Items, items)
		added = len(fresh)
		s.Items = append(s.Items, fresh...)
		s.Page = next
		s.HasMore = hasNext
		s.Loading = false
		s.Err = nil
	})
	l.mu.Unlock()
	notify()
	l.succeeded(key, next, added)
	return Done, nil
}

// dedupe returns the items of page not already present in have. With no
// identity function every item is kept.
func (l *Loader[T]) dedupe(have, page []T) []T {
	if l.identity == nil {
		return slices.Clone(page)
	}
	seen := make(map[string]struct{}, len(have)+len(page))
	for _, it := range have {
		seen[l.identity(it)] = struct{}{}
	}
	out := make([]T, 0, len(page))
	for _, it := range page {
		id := l.identity(it)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

func (l *Loader[T]) emit(ev Event) {
	for _, fn := range l.opts.observers {
		fn(ev)
	}
}

func (l *Loader[T]) skipped(key string, page int) {
	metrics.RecordPageLoad(l.opts.name, metrics.OutcomeSkipped)
	l.log.Debug("load skipped", zap.String("key", key), zap.Int("page", page))
}

func (l *Loader[T]) superseded(key string, page int) {
	metrics.RecordPageLoad(l.opts.name, metrics.OutcomeSuperseded)
	l.log.Debug("stale page discarded", zap.String("key", key), zap.Int("page", page))
}

func (l *Loader[T]) failed(key string, page int, err error) {
	metrics.RecordPageLoad(l.opts.name, metrics.OutcomeFailed)
	l.log.Warn("page load failed", zap.String("key", key), zap.Int("page", page), zap.Error(err))
	l.emit(Event{Key: key, Kind: EventFailed, Page: page, Err: err})
}

func (l *Loader[T]) succeeded(key string, page, n int) {
	metrics.RecordPageLoad(l.opts.name, metrics.OutcomeApplied)
	l.log.Debug("page merged", zap.String("key", key), zap.Int("page", page), zap.Int("items", n))
	l.emit(Event{Key: key, Kind: EventSucceeded, Page: page})
}
