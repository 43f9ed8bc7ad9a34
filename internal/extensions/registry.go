// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Record is one configured extension and its lifecycle state. Records are
// owned by a Registry; only the Registry mutates them.
type Record struct {
	identity     Identity
	discoverySeq uint64

	mu        sync.Mutex
	state     State
	cause     error
	attempt   int
	initSeq   uint64
	changedAt time.Time
}

// Identity returns the immutable identity of the extension.
func (r *Record) Identity() Identity { return r.identity }

// ID is shorthand for Identity().ID().
func (r *Record) ID() string { return r.identity.ID() }

// State returns the current lifecycle state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Cause returns the error that moved the record to Failed, if any.
func (r *Record) Cause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

// Attempt returns how many initialization attempts were started.
func (r *Record) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// ChangedAt returns when the state last changed.
func (r *Record) ChangedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changedAt
}

// TransitionObserver is told about every state change. A newly registered
// record is reported with a from state that is not in States.
type TransitionObserver func(id string, from, to State)

// Registry maps extension ids to records. Mutations of one record take only
// that record's lock, so lifecycle work on distinct ids never contends.
type Registry struct {
	records      sync.Map // id -> *Record
	discoverySeq atomic.Uint64
	initSeq      atomic.Uint64
	observer     TransitionObserver
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithTransitionObserver installs an observer called after each transition.
func WithTransitionObserver(fn TransitionObserver) RegistryOption {
	return func(r *Registry) {
		r.observer = fn
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a Discovered record. A second registration of the same id
// fails with DUPLICATE_ID and leaves the existing record untouched.
func (r *Registry) Register(identity Identity) error {
	rec := &Record{
		identity:     identity,
		discoverySeq: r.discoverySeq.Add(1),
		state:        StateDiscovered,
		changedAt:    time.Now(),
	}
	if _, loaded := r.records.LoadOrStore(identity.ID(), rec); loaded {
		return ErrDuplicateID(identity.ID())
	}
	r.notify(identity.ID(), stateAbsent, StateDiscovered)
	return nil
}

// Lookup returns the record for id.
func (r *Registry) Lookup(id string) (*Record, bool) {
	v, ok := r.records.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Record), true
}

// BeginInitializing moves id from Discovered to Initializing.
func (r *Registry) BeginInitializing(id string) error {
	return r.transition(id, StateInitializing, nil)
}

// MarkInitialized moves id from Initializing to Initialized and appends it to
// the initialized view.
func (r *Registry) MarkInitialized(id string) error {
	return r.transition(id, StateInitialized, nil)
}

// MarkFailed moves id from Initializing to Failed, recording cause.
func (r *Registry) MarkFailed(id string, cause error) error {
	return r.transition(id, StateFailed, cause)
}

// Retrigger moves a Failed record back to Discovered so it can be
// initialized again. Nothing calls this automatically.
func (r *Registry) Retrigger(id string) error {
	return r.transition(id, StateDiscovered, nil)
}

func (r *Registry) transition(id string, to State, cause error) error {
	rec, ok := r.Lookup(id)
	if !ok {
		return ErrExtensionNotFound(id)
	}

	rec.mu.Lock()
	from := rec.state
	if !CanTransition(from, to) {
		rec.mu.Unlock()
		return ErrInvalidTransition(id, from, to)
	}
	rec.state = to
	rec.changedAt = time.Now()
	switch to {
	case StateInitializing:
		rec.attempt++
		rec.cause = nil
	case StateInitialized:
		rec.initSeq = r.initSeq.Add(1)
	case StateFailed:
		rec.cause = cause
	case StateDiscovered:
		rec.cause = nil
	}
	rec.mu.Unlock()

	r.notify(id, from, to)
	return nil
}

func (r *Registry) notify(id string, from, to State) {
	if r.observer != nil {
		r.observer(id, from, to)
	}
}

// All returns every record in discovery order.
func (r *Registry) All() []*Record {
	var out []*Record
	r.records.Range(func(_, v any) bool {
		out = append(out, v.(*Record))
		return true
	})
	slices.SortFunc(out, func(a, b *Record) int {
		return compareUint64(a.discoverySeq, b.discoverySeq)
	})
	return out
}

// ListInitialized returns records in state Initialized, in the order they
// were initialized.
func (r *Registry) ListInitialized() []*Record {
	type entry struct {
		rec *Record
		seq uint64
	}
	var entries []entry
	r.records.Range(func(_, v any) bool {
		rec := v.(*Record)
		rec.mu.Lock()
		if rec.state == StateInitialized {
			entries = append(entries, entry{rec: rec, seq: rec.initSeq})
		}
		rec.mu.Unlock()
		return true
	})
	slices.SortFunc(entries, func(a, b entry) int {
		return compareUint64(a.seq, b.seq)
	})
	out := make([]*Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// InState returns records currently in state s, in discovery order.
func (r *Registry) InState(s State) []*Record {
	var out []*Record
	for _, rec := range r.All() {
		if rec.State() == s {
			out = append(out, rec)
		}
	}
	return out
}

// Counts returns the number of records per state.
func (r *Registry) Counts() map[State]int {
	counts := make(map[State]int, len(States))
	for _, s := range States {
		counts[s] = 0
	}
	r.records.Range(func(_, v any) bool {
		counts[v.(*Record).State()]++
		return true
	})
	return counts
}

// Len returns the number of known extensions.
func (r *Registry) Len() int {
	n := 0
	r.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close drops every record. Called at service stop.
func (r *Registry) Close() {
	r.records.Clear()
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
