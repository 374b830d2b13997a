// Package state holds the simulator's authoritative entity state: the
// current value of every entity plus bounded per-entity history, and a
// synchronous listener fan-out used to drive behavior engines and external
// subscribers off of state changes.
package state

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/myorg/homeiqsim/internal/kernelerr"
)

// Change describes one accepted write. Seq is monotonically increasing
// across the whole store in the order writes were applied. Listeners are
// called after the store lock is released, so with concurrent writers a
// listener can receive changes out of Seq order; Seq lets it detect whether
// a write it
// observes mid-callback happened before or after the one it is currently
// handling.
type Change struct {
	Seq      uint64
	New      *EntityState
	Old      *EntityState // nil if this was the entity's first write
	Changed  bool         // false when the write only touched LastUpdated
}

// Listener is notified synchronously, in registration order, after each
// accepted write. A listener must not call back into the Store that is
// invoking it except through methods documented as re-entrant-safe
// (GetState, GetAllStates, GetHistory) — SetState from within a listener
// is legal and simply becomes the next entry in the total order, not a
// nested call.
type Listener func(Change)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Store is the simulator's entity state table. All methods are safe for
// concurrent use.
type Store struct {
	mu sync.Mutex

	states  map[string]*EntityState
	history map[string]*historyRing

	maxHistory int
	logger     *slog.Logger

	seq          uint64
	listeners    []listenerEntry
	nextListener uint64
}

// New constructs a Store that retains up to maxHistory past snapshots per
// entity (the current value does not count against that bound).
func New(maxHistory int, logger *slog.Logger) *Store {
	if maxHistory < 1 {
		maxHistory = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		states:     make(map[string]*EntityState),
		history:    make(map[string]*historyRing),
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// SetState writes a new state for entityID. attributes and context are
// copied; the caller's maps may be reused afterward.
//
// last_changed advances only when state or attributes actually differ from
// the current record; forceUpdate never moves it on its own. last_updated
// always advances to now, whether or not anything else changed. A write
// that changes neither state nor attributes and does not set forceUpdate
// still replaces the record (so LastUpdated and Context move forward) but
// touches no history and notifies no listener at all. A write that sets
// forceUpdate without an actual diff also touches no history, but still
// notifies listeners, per the distinction the original implementation draws
// between "the entity reported in again" and "the entity's value actually
// moved".
func (s *Store) SetState(entityID, newState string, attributes map[string]any, ctx *EntityContext, forceUpdate bool, now time.Time) (*EntityState, error) {
	if err := validateEntityID(entityID); err != nil {
		return nil, err
	}

	s.mu.Lock()

	prev := s.states[entityID]
	stateChanged := prev == nil || prev.State != newState || !attributesEqual(prev.Attributes, attributes)
	notify := stateChanged || forceUpdate

	rec := &EntityState{
		EntityID:    entityID,
		State:       newState,
		Attributes:  cloneAttributes(attributes),
		LastUpdated: now,
		Context:     ctx.clone(),
	}
	if stateChanged {
		rec.LastChanged = now
	} else {
		rec.LastChanged = prev.LastChanged
	}

	s.states[entityID] = rec

	if stateChanged && prev != nil {
		ring, ok := s.history[entityID]
		if !ok {
			ring = newHistoryRing(s.maxHistory)
			s.history[entityID] = ring
		}
		ring.add(prev)
	}

	s.seq++
	change := Change{Seq: s.seq, New: rec.clone(), Changed: stateChanged}
	if prev != nil {
		change.Old = prev.clone()
	}

	listeners := make([]listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if notify {
		for _, l := range listeners {
			s.dispatch(l, change)
		}
	}

	return rec.clone(), nil
}

// dispatch invokes one listener, recovering a panic into a logged
// SubscriberFailure so a single misbehaving subscriber can never corrupt a
// write or block the remaining subscribers.
func (s *Store) dispatch(l listenerEntry, change Change) {
	defer func() {
		if r := recover(); r != nil {
			err := &kernelerr.SubscriberFailure{Cause: panicToError(r)}
			s.logger.Error("state listener panicked", "entity_id", change.New.EntityID, "error", err)
		}
	}()
	l.fn(change)
}

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicValue{v: r}
}

type panicValue struct{ v any }

func (p *panicValue) Error() string { return "panic: " + formatAny(p.v) }

func formatAny(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-string panic value"
}

// GetState returns the current record for entityID, or NotFound.
func (s *Store) GetState(entityID string) (*EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.states[entityID]
	if !ok {
		return nil, kernelerr.NewNotFound("entity", entityID)
	}
	return rec.clone(), nil
}

// GetAllStates returns every current entity record, sorted by entity id for
// deterministic output.
func (s *Store) GetAllStates() []*EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*EntityState, 0, len(s.states))
	for _, rec := range s.states {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// GetStatesByDomain returns current records whose entity id has the given
// domain prefix, sorted by entity id.
func (s *Store) GetStatesByDomain(domain string) []*EntityState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*EntityState, 0)
	for id, rec := range s.states {
		if domainOf(id) == domain {
			out = append(out, rec.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// GetHistory returns up to maxHistory past snapshots for entityID,
// oldest-first, not including the current value, filtered to those whose
// LastUpdated falls within [start, end]. A zero start or end leaves that
// bound open. Returns an empty slice (not an error) for an entity that
// exists but has never changed, and NotFound for an entity that has never
// been written.
func (s *Store) GetHistory(entityID string, start, end time.Time) ([]*EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[entityID]; !ok {
		return nil, kernelerr.NewNotFound("entity", entityID)
	}
	ring, ok := s.history[entityID]
	if !ok {
		return []*EntityState{}, nil
	}
	snapshot := ring.snapshot()
	if start.IsZero() && end.IsZero() {
		return snapshot, nil
	}
	out := make([]*EntityState, 0, len(snapshot))
	for _, rec := range snapshot {
		if !start.IsZero() && rec.LastUpdated.Before(start) {
			continue
		}
		if !end.IsZero() && rec.LastUpdated.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RemoveState deletes entityID's current record and history. Returns
// NotFound if the entity does not exist.
func (s *Store) RemoveState(entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[entityID]; !ok {
		return kernelerr.NewNotFound("entity", entityID)
	}
	delete(s.states, entityID)
	delete(s.history, entityID)
	return nil
}

// AddListener registers fn to be called after every accepted SetState, in
// registration order relative to other listeners. It returns an id that
// can be passed to RemoveListener.
func (s *Store) AddListener(fn Listener) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	return id
}

// RemoveListener unregisters a listener previously returned by
// AddListener. It is a no-op if id is unknown or already removed.
func (s *Store) RemoveListener(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}
