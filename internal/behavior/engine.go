// Package behavior defines the common contract every domain engine
// implements (light, switch, binary_sensor, sensor, climate, cover,
// media_player) and the shared bookkeeping those engines embed: entity
// ownership tracking and an explicit per-service handler table. The
// original implementation dispatched service calls by reflecting for a
// method named `_service_<name>`; here every engine builds a
// map[string]ServiceHandler at construction instead, so the dispatch
// table is visible, typed, and cannot silently pick up an unrelated method.
package behavior

import (
	"context"
	"strings"
	"sync"
)

// ServiceHandler mutates the entity identified by entityID (or applies a
// house-wide effect when entityID is empty) and reports whether it
// handled the call.
type ServiceHandler func(entityID string, data map[string]any) bool

// Engine is the contract the service registry and the simulator
// coordinator hold every domain implementation to.
type Engine interface {
	// Domain returns the engine's entity-id domain prefix, e.g. "light".
	Domain() string

	// RegisterEntity adds entityID to the engine with the given
	// configuration, seeding its initial state if it has none yet.
	// Returns an error if entityID's domain prefix does not match Domain().
	RegisterEntity(entityID string, config map[string]any) error

	// Start schedules the engine's recurring ambient-simulation tasks.
	// Idempotent: calling it twice must not double-schedule.
	Start(ctx context.Context)

	// Stop cancels the engine's scheduled tasks, if any.
	Stop()

	// HandleServiceCall dispatches service against entityID (empty for a
	// house-wide call). Returns false if entityID is not owned by this
	// engine or service has no registered handler.
	HandleServiceCall(service, entityID string, data map[string]any) bool
}

// Base provides the ownership tracking and handler table every concrete
// engine embeds, so individual engines only need to register handlers and
// implement their own ambient-simulation loops.
type Base struct {
	domain string

	mu       sync.Mutex
	owned    map[string]bool
	handlers map[string]ServiceHandler

	started bool
}

// NewBase constructs a Base for the given domain token.
func NewBase(domain string) Base {
	return Base{
		domain:   domain,
		owned:    make(map[string]bool),
		handlers: make(map[string]ServiceHandler),
	}
}

// Domain implements Engine.
func (b *Base) Domain() string { return b.domain }

// Own records entityID as owned by this engine, after checking its domain
// prefix matches. Returns false if the prefix does not match.
func (b *Base) Own(entityID string) bool {
	prefix := b.domain + "."
	if !strings.HasPrefix(entityID, prefix) || len(entityID) == len(prefix) {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owned[entityID] = true
	return true
}

// Owns reports whether entityID was previously registered via Own.
func (b *Base) Owns(entityID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owned[entityID]
}

// OwnedIDs returns every entity id this engine owns, in no particular
// order. Intended for ambient-simulation loops that iterate all entities.
func (b *Base) OwnedIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.owned))
	for id := range b.owned {
		ids = append(ids, id)
	}
	return ids
}

// RegisterHandler installs fn as the handler for service. Intended to be
// called from the concrete engine's constructor to build its explicit
// dispatch table.
func (b *Base) RegisterHandler(service string, fn ServiceHandler) {
	b.handlers[service] = fn
}

// Dispatch implements the entityID-ownership and handler-lookup rules
// every engine's HandleServiceCall shares: a house-wide call (entityID
// empty) skips the ownership check, a per-entity call requires ownership,
// and an unregistered service always returns false.
func (b *Base) Dispatch(service, entityID string, data map[string]any) bool {
	if entityID != "" && !b.Owns(entityID) {
		return false
	}
	b.mu.Lock()
	fn, ok := b.handlers[service]
	b.mu.Unlock()
	if !ok {
		return false
	}
	return fn(entityID, data)
}

// MarkStarted reports whether this is the first call (Start is specified
// as idempotent across all engines).
func (b *Base) MarkStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return false
	}
	b.started = true
	return true
}

// MergeAttributes returns a new map holding every key of base overlaid
// with every key of delta, so a write that only touches one attribute
// never discards its siblings.
func MergeAttributes(base, delta map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range delta {
		out[k] = v
	}
	return out
}
