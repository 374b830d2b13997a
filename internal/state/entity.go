package state

import (
	"strings"
	"time"

	"github.com/myorg/homeiqsim/internal/kernelerr"
)

// EntityContext carries opaque origin/parent/user identifiers alongside a
// write. The kernel never interprets these values; it only stores and
// returns them.
type EntityContext struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
}

func (c *EntityContext) clone() *EntityContext {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// EntityState is the authoritative record the store keeps for one entity.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
	Context     *EntityContext `json:"context,omitempty"`
}

// Domain returns the entity id's domain prefix (everything before the
// first '.').
func (e *EntityState) Domain() string {
	return domainOf(e.EntityID)
}

// clone returns a value that shares no mutable state with e, so callers
// of Store.GetState/GetAllStates/etc. cannot observe or corrupt the
// store's internal record by mutating the result.
func (e *EntityState) clone() *EntityState {
	if e == nil {
		return nil
	}
	cp := &EntityState{
		EntityID:    e.EntityID,
		State:       e.State,
		Attributes:  cloneAttributes(e.Attributes),
		LastChanged: e.LastChanged,
		LastUpdated: e.LastUpdated,
		Context:     e.Context.clone(),
	}
	return cp
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue deep-copies the JSON-shaped values attributes are built from:
// primitives (copied by value already), []any, and map[string]any.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAttributes(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// attributesEqual reports whether two attribute maps are shallow-equal in
// the sense set_state cares about: same keys, and values equal by
// reflect-free comparison for the primitive/slice/map shapes attributes
// are built from. This intentionally mirrors what the original Python
// implementation gets for free from dict equality.
func attributesEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	switch at := a.(type) {
	case map[string]any:
		bt, ok := b.(map[string]any)
		if !ok {
			return false
		}
		return attributesEqual(at, bt)
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !valuesEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func domainOf(entityID string) string {
	i := strings.IndexByte(entityID, '.')
	if i < 0 {
		return ""
	}
	return entityID[:i]
}

// validateEntityID enforces the spec.md §3 invariant: exactly one '.',
// non-empty domain and name.
func validateEntityID(entityID string) error {
	parts := strings.Split(entityID, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return kernelerr.NewInvalidArgument("entity_id", "must be of the form <domain>.<name> with a non-empty domain and name")
	}
	return nil
}
