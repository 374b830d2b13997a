package registry

import (
	"context"
	"testing"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
)

// fakeEngine is a minimal behavior.Engine for exercising the registry
// without pulling in a real domain package.
type fakeEngine struct {
	behavior.Base
}

func newFakeEngine(domain string) *fakeEngine {
	e := &fakeEngine{Base: behavior.NewBase(domain)}
	e.RegisterHandler("turn_on", func(entityID string, data map[string]any) bool { return true })
	e.RegisterHandler("explode", func(entityID string, data map[string]any) bool { panic("boom") })
	return e
}

func (e *fakeEngine) RegisterEntity(entityID string, config map[string]any) error {
	e.Own(entityID)
	return nil
}

func (e *fakeEngine) Start(ctx context.Context) {}
func (e *fakeEngine) Stop()                     {}

func (e *fakeEngine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

func TestRegistry_UnknownDomain(t *testing.T) {
	r := New(nil)
	results := r.CallService("light", "turn_on", []string{"light.a"}, nil)
	if len(results) != 1 || results[0].OK || results[0].Reason != reasonUnknownDomain {
		t.Fatalf("results = %+v", results)
	}
}

func TestRegistry_UnknownService(t *testing.T) {
	r := New(nil)
	r.RegisterEngine(newFakeEngine("light"))
	results := r.CallService("light", "levitate", []string{"light.a"}, nil)
	if len(results) != 1 || results[0].OK || results[0].Reason != reasonUnknownService {
		t.Fatalf("results = %+v", results)
	}
}

func TestRegistry_SuccessfulCallPerTarget(t *testing.T) {
	r := New(nil)
	e := newFakeEngine("light")
	r.RegisterEngine(e)
	e.RegisterEntity("light.a", nil)
	e.RegisterEntity("light.b", nil)

	results := r.CallService("light", "turn_on", []string{"light.a", "light.b"}, nil)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.OK {
			t.Errorf("expected OK for %s, got %+v", res.EntityID, res)
		}
	}
}

func TestRegistry_NotOwnedEntityFails(t *testing.T) {
	r := New(nil)
	e := newFakeEngine("light")
	r.RegisterEngine(e)

	results := r.CallService("light", "turn_on", []string{"light.unregistered"}, nil)
	if len(results) != 1 || results[0].OK || results[0].Reason != reasonNotHandled {
		t.Fatalf("results = %+v", results)
	}
}

func TestRegistry_EmptyTargetsInvokesOnceHouseWide(t *testing.T) {
	r := New(nil)
	r.RegisterEngine(newFakeEngine("light"))
	results := r.CallService("light", "turn_on", nil, nil)
	if len(results) != 1 || !results[0].OK || results[0].EntityID != "" {
		t.Fatalf("results = %+v", results)
	}
}

func TestRegistry_HandlerPanicBecomesHandlerFailure(t *testing.T) {
	r := New(nil)
	e := newFakeEngine("light")
	r.RegisterEngine(e)
	e.RegisterEntity("light.a", nil)

	// "explode" isn't in the default schema, so register it so the schema
	// check doesn't short-circuit before the panic path is exercised.
	r.mu.Lock()
	s := r.schemas["light"]
	s["explode"] = ServiceSchema{Description: "test"}
	r.mu.Unlock()

	results := r.CallService("light", "explode", []string{"light.a"}, nil)
	if len(results) != 1 || results[0].OK || results[0].Reason != reasonHandlerFailure {
		t.Fatalf("results = %+v", results)
	}
}

func TestRegistry_ServicesSchemaIncludesDefaults(t *testing.T) {
	r := New(nil)
	r.RegisterEngine(newFakeEngine("light"))
	schema := r.ServicesSchema()
	lightSchema, ok := schema["light"]
	if !ok {
		t.Fatal("expected a light domain schema")
	}
	for _, svc := range []string{"turn_on", "turn_off", "toggle"} {
		if _, ok := lightSchema[svc]; !ok {
			t.Errorf("expected default service %q in light schema", svc)
		}
	}
	if len(lightSchema["turn_on"].Fields) == 0 {
		t.Error("expected light.turn_on to have extra fields in its schema")
	}
}

func TestRegistry_ReregisteringDomainReplacesEngine(t *testing.T) {
	r := New(nil)
	first := newFakeEngine("light")
	r.RegisterEngine(first)
	first.RegisterEntity("light.a", nil)

	second := newFakeEngine("light")
	r.RegisterEngine(second)

	// light.a was only ever owned by the first engine.
	results := r.CallService("light", "turn_on", []string{"light.a"}, nil)
	if results[0].OK {
		t.Error("expected the replaced engine to not recognize the old engine's entity")
	}
}

func TestRegistry_LatencyRecorderFiresPerTarget(t *testing.T) {
	r := New(nil)
	e := newFakeEngine("light")
	r.RegisterEngine(e)
	e.RegisterEntity("light.a", nil)
	e.RegisterEntity("light.b", nil)

	var domains []string
	r.SetLatencyRecorder(func(domain string, d time.Duration) {
		domains = append(domains, domain)
		if d < 0 {
			t.Errorf("latency should never be negative, got %v", d)
		}
	})

	r.CallService("light", "turn_on", []string{"light.a", "light.b"}, nil)
	if len(domains) != 2 || domains[0] != "light" || domains[1] != "light" {
		t.Fatalf("expected two light-domain latency samples, got %v", domains)
	}
}
