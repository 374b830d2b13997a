package cover

import (
	"log/slog"
	"testing"
	"time"

	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
)

func newTestEngine() (*Engine, *state.Store) {
	store := state.New(10, slog.Default())
	clk := clock.New(time.Now(), 1, false)
	sched := scheduler.New(clk, slog.Default())
	return New(store, clk, sched), store
}

func TestEngine_RegisterEntityDefaultsClosed(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("cover.living_room", nil)
	rec, err := store.GetState("cover.living_room")
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != "closed" {
		t.Errorf("state = %q, want closed", rec.State)
	}
	if rec.Attributes["current_position"] != 0 {
		t.Errorf("current_position = %v, want 0", rec.Attributes["current_position"])
	}
}

func TestEngine_OpenCoverSetsFullyOpen(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("cover.a", nil)
	e.HandleServiceCall("open_cover", "cover.a", nil)
	rec, _ := store.GetState("cover.a")
	if rec.State != "open" || rec.Attributes["current_position"] != 100 {
		t.Errorf("state=%q position=%v, want open/100", rec.State, rec.Attributes["current_position"])
	}
}

func TestEngine_SetCoverPositionDerivesIntermediateState(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("cover.a", nil)
	e.HandleServiceCall("set_cover_position", "cover.a", map[string]any{"position": 50})
	rec, _ := store.GetState("cover.a")
	if rec.State != "opening" {
		t.Errorf("state = %q, want opening (moved up from 0)", rec.State)
	}
	if rec.Attributes["current_position"] != 50 {
		t.Errorf("current_position = %v, want 50", rec.Attributes["current_position"])
	}
}

func TestEngine_StopCoverOnlyAppliesMidTravel(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("cover.a", nil)
	if ok := e.HandleServiceCall("stop_cover", "cover.a", nil); ok {
		t.Error("stop_cover should fail on a fully closed cover")
	}
	e.HandleServiceCall("set_cover_position", "cover.a", map[string]any{"position": 50})
	if ok := e.HandleServiceCall("stop_cover", "cover.a", nil); !ok {
		t.Fatal("stop_cover should succeed mid-travel")
	}
	rec, _ := store.GetState("cover.a")
	if rec.State != "open" {
		t.Errorf("state after stop = %q, want open", rec.State)
	}
}

func TestEngine_TiltPositionRequiresTiltSupport(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("cover.a", map[string]any{"device_class": "garage"})
	if ok := e.HandleServiceCall("set_cover_tilt_position", "cover.a", map[string]any{"tilt_position": 50}); ok {
		t.Error("expected tilt position to fail on a device class without tilt support")
	}

	e.RegisterEntity("cover.blind", map[string]any{"device_class": "blind"})
	if ok := e.HandleServiceCall("set_cover_tilt_position", "cover.blind", map[string]any{"tilt_position": 50}); !ok {
		t.Fatal("expected tilt position to succeed on a blind")
	}
	rec, _ := store.GetState("cover.blind")
	if rec.Attributes["current_tilt_position"] != 50 {
		t.Errorf("current_tilt_position = %v, want 50", rec.Attributes["current_tilt_position"])
	}
}
