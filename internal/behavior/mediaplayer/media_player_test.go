package mediaplayer

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

func TestEngine_RegisterEntityDefaults(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.living_room", nil)
	rec, err := store.GetState("media_player.living_room")
	if err != nil {
		t.Fatal(err)
	}
	if rec.State != "off" {
		t.Errorf("state = %q, want off", rec.State)
	}
	if rec.Attributes["source"] != "Spotify" {
		t.Errorf("source = %v, want Spotify", rec.Attributes["source"])
	}
	if rec.Attributes["volume_level"] != 0.3 {
		t.Errorf("volume_level = %v, want 0.3", rec.Attributes["volume_level"])
	}
}

func TestEngine_TurnOnSetsIdle(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	if ok := e.HandleServiceCall("turn_on", "media_player.a", nil); !ok {
		t.Fatal("expected turn_on to succeed")
	}
	rec, _ := store.GetState("media_player.a")
	if rec.State != "idle" {
		t.Errorf("state = %q, want idle", rec.State)
	}
}

func TestEngine_ToggleFromPlayingTurnsOff(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	e.HandleServiceCall("media_play", "media_player.a", nil)
	e.HandleServiceCall("toggle", "media_player.a", nil)
	rec, _ := store.GetState("media_player.a")
	if rec.State != "off" {
		t.Errorf("state = %q, want off", rec.State)
	}
}

func TestEngine_ToggleFromOffTurnsIdle(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	e.HandleServiceCall("toggle", "media_player.a", nil)
	rec, _ := store.GetState("media_player.a")
	if rec.State != "idle" {
		t.Errorf("state = %q, want idle", rec.State)
	}
}

func TestEngine_VolumeSetClamps(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	e.HandleServiceCall("volume_set", "media_player.a", map[string]any{"volume_level": 5.0})
	rec, _ := store.GetState("media_player.a")
	if rec.Attributes["volume_level"] != 1.0 {
		t.Errorf("volume_level = %v, want clamped to 1.0", rec.Attributes["volume_level"])
	}
}

func TestEngine_VolumeMuteRequiresBool(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	if ok := e.HandleServiceCall("volume_mute", "media_player.a", map[string]any{"is_volume_muted": "yes"}); ok {
		t.Error("expected volume_mute to reject a non-bool value")
	}
	e.HandleServiceCall("volume_mute", "media_player.a", map[string]any{"is_volume_muted": true})
	rec, _ := store.GetState("media_player.a")
	if rec.Attributes["is_volume_muted"] != true {
		t.Errorf("is_volume_muted = %v, want true", rec.Attributes["is_volume_muted"])
	}
}

func TestEngine_SelectSourceValidatesAgainstSourceList(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	if ok := e.HandleServiceCall("select_source", "media_player.a", map[string]any{"source": "Nonexistent"}); ok {
		t.Error("expected select_source to reject a source not in source_list")
	}
	if ok := e.HandleServiceCall("select_source", "media_player.a", map[string]any{"source": "Netflix"}); !ok {
		t.Fatal("expected select_source to accept a listed source")
	}
	rec, _ := store.GetState("media_player.a")
	if rec.Attributes["source"] != "Netflix" {
		t.Errorf("source = %v, want Netflix", rec.Attributes["source"])
	}
}

func TestEngine_MediaPlayPauseStop(t *testing.T) {
	e, store := newTestEngine()
	e.RegisterEntity("media_player.a", nil)
	e.HandleServiceCall("media_play", "media_player.a", nil)
	rec, _ := store.GetState("media_player.a")
	if rec.State != "playing" {
		t.Fatalf("state = %q, want playing", rec.State)
	}
	e.HandleServiceCall("media_pause", "media_player.a", nil)
	rec, _ = store.GetState("media_player.a")
	if rec.State != "paused" {
		t.Fatalf("state = %q, want paused", rec.State)
	}
	e.HandleServiceCall("media_stop", "media_player.a", nil)
	rec, _ = store.GetState("media_player.a")
	if rec.State != "idle" {
		t.Fatalf("state = %q, want idle", rec.State)
	}
}
