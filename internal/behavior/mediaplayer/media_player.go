// Package mediaplayer implements the media_player domain's behavior
// engine: playback/volume/source services and a time-of-day usage
// simulation that starts, advances, and ends sessions. Grounded on the
// original implementation's MediaPlayerBehavior.
package mediaplayer

import (
	"context"
	"math/rand"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/kernelerr"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
)

const usageInterval = 10 * time.Minute
const positionIncrementSeconds = 600 // 10-minute tick

var mediaTypes = []string{"music", "tvshow", "movie", "video", "podcast"}
var sources = []string{"Spotify", "YouTube", "Netflix", "Plex", "Apple TV", "HDMI 1", "HDMI 2"}

// Engine is the media_player domain's behavior engine.
type Engine struct {
	behavior.Base

	store *state.Store
	clk   *clock.Clock
	sched *scheduler.Scheduler

	taskID string
}

// New constructs a media_player Engine.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler) *Engine {
	e := &Engine{
		Base:  behavior.NewBase("media_player"),
		store: store,
		clk:   clk,
		sched: sched,
	}
	e.RegisterHandler("turn_on", e.serviceTurnOn)
	e.RegisterHandler("turn_off", e.serviceTurnOff)
	e.RegisterHandler("toggle", e.serviceToggle)
	e.RegisterHandler("media_play", e.serviceMediaPlay)
	e.RegisterHandler("media_pause", e.serviceMediaPause)
	e.RegisterHandler("media_stop", e.serviceMediaStop)
	e.RegisterHandler("volume_set", e.serviceVolumeSet)
	e.RegisterHandler("volume_mute", e.serviceVolumeMute)
	e.RegisterHandler("select_source", e.serviceSelectSource)
	return e
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the media_player domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	attrs := map[string]any{
		"friendly_name":      behavior.FriendlyName(entityID, config),
		"supported_features": 149563,
		"volume_level":       0.3,
		"is_volume_muted":    false,
		"source_list":        toAnySlice(sources),
		"source":             sources[0],
	}

	_, err := e.store.SetState(entityID, "off", attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.taskID, _ = e.sched.ScheduleInterval("media_player.simulate_usage", usageInterval, e.simulateUsage)
}

func (e *Engine) Stop() {
	if e.taskID != "" {
		e.sched.Cancel(e.taskID)
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

func usageProbability(hour int) float64 {
	switch {
	case hour >= 6 && hour < 9:
		return 0.2
	case hour >= 12 && hour < 14:
		return 0.15
	case hour >= 17 && hour < 23:
		return 0.6
	default:
		return 0.05
	}
}

func (e *Engine) simulateUsage(now time.Time) {
	usageProb := usageProbability(now.Hour())

	for _, id := range e.OwnedIDs() {
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}

		switch rec.State {
		case "off":
			if rand.Float64() < usageProb*0.05 {
				mediaType := mediaTypes[rand.Intn(len(mediaTypes))]
				attrs := cloneMap(rec.Attributes)
				attrs["media_content_type"] = mediaType
				attrs["media_title"] = "Sample " + titleCase(mediaType)
				attrs["media_artist"] = "Unknown Artist"
				attrs["media_duration"] = 180 + rand.Intn(7200-180)
				attrs["media_position"] = 0
				attrs["source"] = sources[rand.Intn(len(sources))]
				e.store.SetState(id, "playing", attrs, nil, false, now)
			}
		case "playing":
			attrs := cloneMap(rec.Attributes)
			pos := intAttr(attrs, "media_position", 0) + positionIncrementSeconds
			dur := intAttr(attrs, "media_duration", 300)

			if pos >= dur {
				e.store.SetState(id, "idle", attrs, nil, false, now)
				continue
			}
			attrs["media_position"] = pos
			e.store.SetState(id, "playing", attrs, nil, false, now)

			if rand.Float64() < 0.1 {
				e.store.SetState(id, "paused", attrs, nil, false, now)
			} else if rand.Float64() < 0.05 {
				e.store.SetState(id, "off", attrs, nil, false, now)
			}
		}
	}
}

func (e *Engine) serviceTurnOn(entityID string, data map[string]any) bool {
	return e.setState(entityID, "idle")
}

func (e *Engine) serviceTurnOff(entityID string, data map[string]any) bool {
	return e.setState(entityID, "off")
}

func (e *Engine) serviceToggle(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	next := "idle"
	if rec.State == "playing" || rec.State == "paused" || rec.State == "idle" {
		next = "off"
	}
	return e.setState(entityID, next)
}

func (e *Engine) serviceMediaPlay(entityID string, data map[string]any) bool {
	return e.setState(entityID, "playing")
}

func (e *Engine) serviceMediaPause(entityID string, data map[string]any) bool {
	return e.setState(entityID, "paused")
}

func (e *Engine) serviceMediaStop(entityID string, data map[string]any) bool {
	return e.setState(entityID, "idle")
}

func (e *Engine) serviceVolumeSet(entityID string, data map[string]any) bool {
	v, ok := data["volume_level"]
	if !ok {
		return false
	}
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["volume_level"] = behavior.Clamp(toFloat(v), 0, 1)
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceVolumeMute(entityID string, data map[string]any) bool {
	v, ok := data["is_volume_muted"].(bool)
	if !ok {
		return false
	}
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["is_volume_muted"] = v
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSelectSource(entityID string, data map[string]any) bool {
	source, ok := data["source"].(string)
	if !ok {
		return false
	}
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	list, _ := rec.Attributes["source_list"].([]any)
	if !containsAny(list, source) {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["source"] = source
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) setState(entityID, newState string) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	_, err = e.store.SetState(entityID, newState, rec.Attributes, nil, false, e.clk.Now())
	return err == nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func containsAny(list []any, s string) bool {
	for _, v := range list {
		if str, ok := v.(string); ok && str == s {
			return true
		}
	}
	return false
}

func intAttr(attrs map[string]any, key string, def int) int {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return def
	}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return 0
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 32
	}
	return string(r)
}
