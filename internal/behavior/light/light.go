// Package light implements the light domain's behavior engine: capability
// attributes derived from registration config, brightness/color_temp/
// rgb_color/effect services, and an ambient time-of-day-driven usage
// simulation. Grounded on the original implementation's LightBehavior.
package light

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/kernelerr"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
)

const simulateInterval = 5 * time.Minute

var effectList = []string{"none", "colorloop", "random"}

// Engine is the light domain's behavior engine.
type Engine struct {
	behavior.Base

	store *state.Store
	clk   *clock.Clock
	sched *scheduler.Scheduler

	mu        sync.Mutex
	automated map[string]bool

	taskID string
}

// New constructs a light Engine bound to the given store, clock, and
// scheduler.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler) *Engine {
	e := &Engine{
		Base:      behavior.NewBase("light"),
		store:     store,
		clk:       clk,
		sched:     sched,
		automated: make(map[string]bool),
	}
	e.RegisterHandler("turn_on", e.serviceTurnOn)
	e.RegisterHandler("turn_off", e.serviceTurnOff)
	e.RegisterHandler("toggle", e.serviceToggle)
	return e
}

// RegisterEntity registers a light entity, seeding its capability
// attributes from config if it has no existing state.
func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the light domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	attrs := map[string]any{
		"friendly_name": behavior.FriendlyName(entityID, config),
	}
	var supported int

	if behavior.ConfigBool(config, "brightness", true) {
		attrs["brightness"] = 255
		supported |= 1
	}
	if behavior.ConfigBool(config, "color_temp", false) {
		attrs["color_temp"] = 370
		attrs["min_mireds"] = 153
		attrs["max_mireds"] = 500
		supported |= 2
	}
	if behavior.ConfigBool(config, "rgb_color", false) {
		attrs["rgb_color"] = []any{255, 255, 255}
		supported |= 16
	}
	if behavior.ConfigBool(config, "effect", false) {
		attrs["effect_list"] = toAnySlice(effectList)
		attrs["effect"] = "none"
		supported |= 4
	}
	attrs["supported_features"] = supported

	if behavior.ConfigBool(config, "automated", false) {
		e.mu.Lock()
		e.automated[entityID] = true
		e.mu.Unlock()
	}

	_, err := e.store.SetState(entityID, "off", attrs, nil, true, e.clk.Now())
	return err
}

// LinkMotionSensor marks lightID as automated, so the ambient usage
// simulation skips it (a motion-linked automation owns its state instead).
func (e *Engine) LinkMotionSensor(lightID string) {
	e.mu.Lock()
	e.automated[lightID] = true
	e.mu.Unlock()
}

// Start schedules the ambient usage simulation. Idempotent.
func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.taskID, _ = e.sched.ScheduleInterval("light.simulate_usage", simulateInterval, e.simulateUsage)
}

// Stop cancels the ambient usage simulation.
func (e *Engine) Stop() {
	if e.taskID != "" {
		e.sched.Cancel(e.taskID)
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

// simulateUsage draws a per-hour activity fraction and randomly toggles
// non-automated lights with probability 0.1 x activity.
func (e *Engine) simulateUsage(now time.Time) {
	activity := activityFraction(now.Hour())

	for _, id := range e.OwnedIDs() {
		e.mu.Lock()
		automated := e.automated[id]
		e.mu.Unlock()
		if automated {
			continue
		}

		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}

		if rand.Float64() >= activity*0.1 {
			continue
		}

		newState := "off"
		if rec.State == "on" {
			newState = "off"
		} else {
			newState = "on"
		}

		attrs := rec.Attributes
		if newState == "on" {
			if _, ok := attrs["brightness"]; ok {
				attrs = behavior.MergeAttributes(attrs, map[string]any{"brightness": 128 + rand.Intn(128)})
			}
		}
		e.store.SetState(id, newState, attrs, nil, false, now)
	}
}

func activityFraction(hour int) float64 {
	switch {
	case hour >= 6 && hour < 9:
		return 0.4
	case hour >= 9 && hour < 17:
		return 0.2
	case hour >= 17 && hour < 23:
		return 0.6
	default:
		return 0.1
	}
}

func (e *Engine) serviceTurnOn(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	attrs := cloneMap(rec.Attributes)

	if v, ok := data["brightness"]; ok {
		attrs["brightness"] = behavior.ClampInt(toInt(v), 0, 255)
	}
	if v, ok := data["color_temp"]; ok {
		if _, has := attrs["color_temp"]; has {
			attrs["color_temp"] = behavior.ClampInt(toInt(v), 153, 500)
		}
	}
	if v, ok := data["rgb_color"]; ok {
		if _, has := attrs["rgb_color"]; has {
			attrs["rgb_color"] = v
		}
	}
	if v, ok := data["effect"]; ok {
		if effect, ok := v.(string); ok && contains(effectList, effect) {
			if _, has := attrs["effect_list"]; has {
				attrs["effect"] = effect
			}
		}
	}
	if _, hasBrightness := attrs["brightness"]; hasBrightness {
		if _, given := data["brightness"]; !given {
			attrs["brightness"] = 255
		}
	}

	_, err = e.store.SetState(entityID, "on", attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceTurnOff(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	_, err = e.store.SetState(entityID, "off", rec.Attributes, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceToggle(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	if rec.State == "on" {
		return e.serviceTurnOff(entityID, data)
	}
	return e.serviceTurnOn(entityID, data)
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

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}
