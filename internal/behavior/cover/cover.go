// Package cover implements the cover domain's behavior engine: blinds,
// shades, and garage doors with position-driven state derivation and a
// time-of-day automatic control loop. Grounded on the original
// implementation's CoverBehavior.
package cover

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

const autoInterval = 30 * time.Minute

type coverConfig struct {
	deviceClass string
	manualOnly  bool
}

// Engine is the cover domain's behavior engine.
type Engine struct {
	behavior.Base

	store *state.Store
	clk   *clock.Clock
	sched *scheduler.Scheduler

	mu      sync.Mutex
	configs map[string]coverConfig

	taskID string
}

// New constructs a cover Engine.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler) *Engine {
	e := &Engine{
		Base:    behavior.NewBase("cover"),
		store:   store,
		clk:     clk,
		sched:   sched,
		configs: make(map[string]coverConfig),
	}
	e.RegisterHandler("open_cover", e.serviceOpenCover)
	e.RegisterHandler("close_cover", e.serviceCloseCover)
	e.RegisterHandler("stop_cover", e.serviceStopCover)
	e.RegisterHandler("set_cover_position", e.serviceSetCoverPosition)
	e.RegisterHandler("set_cover_tilt_position", e.serviceSetCoverTiltPosition)
	return e
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the cover domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	deviceClass := behavior.ConfigString(config, "device_class", "blind")
	cfg := coverConfig{
		deviceClass: deviceClass,
		manualOnly:  behavior.ConfigBool(config, "manual_only", false),
	}

	attrs := map[string]any{
		"friendly_name":      behavior.FriendlyName(entityID, config),
		"device_class":       deviceClass,
		"supported_features": 15,
		"current_position":  0,
	}
	if behavior.ConfigBool(config, "tilt_support", deviceClass == "blind") {
		attrs["supported_features"] = 15 | 128
		attrs["current_tilt_position"] = 0
	}

	e.mu.Lock()
	e.configs[entityID] = cfg
	e.mu.Unlock()

	_, err := e.store.SetState(entityID, "closed", attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.taskID, _ = e.sched.ScheduleInterval("cover.simulate_automatic_control", autoInterval, e.simulateAutomaticControl)
}

func (e *Engine) Stop() {
	if e.taskID != "" {
		e.sched.Cancel(e.taskID)
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

func (e *Engine) simulateAutomaticControl(now time.Time) {
	hour := now.Hour()
	for _, id := range e.OwnedIDs() {
		e.mu.Lock()
		cfg := e.configs[id]
		e.mu.Unlock()
		if cfg.manualOnly {
			continue
		}

		switch cfg.deviceClass {
		case "blind", "shade":
			switch {
			case hour >= 6 && hour < 8:
				if rand.Float64() < 0.3 {
					e.setPosition(id, 100, now)
				}
			case hour >= 17 && hour < 19:
				if rand.Float64() < 0.3 {
					e.setPosition(id, 0, now)
				}
			}
		case "garage":
			if isCommuteHour(hour) && rand.Float64() < 0.1 {
				rec, err := e.store.GetState(id)
				if err != nil {
					continue
				}
				current := intAttr(rec.Attributes, "current_position", 0)
				next := 100
				if current != 0 {
					next = 0
				}
				e.setPosition(id, next, now)
			}
		}
	}
}

func isCommuteHour(hour int) bool {
	return hour == 8 || hour == 9 || hour == 17 || hour == 18
}

func (e *Engine) setPosition(entityID string, position int, now time.Time) {
	position = behavior.ClampInt(position, 0, 100)
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return
	}
	attrs := cloneMap(rec.Attributes)
	previous := intAttr(attrs, "current_position", 0)
	attrs["current_position"] = position

	var newState string
	switch {
	case position == 0:
		newState = "closed"
	case position == 100:
		newState = "open"
	case position > previous:
		newState = "opening"
	default:
		newState = "closing"
	}

	e.store.SetState(entityID, newState, attrs, nil, false, now)
}

func (e *Engine) serviceOpenCover(entityID string, data map[string]any) bool {
	e.setPosition(entityID, 100, e.clk.Now())
	return true
}

func (e *Engine) serviceCloseCover(entityID string, data map[string]any) bool {
	e.setPosition(entityID, 0, e.clk.Now())
	return true
}

func (e *Engine) serviceStopCover(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	if rec.State != "opening" && rec.State != "closing" {
		return false
	}
	_, err = e.store.SetState(entityID, "open", rec.Attributes, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSetCoverPosition(entityID string, data map[string]any) bool {
	v, ok := data["position"]
	if !ok {
		return false
	}
	e.setPosition(entityID, toInt(v), e.clk.Now())
	return true
}

func (e *Engine) serviceSetCoverTiltPosition(entityID string, data map[string]any) bool {
	v, ok := data["tilt_position"]
	if !ok {
		return false
	}
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	if _, has := rec.Attributes["current_tilt_position"]; !has {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["current_tilt_position"] = behavior.ClampInt(toInt(v), 0, 100)
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func intAttr(attrs map[string]any, key string, def int) int {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	return toInt(v)
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

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
