// Package binarysensor implements the binary_sensor domain's behavior
// engine: motion, door/window, and generic opening sensors with a
// time-of-day activity model, plus battery drain for battery-powered
// sensors. Read-only from the service surface aside from a manual "test"
// trigger. Grounded on the original implementation's BinarySensorBehavior.
package binarysensor

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

const (
	motionInterval     = 30 * time.Second
	doorWindowInterval = 10 * time.Minute
	batteryInterval    = time.Hour
)

type sensorConfig struct {
	deviceClass         string
	area                string
	batteryPowered      bool
	occupancyControlled bool
}

// Engine is the binary_sensor domain's behavior engine.
type Engine struct {
	behavior.Base

	store *state.Store
	clk   *clock.Clock
	sched *scheduler.Scheduler

	mu      sync.Mutex
	configs map[string]sensorConfig

	motionTaskID, doorTaskID, batteryTaskID string
}

// New constructs a binary_sensor Engine.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler) *Engine {
	e := &Engine{
		Base:    behavior.NewBase("binary_sensor"),
		store:   store,
		clk:     clk,
		sched:   sched,
		configs: make(map[string]sensorConfig),
	}
	e.RegisterHandler("test", e.serviceTest)
	return e
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the binary_sensor domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	deviceClass := behavior.ConfigString(config, "device_class", "motion")
	cfg := sensorConfig{
		deviceClass:         deviceClass,
		area:                behavior.ConfigString(config, "area", ""),
		batteryPowered:      behavior.ConfigBool(config, "battery_powered", true),
		occupancyControlled: behavior.ConfigBool(config, "occupancy_controlled", false),
	}

	attrs := map[string]any{
		"friendly_name": behavior.FriendlyName(entityID, config),
		"device_class":  deviceClass,
	}
	if cfg.area != "" {
		attrs["area"] = cfg.area
	}
	if cfg.batteryPowered {
		attrs["battery_level"] = float64(80 + rand.Intn(21))
	}

	e.mu.Lock()
	e.configs[entityID] = cfg
	e.mu.Unlock()

	_, err := e.store.SetState(entityID, "off", attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.motionTaskID, _ = e.sched.ScheduleInterval("binary_sensor.simulate_motion", motionInterval, e.simulateMotion)
	e.doorTaskID, _ = e.sched.ScheduleInterval("binary_sensor.simulate_door_window", doorWindowInterval, e.simulateDoorWindow)
	e.batteryTaskID, _ = e.sched.ScheduleInterval("binary_sensor.update_battery", batteryInterval, e.updateBattery)
}

func (e *Engine) Stop() {
	for _, id := range []string{e.motionTaskID, e.doorTaskID, e.batteryTaskID} {
		if id != "" {
			e.sched.Cancel(id)
		}
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

// activityFraction mirrors the original's seven time-of-day bands.
func activityFraction(hour int) float64 {
	switch {
	case hour >= 6 && hour < 9:
		return 0.5
	case hour >= 9 && hour < 12:
		return 0.3
	case hour >= 12 && hour < 13:
		return 0.4
	case hour >= 13 && hour < 17:
		return 0.2
	case hour >= 17 && hour < 21:
		return 0.6
	case hour >= 21 && hour < 23:
		return 0.4
	default:
		return 0.05
	}
}

func (e *Engine) simulateMotion(now time.Time) {
	activity := activityFraction(now.Hour())

	for _, id := range e.OwnedIDs() {
		e.mu.Lock()
		cfg := e.configs[id]
		e.mu.Unlock()
		if cfg.deviceClass != "motion" || cfg.occupancyControlled {
			continue
		}

		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}

		if rec.State == "off" {
			if rand.Float64() < activity*0.2 {
				e.store.SetState(id, "on", rec.Attributes, nil, false, now)
			}
		} else {
			if rand.Float64() < 0.3 {
				e.store.SetState(id, "off", rec.Attributes, nil, false, now)
			}
		}
	}
}

func (e *Engine) simulateDoorWindow(now time.Time) {
	for _, id := range e.OwnedIDs() {
		e.mu.Lock()
		cfg := e.configs[id]
		e.mu.Unlock()
		if cfg.deviceClass != "door" && cfg.deviceClass != "window" && cfg.deviceClass != "opening" {
			continue
		}

		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}

		changeProb := 0.01
		if cfg.deviceClass == "door" {
			changeProb = 0.05
		}
		if rand.Float64() < changeProb {
			next := "on"
			if rec.State == "on" {
				next = "off"
			}
			e.store.SetState(id, next, rec.Attributes, nil, false, now)
		}
	}
}

func (e *Engine) updateBattery(now time.Time) {
	for _, id := range e.OwnedIDs() {
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}
		current, ok := rec.Attributes["battery_level"].(float64)
		if !ok {
			continue
		}
		newLevel := current - rand.Float64()*0.2
		if newLevel < 0 {
			newLevel = 0
		}
		attrs := behavior.MergeAttributes(rec.Attributes, map[string]any{
			"battery_level": roundTo(newLevel, 1),
		})
		e.store.SetState(id, rec.State, attrs, nil, false, now)
	}
}

func (e *Engine) serviceTest(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	newState := "on"
	if s, ok := data["state"].(string); ok {
		newState = s
	}
	_, err = e.store.SetState(entityID, newState, rec.Attributes, nil, false, e.clk.Now())
	return err == nil
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int(v*mult+0.5)) / mult
}
