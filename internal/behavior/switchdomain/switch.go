// Package switchdomain implements the switch domain's behavior engine:
// on/off/toggle and an optional power-monitoring ambient loop. Named
// switchdomain (not switch) to avoid shadowing the language keyword.
// Grounded on the original implementation's SwitchBehavior.
package switchdomain

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

const powerMonitoringInterval = 30 * time.Second

type switchConfig struct {
	powerMonitoring bool
	ratedPower      float64
}

// Engine is the switch domain's behavior engine.
type Engine struct {
	behavior.Base

	store *state.Store
	clk   *clock.Clock
	sched *scheduler.Scheduler

	mu      sync.Mutex
	configs map[string]switchConfig

	taskID string
}

// New constructs a switch Engine.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler) *Engine {
	e := &Engine{
		Base:    behavior.NewBase("switch"),
		store:   store,
		clk:     clk,
		sched:   sched,
		configs: make(map[string]switchConfig),
	}
	e.RegisterHandler("turn_on", e.serviceTurnOn)
	e.RegisterHandler("turn_off", e.serviceTurnOff)
	e.RegisterHandler("toggle", e.serviceToggle)
	return e
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the switch domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	attrs := map[string]any{
		"friendly_name": behavior.FriendlyName(entityID, config),
	}
	cfg := switchConfig{
		powerMonitoring: behavior.ConfigBool(config, "power_monitoring", false),
		ratedPower:      behavior.ConfigFloat(config, "rated_power", 10.0),
	}
	if cfg.powerMonitoring {
		attrs["current_power_w"] = 0.0
	}

	e.mu.Lock()
	e.configs[entityID] = cfg
	e.mu.Unlock()

	initialState := behavior.ConfigString(config, "initial_state", "off")
	_, err := e.store.SetState(entityID, initialState, attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.taskID, _ = e.sched.ScheduleInterval("switch.update_power_monitoring", powerMonitoringInterval, e.updatePowerMonitoring)
}

func (e *Engine) Stop() {
	if e.taskID != "" {
		e.sched.Cancel(e.taskID)
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

func (e *Engine) updatePowerMonitoring(now time.Time) {
	for _, id := range e.OwnedIDs() {
		e.mu.Lock()
		cfg, ok := e.configs[id]
		e.mu.Unlock()
		if !ok || !cfg.powerMonitoring {
			continue
		}

		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}

		var power float64
		if rec.State == "on" {
			power = cfg.ratedPower * (0.9 + rand.Float64()*0.2)
		} else {
			power = rand.Float64() * 0.5
		}

		attrs := behavior.MergeAttributes(rec.Attributes, map[string]any{
			"current_power_w": roundTo(power, 1),
		})
		e.store.SetState(id, rec.State, attrs, nil, false, now)
	}
}

func (e *Engine) serviceTurnOn(entityID string, data map[string]any) bool {
	return e.setState(entityID, "on")
}

func (e *Engine) serviceTurnOff(entityID string, data map[string]any) bool {
	return e.setState(entityID, "off")
}

func (e *Engine) serviceToggle(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	next := "on"
	if rec.State == "on" {
		next = "off"
	}
	return e.setState(entityID, next)
}

func (e *Engine) setState(entityID, newState string) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
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
