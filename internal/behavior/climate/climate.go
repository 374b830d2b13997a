// Package climate implements the climate domain's behavior engine: a
// thermostat with HVAC modes, presets, and fan modes, and an ambient
// thermal simulation that drifts current_temperature toward outdoor
// weather while layering in the active HVAC effect. Grounded on the
// original implementation's ClimateBehavior.
package climate

import (
	"context"
	"math/rand"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/kernelerr"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
	"github.com/myorg/homeiqsim/internal/weather"
)

const hvacInterval = time.Minute

var hvacModes = []string{"off", "heat", "cool", "heat_cool", "auto", "dry", "fan_only"}
var presetModes = []string{"none", "away", "eco", "boost", "comfort", "home", "sleep"}
var fanModes = []string{"auto", "low", "medium", "high"}

var presetTargetTemp = map[string]float64{
	"away":    18.0,
	"eco":     19.0,
	"boost":   24.0,
	"comfort": 21.0,
	"sleep":   19.0,
}

const thermalDriftRate = 0.05
const hvacEffectMagnitude = 0.3

// Engine is the climate domain's behavior engine.
type Engine struct {
	behavior.Base

	store   *state.Store
	clk     *clock.Clock
	sched   *scheduler.Scheduler
	weather *weather.Driver

	taskID string
}

// New constructs a climate Engine. weatherDriver may be nil, in which
// case outdoor temperature defaults to 15.0C.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler, weatherDriver *weather.Driver) *Engine {
	e := &Engine{
		Base:    behavior.NewBase("climate"),
		store:   store,
		clk:     clk,
		sched:   sched,
		weather: weatherDriver,
	}
	e.RegisterHandler("set_temperature", e.serviceSetTemperature)
	e.RegisterHandler("set_hvac_mode", e.serviceSetHVACMode)
	e.RegisterHandler("set_preset_mode", e.serviceSetPresetMode)
	e.RegisterHandler("set_fan_mode", e.serviceSetFanMode)
	e.RegisterHandler("set_humidity", e.serviceSetHumidity)
	return e
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the climate domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	supported := 1 | 8 | 16 // target temp, fan mode, preset mode
	attrs := map[string]any{
		"friendly_name":        behavior.FriendlyName(entityID, config),
		"supported_features":   supported,
		"hvac_modes":           toAnySlice(hvacModes),
		"preset_modes":         toAnySlice(presetModes),
		"fan_modes":            toAnySlice(fanModes),
		"current_temperature":  20.0,
		"temperature":          21.0,
		"min_temp":             10.0,
		"max_temp":             35.0,
		"temp_step":            0.5,
		"preset_mode":          "none",
		"fan_mode":             "auto",
	}
	if behavior.ConfigBool(config, "humidity_control", false) {
		attrs["current_humidity"] = 50.0
		attrs["target_humidity"] = 50.0
		attrs["supported_features"] = supported | 4
	}

	_, err := e.store.SetState(entityID, "off", attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.taskID, _ = e.sched.ScheduleInterval("climate.simulate_hvac", hvacInterval, e.simulateHVAC)
}

func (e *Engine) Stop() {
	if e.taskID != "" {
		e.sched.Cancel(e.taskID)
	}
}

func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return e.Dispatch(service, entityID, data)
}

func (e *Engine) simulateHVAC(now time.Time) {
	for _, id := range e.OwnedIDs() {
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}
		attrs := cloneMap(rec.Attributes)

		outdoorTemp := 15.0
		if e.weather != nil {
			outdoorTemp = e.weather.At(now).TempC
		}

		currentTemp := floatAttr(attrs, "current_temperature", 20.0)
		targetTemp := floatAttr(attrs, "temperature", 21.0)
		hvacMode := rec.State

		thermalDrift := (outdoorTemp - currentTemp) * thermalDriftRate

		hvacEffect := 0.0
		newMode := hvacMode

		if hvacMode == "heat" || hvacMode == "heat_cool" || hvacMode == "auto" {
			if currentTemp < targetTemp-0.5 {
				hvacEffect = hvacEffectMagnitude
				newMode = "heat"
			} else if hvacMode == "heat" && currentTemp >= targetTemp {
				hvacEffect = 0.0
				newMode = "off"
			}
		}
		if hvacMode == "cool" || hvacMode == "heat_cool" || hvacMode == "auto" {
			if currentTemp > targetTemp+0.5 {
				hvacEffect = -hvacEffectMagnitude
				newMode = "cool"
			} else if hvacMode == "cool" && currentTemp <= targetTemp {
				hvacEffect = 0.0
				newMode = "off"
			}
		}

		newTemp := currentTemp + thermalDrift + hvacEffect + rand.NormFloat64()*0.05
		attrs["current_temperature"] = roundTo(newTemp, 1)

		if _, ok := attrs["current_humidity"]; ok {
			currentHumidity := floatAttr(attrs, "current_humidity", 50.0)
			var humidityChange float64
			if hvacMode == "heat" || hvacMode == "cool" {
				humidityChange = -0.2
			} else {
				humidityChange = rand.NormFloat64() * 0.1
			}
			newHumidity := behavior.Clamp(roundTo(currentHumidity+humidityChange, 1), 20, 80)
			attrs["current_humidity"] = newHumidity
		}

		e.store.SetState(id, newMode, attrs, nil, false, now)
	}
}

func (e *Engine) serviceSetTemperature(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	newState := rec.State

	if v, ok := data["temperature"]; ok {
		temp := toFloat(v)
		minTemp := floatAttr(attrs, "min_temp", 10)
		maxTemp := floatAttr(attrs, "max_temp", 35)
		attrs["temperature"] = behavior.Clamp(temp, minTemp, maxTemp)
	}
	if v, ok := data["hvac_mode"].(string); ok && contains(hvacModes, v) {
		newState = v
	}

	_, err = e.store.SetState(entityID, newState, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSetHVACMode(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	mode, ok := data["hvac_mode"].(string)
	if !ok || !contains(hvacModes, mode) {
		return false
	}
	_, err = e.store.SetState(entityID, mode, rec.Attributes, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSetPresetMode(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	preset, ok := data["preset_mode"].(string)
	if !ok || !contains(presetModes, preset) {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["preset_mode"] = preset
	if target, ok := presetTargetTemp[preset]; ok {
		attrs["temperature"] = target
	}
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSetFanMode(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	mode, ok := data["fan_mode"].(string)
	if !ok || !contains(fanModes, mode) {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["fan_mode"] = mode
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func (e *Engine) serviceSetHumidity(entityID string, data map[string]any) bool {
	rec, err := e.store.GetState(entityID)
	if err != nil {
		return false
	}
	if _, ok := rec.Attributes["target_humidity"]; !ok {
		return false
	}
	v, ok := data["humidity"]
	if !ok {
		return false
	}
	attrs := cloneMap(rec.Attributes)
	attrs["target_humidity"] = behavior.Clamp(toFloat(v), 20, 80)
	_, err = e.store.SetState(entityID, rec.State, attrs, nil, false, e.clk.Now())
	return err == nil
}

func floatAttr(attrs map[string]any, key string, def float64) float64 {
	v, ok := attrs[key]
	if !ok {
		return def
	}
	return toFloat(v)
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

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int(v*mult+0.5)) / mult
}
