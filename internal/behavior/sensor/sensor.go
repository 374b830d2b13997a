// Package sensor implements the sensor domain's behavior engine:
// device-class-driven initial values/units, and three ambient loops
// (environmental, power/energy, misc) that drift each sensor's numeric
// state. Grounded on the original implementation's SensorBehavior.
package sensor

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/kernelerr"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
	"github.com/myorg/homeiqsim/internal/weather"
)

const (
	environmentalInterval = time.Minute
	powerInterval         = 10 * time.Second
	miscInterval          = 30 * time.Second
)

var unitOfMeasurement = map[string]string{
	"temperature": "°C",
	"humidity":    "%",
	"pressure":    "hPa",
	"battery":     "%",
	"power":       "W",
	"energy":      "kWh",
	"voltage":     "V",
	"current":     "A",
	"illuminance": "lx",
	"pm25":        "µg/m³",
	"co2":         "ppm",
}

var initialValue = map[string]float64{
	"temperature": 20.0,
	"humidity":    50.0,
	"pressure":    1013.0,
	"battery":     100.0,
	"power":       0.0,
	"energy":      0.0,
	"voltage":     120.0,
	"current":     0.0,
	"illuminance": 0,
	"pm25":        5,
	"co2":         400,
}

type sensorConfig struct {
	deviceClass   string
	outdoor       bool
	linkedEntity  string // power sensor: the switch/light it tracks
	powerSensor   string // energy/current sensor: the power sensor it derives from
	ratedPower    float64
	batteryPowered bool
}

// Engine is the sensor domain's behavior engine.
type Engine struct {
	behavior.Base

	store   *state.Store
	clk     *clock.Clock
	sched   *scheduler.Scheduler
	weather *weather.Driver

	mu      sync.Mutex
	configs map[string]sensorConfig

	envTaskID, powerTaskID, miscTaskID string
}

// New constructs a sensor Engine. weatherDriver may be nil, in which case
// outdoor sensors fall back to the same indoor model as everything else.
func New(store *state.Store, clk *clock.Clock, sched *scheduler.Scheduler, weatherDriver *weather.Driver) *Engine {
	return &Engine{
		Base:    behavior.NewBase("sensor"),
		store:   store,
		clk:     clk,
		sched:   sched,
		weather: weatherDriver,
		configs: make(map[string]sensorConfig),
	}
}

func (e *Engine) RegisterEntity(entityID string, config map[string]any) error {
	if !e.Own(entityID) {
		return kernelerr.NewInvalidArgument("entity_id", "must be in the sensor domain")
	}
	if _, err := e.store.GetState(entityID); err == nil {
		return nil
	}

	deviceClass := behavior.ConfigString(config, "device_class", "")
	cfg := sensorConfig{
		deviceClass:    deviceClass,
		outdoor:        behavior.ConfigBool(config, "outdoor", false),
		linkedEntity:   behavior.ConfigString(config, "linked_entity", ""),
		powerSensor:    behavior.ConfigString(config, "power_sensor", ""),
		ratedPower:     behavior.ConfigFloat(config, "rated_power", 10.0),
		batteryPowered: behavior.ConfigBool(config, "battery_powered", deviceClass == "battery"),
	}

	attrs := map[string]any{
		"friendly_name": behavior.FriendlyName(entityID, config),
	}
	if deviceClass != "" {
		attrs["device_class"] = deviceClass
	}
	if unit, ok := unitOfMeasurement[deviceClass]; ok {
		attrs["unit_of_measurement"] = unit
	}
	switch deviceClass {
	case "energy":
		attrs["state_class"] = "total_increasing"
	case "power", "voltage", "current", "temperature", "humidity", "pressure":
		attrs["state_class"] = "measurement"
	}
	if cfg.batteryPowered {
		attrs["battery_level"] = float64(80 + rand.Intn(21))
	}

	e.mu.Lock()
	e.configs[entityID] = cfg
	e.mu.Unlock()

	initial := initialValue[deviceClass] // 0 for an unknown device class
	_, err := e.store.SetState(entityID, formatValue(initial), attrs, nil, true, e.clk.Now())
	return err
}

func (e *Engine) Start(ctx context.Context) {
	if !e.MarkStarted() {
		return
	}
	e.envTaskID, _ = e.sched.ScheduleInterval("sensor.update_environmental", environmentalInterval, e.updateEnvironmental)
	e.powerTaskID, _ = e.sched.ScheduleInterval("sensor.update_power", powerInterval, e.updatePower)
	e.miscTaskID, _ = e.sched.ScheduleInterval("sensor.update_misc", miscInterval, e.updateMisc)
}

func (e *Engine) Stop() {
	for _, id := range []string{e.envTaskID, e.powerTaskID, e.miscTaskID} {
		if id != "" {
			e.sched.Cancel(id)
		}
	}
}

// HandleServiceCall always returns false: sensors are entirely
// ambient-driven, with no service surface.
func (e *Engine) HandleServiceCall(service, entityID string, data map[string]any) bool {
	return false
}

func (e *Engine) configFor(id string) sensorConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configs[id]
}

func (e *Engine) updateEnvironmental(now time.Time) {
	for _, id := range e.OwnedIDs() {
		cfg := e.configFor(id)
		if cfg.deviceClass != "temperature" && cfg.deviceClass != "humidity" && cfg.deviceClass != "pressure" {
			continue
		}
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}
		current := parseValue(rec.State, 20.0)

		var sample weather.Sample
		if e.weather != nil {
			sample = e.weather.At(now)
		}

		var newValue float64
		switch cfg.deviceClass {
		case "temperature":
			target := 21.0 + rand.NormFloat64()*0.5
			if cfg.outdoor && e.weather != nil {
				target = sample.TempC
			}
			newValue = current + (target-current)*0.1 + rand.NormFloat64()*0.1
			newValue = roundTo(newValue, 1)
		case "humidity":
			target := 45.0 + rand.NormFloat64()*5
			if cfg.outdoor && e.weather != nil {
				target = sample.RelHumidity
			}
			newValue = current + (target-current)*0.1 + rand.NormFloat64()*1
			newValue = behavior.Clamp(roundTo(newValue, 1), 0, 100)
		case "pressure":
			newValue = current + rand.NormFloat64()*0.5
			newValue = behavior.Clamp(roundTo(newValue, 1), 950, 1050)
		}

		e.store.SetState(id, formatValue(newValue), rec.Attributes, nil, false, now)
	}
}

func (e *Engine) updatePower(now time.Time) {
	for _, id := range e.OwnedIDs() {
		cfg := e.configFor(id)
		if cfg.deviceClass != "power" && cfg.deviceClass != "energy" && cfg.deviceClass != "voltage" && cfg.deviceClass != "current" {
			continue
		}
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}
		current := parseValue(rec.State, 0.0)

		var newValue float64
		switch cfg.deviceClass {
		case "power":
			if cfg.linkedEntity != "" {
				linked, err := e.store.GetState(cfg.linkedEntity)
				if err == nil && linked.State == "on" {
					newValue = cfg.ratedPower * (0.9 + rand.Float64()*0.2)
				} else {
					newValue = rand.Float64() * 0.5
				}
			} else {
				newValue = current + rand.NormFloat64()*5
				if newValue < 0 {
					newValue = 0
				}
			}
			newValue = roundTo(newValue, 1)
		case "energy":
			if cfg.powerSensor != "" {
				powerRec, err := e.store.GetState(cfg.powerSensor)
				if err == nil {
					power := parseValue(powerRec.State, 0)
					newValue = current + power/360000.0
				} else {
					newValue = current
				}
			} else {
				newValue = current
			}
			newValue = roundTo(newValue, 3)
		case "voltage":
			newValue = roundTo(120.0+rand.NormFloat64()*0.5, 1)
		case "current":
			if cfg.powerSensor != "" {
				powerRec, err := e.store.GetState(cfg.powerSensor)
				if err == nil {
					power := parseValue(powerRec.State, 0)
					newValue = power / 120.0
				}
			} else {
				newValue = rand.Float64()
			}
			newValue = roundTo(newValue, 2)
		}

		e.store.SetState(id, formatValue(newValue), rec.Attributes, nil, false, now)
	}
}

func (e *Engine) updateMisc(now time.Time) {
	hour := now.Hour()
	for _, id := range e.OwnedIDs() {
		cfg := e.configFor(id)
		if cfg.deviceClass != "illuminance" && cfg.deviceClass != "pm25" && cfg.deviceClass != "co2" {
			continue
		}
		rec, err := e.store.GetState(id)
		if err != nil {
			continue
		}
		current := parseValue(rec.State, 0)

		var newValue float64
		switch cfg.deviceClass {
		case "illuminance":
			var target float64
			switch {
			case hour >= 6 && hour < 8:
				target = 500
			case hour >= 8 && hour < 18:
				target = 1000
			case hour >= 18 && hour < 21:
				target = 300
			default:
				target = 10
			}
			newValue = current + (target-current)*0.2 + rand.NormFloat64()*50
			if newValue < 0 {
				newValue = 0
			}
			newValue = float64(int(newValue + 0.5))
		case "pm25":
			newValue = 5 + rand.NormFloat64()*2
			if newValue < 0 {
				newValue = 0
			}
			newValue = roundTo(newValue, 1)
		case "co2":
			newValue = current + rand.NormFloat64()*20
			newValue = behavior.Clamp(float64(int(newValue+0.5)), 400, 2000)
		}

		e.store.SetState(id, formatValue(newValue), rec.Attributes, nil, false, now)
	}
}

func parseValue(s string, def float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for i := 0; i < places; i++ {
		mult *= 10
	}
	return float64(int(v*mult+0.5)) / mult
}
