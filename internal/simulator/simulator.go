// Package simulator wires the kernel (clock, state store, scheduler,
// service registry), every domain behavior engine, the weather oracle,
// and one occupancy simulator per configured home into a single runnable
// unit. Grounded on the original implementation's HomeAssistantSimulator.
package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/myorg/homeiqsim/internal/behavior"
	"github.com/myorg/homeiqsim/internal/behavior/binarysensor"
	"github.com/myorg/homeiqsim/internal/behavior/climate"
	"github.com/myorg/homeiqsim/internal/behavior/cover"
	"github.com/myorg/homeiqsim/internal/behavior/light"
	"github.com/myorg/homeiqsim/internal/behavior/mediaplayer"
	"github.com/myorg/homeiqsim/internal/behavior/sensor"
	"github.com/myorg/homeiqsim/internal/behavior/switchdomain"
	"github.com/myorg/homeiqsim/internal/clock"
	"github.com/myorg/homeiqsim/internal/config"
	"github.com/myorg/homeiqsim/internal/occupancy"
	"github.com/myorg/homeiqsim/internal/registry"
	"github.com/myorg/homeiqsim/internal/scheduler"
	"github.com/myorg/homeiqsim/internal/state"
	"github.com/myorg/homeiqsim/internal/telemetry"
	"github.com/myorg/homeiqsim/internal/weather"
)

// Simulator coordinates every kernel component and domain engine for one
// simulation run.
type Simulator struct {
	Clock     *clock.Clock
	Store     *state.Store
	Sched     *scheduler.Scheduler
	Registry  *registry.Registry
	Weather   *weather.Driver
	Telemetry *telemetry.Collector

	logger *slog.Logger

	engines   []behavior.Engine
	occupants []*occupancy.Simulator
	cancel    context.CancelFunc
	mu        sync.Mutex
	running   bool
}

// New builds a Simulator from its kernel components. Callers typically
// obtain these from Build.
func New(clk *clock.Clock, store *state.Store, sched *scheduler.Scheduler, reg *registry.Registry, weatherDriver *weather.Driver, logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	tel := telemetry.NewCollector()
	sched.SetJitterRecorder(tel.RecordSchedulerJitter)
	reg.SetLatencyRecorder(tel.RecordServiceLatency)

	return &Simulator{
		Clock:     clk,
		Store:     store,
		Sched:     sched,
		Registry:  reg,
		Weather:   weatherDriver,
		Telemetry: tel,
		logger:    logger,
	}
}

// Build constructs a fully wired Simulator from a Config: clock, store,
// scheduler, every domain engine, and one occupancy simulator per
// configured home, with that home's entities created.
func Build(cfg *config.Config, logger *slog.Logger) (*Simulator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	clk := clock.New(cfg.Simulation.StartTime, cfg.Simulation.Speed, cfg.Simulation.Paused)
	store := state.New(cfg.Simulation.MaxHistory, logger)
	sched := scheduler.New(clk, logger)
	reg := registry.New(logger)
	weatherDriver := weather.New(cfg.Weather.Region, cfg.Weather.Seed)

	sim := New(clk, store, sched, reg, weatherDriver, logger)

	lightEngine := light.New(store, clk, sched)
	switchEngine := switchdomain.New(store, clk, sched)
	binarySensorEngine := binarysensor.New(store, clk, sched)
	sensorEngine := sensor.New(store, clk, sched, weatherDriver)
	climateEngine := climate.New(store, clk, sched, weatherDriver)
	coverEngine := cover.New(store, clk, sched)
	mediaPlayerEngine := mediaplayer.New(store, clk, sched)

	sim.engines = []behavior.Engine{
		lightEngine, switchEngine, binarySensorEngine,
		sensorEngine, climateEngine, coverEngine, mediaPlayerEngine,
	}
	for _, e := range sim.engines {
		reg.RegisterEngine(e)
	}

	for _, home := range cfg.Homes {
		if err := sim.createHome(home); err != nil {
			return nil, fmt.Errorf("creating home %s: %w", home.HomeID, err)
		}
		occCfg := occupancy.Config{
			HasKids:     home.Occupancy.HasKids,
			WFHRatio:    home.Occupancy.WFHRatio,
			ShiftWorker: home.Occupancy.ShiftWorker,
		}
		occ := occupancy.New(home.HomeID, store, clk, sched, occCfg)
		sim.occupants = append(sim.occupants, occ)
	}

	return sim, nil
}

// CreateEntity creates a single entity of the given domain, dispatching
// to the matching behavior engine.
func (s *Simulator) CreateEntity(entityID string, cfg map[string]any) error {
	domain := domainOf(entityID)
	for _, e := range s.engines {
		if e.Domain() == domain {
			return e.RegisterEntity(entityID, cfg)
		}
	}
	return fmt.Errorf("no engine registered for domain: %s", domain)
}

func domainOf(entityID string) string {
	for i, r := range entityID {
		if r == '.' {
			return entityID[:i]
		}
	}
	return ""
}

// createHome creates every entity described by a HomeConfig, following
// the original implementation's create_home defaults and naming scheme.
func (s *Simulator) createHome(home config.HomeConfig) error {
	homeID := home.HomeID
	totals := home.Totals

	for i := 0; i < totals.Lights; i++ {
		id := fmt.Sprintf("light.%s_light_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":        fmt.Sprintf("Light %d", i),
			"brightness":  true,
			"color_temp":  i%3 == 0,
			"rgb_color":   i%5 == 0,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.Switches; i++ {
		id := fmt.Sprintf("switch.%s_switch_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":             fmt.Sprintf("Switch %d", i),
			"power_monitoring": i%2 == 0,
			"rated_power":      10.0,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.MotionSensors; i++ {
		id := fmt.Sprintf("binary_sensor.%s_motion_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":                 fmt.Sprintf("Motion Sensor %d", i),
			"device_class":         "motion",
			"battery_powered":      true,
			"occupancy_controlled": true,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.DoorWindowSensors; i++ {
		id := fmt.Sprintf("binary_sensor.%s_door_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":            fmt.Sprintf("Door Sensor %d", i),
			"device_class":    "door",
			"battery_powered": true,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.TemperatureSensors; i++ {
		id := fmt.Sprintf("sensor.%s_temperature_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":         fmt.Sprintf("Temperature Sensor %d", i),
			"device_class": "temperature",
			"outdoor":      i == 0,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.HumiditySensors; i++ {
		id := fmt.Sprintf("sensor.%s_humidity_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":         fmt.Sprintf("Humidity Sensor %d", i),
			"device_class": "humidity",
			"outdoor":      i == 0,
		}); err != nil {
			return err
		}
	}

	if home.Features.EnergyMonitoring {
		powerID := fmt.Sprintf("sensor.%s_power", homeID)
		if err := s.CreateEntity(powerID, map[string]any{
			"name":         "Total Power",
			"device_class": "power",
		}); err != nil {
			return err
		}
		energyID := fmt.Sprintf("sensor.%s_energy", homeID)
		if err := s.CreateEntity(energyID, map[string]any{
			"name":          "Total Energy",
			"device_class":  "energy",
			"power_sensor":  powerID,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.Thermostats; i++ {
		id := fmt.Sprintf("climate.%s_thermostat_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name":             fmt.Sprintf("Thermostat %d", i),
			"humidity_control": i == 0,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.Covers; i++ {
		id := fmt.Sprintf("cover.%s_cover_%d", homeID, i)
		deviceClass := "blind"
		if i%4 == 3 {
			deviceClass = "garage"
		}
		if err := s.CreateEntity(id, map[string]any{
			"name":         fmt.Sprintf("Cover %d", i),
			"device_class": deviceClass,
		}); err != nil {
			return err
		}
	}

	for i := 0; i < totals.MediaPlayers; i++ {
		id := fmt.Sprintf("media_player.%s_player_%d", homeID, i)
		if err := s.CreateEntity(id, map[string]any{
			"name": fmt.Sprintf("Media Player %d", i),
		}); err != nil {
			return err
		}
	}

	s.logger.Info("created home", "home_id", homeID, "entities", len(s.Store.GetAllStates()))
	return nil
}

// Start starts every behavior engine, every home's occupancy simulator,
// and the scheduler.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, e := range s.engines {
		e.Start(ctx)
	}
	for _, occ := range s.occupants {
		occ.Start()
	}
	s.Sched.Start(ctx)

	s.running = true
	s.logger.Info("simulator started")
}

// Stop stops the scheduler, every occupancy simulator, and every
// behavior engine, in the reverse order they were started.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.Sched.Stop()
	for _, occ := range s.occupants {
		occ.Stop()
	}
	for _, e := range s.engines {
		e.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}

	s.running = false
	s.logger.Info("simulator stopped")
}

// IsRunning reports whether the simulator has been started and not yet
// stopped.
func (s *Simulator) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats is a point-in-time snapshot of the simulator's status.
type Stats struct {
	Running     bool
	Entities    int
	CurrentTime string
	Speed       float64
	Paused      bool
	PendingTasks int
}

// GetStats returns current simulator statistics, the Go analogue of the
// original implementation's get_stats.
func (s *Simulator) GetStats() Stats {
	return Stats{
		Running:      s.IsRunning(),
		Entities:     len(s.Store.GetAllStates()),
		CurrentTime:  s.Clock.Now().Format("2006-01-02T15:04:05Z07:00"),
		Speed:        s.Clock.Speed(),
		Paused:       s.Clock.IsPaused(),
		PendingTasks: s.Sched.Len(),
	}
}
