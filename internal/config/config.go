// Package config loads the simulator's YAML configuration file, applies
// environment overrides, and validates the result before the kernel is
// built.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Weather    WeatherConfig    `yaml:"weather"`
	Homes      []HomeConfig     `yaml:"homes"`
	HTTP       HTTPConfig       `yaml:"http"`
}

// SimulationConfig holds clock and state-store settings.
type SimulationConfig struct {
	StartTime  time.Time `yaml:"start_time"`
	Speed      float64   `yaml:"speed"`
	Paused     bool      `yaml:"paused"`
	MaxHistory int       `yaml:"max_history"`
}

// WeatherConfig holds the weather oracle's settings.
type WeatherConfig struct {
	Region string `yaml:"region"`
	Seed   int64  `yaml:"seed"`
}

// HomeTotals holds per-domain entity counts for a simulated home.
type HomeTotals struct {
	Lights             int `yaml:"lights"`
	Switches           int `yaml:"switches"`
	MotionSensors      int `yaml:"motion_sensors"`
	DoorWindowSensors  int `yaml:"door_window_sensors"`
	TemperatureSensors int `yaml:"temperature_sensors"`
	HumiditySensors    int `yaml:"humidity_sensors"`
	Thermostats        int `yaml:"thermostats"`
	Covers             int `yaml:"covers"`
	MediaPlayers       int `yaml:"media_players"`
}

// HomeFeatures holds optional feature toggles for a simulated home.
type HomeFeatures struct {
	EnergyMonitoring bool `yaml:"energy_monitoring"`
}

// HomeOccupancy mirrors occupancy.Config so it can be set per home in YAML.
type HomeOccupancy struct {
	HasKids     bool    `yaml:"has_kids"`
	WFHRatio    float64 `yaml:"wfh_ratio"`
	ShiftWorker bool    `yaml:"shift_worker"`
}

// HomeConfig describes one simulated home.
type HomeConfig struct {
	HomeID    string        `yaml:"home_id"`
	Totals    HomeTotals    `yaml:"totals"`
	Features  HomeFeatures  `yaml:"features"`
	Occupancy HomeOccupancy `yaml:"occupancy"`
}

// HTTPConfig holds the HTTP/WebSocket adapter's settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfig reads configuration from a YAML file and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := LoadConfigWithDefaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithDefaults returns a Config with default values.
func LoadConfigWithDefaults() *Config {
	cfg := &Config{
		Simulation: SimulationConfig{
			StartTime:  time.Now().UTC(),
			Speed:      1.0,
			Paused:     false,
			MaxHistory: 1000,
		},
		Weather: WeatherConfig{
			Region: "north",
			Seed:   42,
		},
		Homes: []HomeConfig{
			{
				HomeID: "home_001",
				Totals: HomeTotals{
					Lights:             10,
					Switches:           5,
					MotionSensors:      5,
					DoorWindowSensors:  3,
					TemperatureSensors: 3,
					HumiditySensors:    2,
					Thermostats:        1,
					Covers:             4,
					MediaPlayers:       2,
				},
			},
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}

	applyEnvOverrides(cfg)
	return cfg
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HOMEIQSIM_SPEED"); v != "" {
		if speed, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Speed = speed
		}
	}
	if v := os.Getenv("HOMEIQSIM_PAUSED"); v != "" {
		if paused, err := strconv.ParseBool(v); err == nil {
			cfg.Simulation.Paused = paused
		}
	}
	if v := os.Getenv("HOMEIQSIM_WEATHER_REGION"); v != "" {
		cfg.Weather.Region = v
	}
	if v := os.Getenv("HOMEIQSIM_WEATHER_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Weather.Seed = seed
		}
	}
	if v := os.Getenv("HOMEIQSIM_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Simulation.Speed <= 0 {
		return fmt.Errorf("simulation.speed must be > 0")
	}
	if c.Simulation.MaxHistory < 1 {
		return fmt.Errorf("simulation.max_history must be >= 1")
	}
	if c.Weather.Region == "" {
		return fmt.Errorf("weather.region is required")
	}
	if len(c.Homes) == 0 {
		return fmt.Errorf("at least one home must be configured")
	}
	seen := make(map[string]bool, len(c.Homes))
	for _, h := range c.Homes {
		if h.HomeID == "" {
			return fmt.Errorf("homes[].home_id is required")
		}
		if seen[h.HomeID] {
			return fmt.Errorf("duplicate home_id: %s", h.HomeID)
		}
		seen[h.HomeID] = true
		if h.Occupancy.WFHRatio < 0 || h.Occupancy.WFHRatio > 1 {
			return fmt.Errorf("homes[%s].occupancy.wfh_ratio must be in [0,1]", h.HomeID)
		}
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
