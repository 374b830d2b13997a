package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv() {
	os.Unsetenv("HOMEIQSIM_SPEED")
	os.Unsetenv("HOMEIQSIM_PAUSED")
	os.Unsetenv("HOMEIQSIM_WEATHER_REGION")
	os.Unsetenv("HOMEIQSIM_WEATHER_SEED")
	os.Unsetenv("HOMEIQSIM_HTTP_ADDR")
}

func TestLoadConfigWithDefaults(t *testing.T) {
	clearEnv()
	cfg := LoadConfigWithDefaults()

	if cfg.Simulation.Speed != 1.0 {
		t.Errorf("expected speed 1.0, got %v", cfg.Simulation.Speed)
	}
	if cfg.Simulation.MaxHistory != 1000 {
		t.Errorf("expected max_history 1000, got %d", cfg.Simulation.MaxHistory)
	}
	if cfg.Weather.Region != "north" {
		t.Errorf("expected region 'north', got %q", cfg.Weather.Region)
	}
	if cfg.Weather.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Weather.Seed)
	}
	if len(cfg.Homes) != 1 || cfg.Homes[0].HomeID != "home_001" {
		t.Fatalf("expected a single default home_001, got %+v", cfg.Homes)
	}
	if cfg.Homes[0].Totals.Lights != 10 {
		t.Errorf("expected 10 default lights, got %d", cfg.Homes[0].Totals.Lights)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("expected http addr ':8080', got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigValidYAML(t *testing.T) {
	clearEnv()
	yamlDoc := `
simulation:
  speed: 60
  paused: true
  max_history: 500

weather:
  region: arid_west
  seed: 7

homes:
  - home_id: test_home
    totals:
      lights: 3
      switches: 2
    occupancy:
      wfh_ratio: 0.5

http:
  addr: ":9090"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(yamlDoc), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Simulation.Speed != 60 {
		t.Errorf("expected speed 60, got %v", cfg.Simulation.Speed)
	}
	if !cfg.Simulation.Paused {
		t.Error("expected paused=true")
	}
	if cfg.Weather.Region != "arid_west" {
		t.Errorf("expected region 'arid_west', got %q", cfg.Weather.Region)
	}
	if len(cfg.Homes) != 1 || cfg.Homes[0].HomeID != "test_home" {
		t.Fatalf("expected a single home 'test_home', got %+v", cfg.Homes)
	}
	if cfg.Homes[0].Totals.Lights != 3 {
		t.Errorf("expected 3 lights, got %d", cfg.Homes[0].Totals.Lights)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("expected http addr ':9090', got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	os.Setenv("HOMEIQSIM_SPEED", "120")
	os.Setenv("HOMEIQSIM_WEATHER_REGION", "marine_west")
	os.Setenv("HOMEIQSIM_HTTP_ADDR", ":7070")
	defer clearEnv()

	cfg := LoadConfigWithDefaults()

	if cfg.Simulation.Speed != 120 {
		t.Errorf("expected speed 120, got %v", cfg.Simulation.Speed)
	}
	if cfg.Weather.Region != "marine_west" {
		t.Errorf("expected region 'marine_west', got %q", cfg.Weather.Region)
	}
	if cfg.HTTP.Addr != ":7070" {
		t.Errorf("expected http addr ':7070', got %q", cfg.HTTP.Addr)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(tmpFile, []byte("{{invalid yaml"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadConfig(tmpFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:    "zero speed",
			modify:  func(c *Config) { c.Simulation.Speed = 0 },
			wantErr: "simulation.speed must be > 0",
		},
		{
			name:    "zero max_history",
			modify:  func(c *Config) { c.Simulation.MaxHistory = 0 },
			wantErr: "simulation.max_history must be >= 1",
		},
		{
			name:    "empty region",
			modify:  func(c *Config) { c.Weather.Region = "" },
			wantErr: "weather.region is required",
		},
		{
			name:    "no homes",
			modify:  func(c *Config) { c.Homes = nil },
			wantErr: "at least one home must be configured",
		},
		{
			name: "duplicate home id",
			modify: func(c *Config) {
				c.Homes = append(c.Homes, c.Homes[0])
			},
			wantErr: "duplicate home_id: home_001",
		},
		{
			name: "wfh ratio out of range",
			modify: func(c *Config) {
				c.Homes[0].Occupancy.WFHRatio = 1.5
			},
			wantErr: "homes[home_001].occupancy.wfh_ratio must be in [0,1]",
		},
		{
			name:    "empty http addr",
			modify:  func(c *Config) { c.HTTP.Addr = "" },
			wantErr: "http.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv()
			cfg := LoadConfigWithDefaults()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Errorf("expected error containing %q", tt.wantErr)
				return
			}
			if err.Error() != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
