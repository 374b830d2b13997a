package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/myorg/homeiqsim/internal/simulator"
)

var simulateCfg struct {
	ConfigFile string
	Duration   time.Duration
	Speed      float64
	Quiet      bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a headless simulation for a fixed duration and summarize it",
	Long: `Build a simulator from configuration and run it headlessly, with no HTTP
adapter, for a fixed wall-clock duration, then print a summary: entity
count, simulated time reached, and pending scheduler tasks.

This reuses the same live kernel as 'serve' rather than a separate
archive-style generator; it is a headless run mode, not a bulk exporter.

Examples:
  homeiqsim simulate --duration 1m
  homeiqsim simulate --duration 10s --speed 120
`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateCfg.ConfigFile, "config", "", "configuration file (defaults if omitted)")
	simulateCmd.Flags().DurationVar(&simulateCfg.Duration, "duration", 30*time.Second, "wall-clock duration to run")
	simulateCmd.Flags().Float64Var(&simulateCfg.Speed, "speed", 60, "simulation speed multiplier")
	simulateCmd.Flags().BoolVar(&simulateCfg.Quiet, "quiet", false, "suppress progress output")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := loadCLIConfig(simulateCfg.ConfigFile)
	if err != nil {
		return err
	}
	if simulateCfg.Speed > 0 {
		cfg.Simulation.Speed = simulateCfg.Speed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sim, err := simulator.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("building simulator: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), simulateCfg.Duration)
	defer cancel()

	startStats := sim.GetStats()
	simulateLog("starting simulation: speed=%gx duration=%s entities=%d", cfg.Simulation.Speed, simulateCfg.Duration, startStats.Entities)

	sim.Start(ctx)
	<-ctx.Done()
	sim.Stop()

	stats := sim.GetStats()
	fmt.Println()
	fmt.Println("Simulation summary")
	fmt.Println("===================")
	fmt.Printf("  Entities:       %d\n", stats.Entities)
	fmt.Printf("  Final sim time: %s\n", stats.CurrentTime)
	fmt.Printf("  Speed:          %gx\n", stats.Speed)
	fmt.Printf("  Pending tasks:  %d\n", stats.PendingTasks)

	return nil
}

func simulateLog(format string, args ...interface{}) {
	if simulateCfg.Quiet {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
