package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/myorg/homeiqsim/internal/api"
	"github.com/myorg/homeiqsim/internal/config"
	"github.com/myorg/homeiqsim/internal/simulator"
	"github.com/myorg/homeiqsim/internal/telemetry"
)

var serveCfg struct {
	ConfigFile string
	Addr       string
	Speed      float64
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Build the simulator from config and serve it over HTTP",
	Long: `Build a simulator from configuration, start its scheduler and every
domain engine, and serve the REST and WebSocket adapter until interrupted.

Examples:
  homeiqsim serve
  homeiqsim serve --config homes.yaml --addr :9090
  homeiqsim serve --speed 10
`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveCfg.ConfigFile, "config", "", "configuration file (defaults if omitted)")
	serveCmd.Flags().StringVar(&serveCfg.Addr, "addr", "", "HTTP listen address, overrides config")
	serveCmd.Flags().Float64Var(&serveCfg.Speed, "speed", 0, "simulation speed multiplier, overrides config (0 = use config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadCLIConfig(serveCfg.ConfigFile)
	if err != nil {
		return err
	}
	if serveCfg.Addr != "" {
		cfg.HTTP.Addr = serveCfg.Addr
	}
	if serveCfg.Speed > 0 {
		cfg.Simulation.Speed = serveCfg.Speed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sim, err := simulator.Build(cfg, logger)
	if err != nil {
		return fmt.Errorf("building simulator: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sim.Start(ctx)
	defer sim.Stop()

	server := api.NewServer(sim.Store, sim.Clock, sim.Registry, telemetry.NewPrometheusCollector(sim.Telemetry))
	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadCLIConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadConfigWithDefaults(), nil
	}
	return config.LoadConfig(path)
}
