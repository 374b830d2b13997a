package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "homeiqsim",
	Short: "Smart-home simulation kernel",
	Long: `homeiqsim runs a virtual-time smart-home simulation: entities across
light, switch, binary_sensor, sensor, climate, cover, and media_player
domains, driven by a scheduler, an occupancy model, and a weather oracle,
exposed over HTTP and WebSocket.

Commands:
  serve       Build a simulator from config and serve it over HTTP
  simulate    Run a headless simulation for a fixed duration and summarize it

  config init      Generate an example configuration file
  config validate  Validate a configuration file
  config show      Show the effective configuration

Examples:
  # Serve with defaults on :8080
  homeiqsim serve

  # Serve from a config file at 10x speed
  homeiqsim serve --config homes.yaml --speed 10

  # Headless run for an hour of simulated time
  homeiqsim simulate --duration 1m --speed 60`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
