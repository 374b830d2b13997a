package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the homeiqsim release version.
const Version = "0.1.0-dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("homeiqsim version %s\n", Version)
	},
}
