// Package main is the entry point for the switchboard CLI.
package main

import (
	"fmt"
	"os"

	"github.com/renholm/switchboard/cmd"
)

// Stamped by -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date))
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
