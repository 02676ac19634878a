// Package main is the entry point for the event-builder core.
package main

import (
	"errors"
	"fmt"
	"os"

	"daqevb.dev/evbcore/cmd"
	"daqevb.dev/evbcore/internal/ringsource"
)

func main() {
	err := cmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var cfgErr *ringsource.ConfigError
	var transportErr *ringsource.TransportError
	switch {
	case errors.As(err, &cfgErr):
		os.Exit(2)
	case errors.As(err, &transportErr):
		os.Exit(3)
	default:
		os.Exit(1)
	}
}
