// Package main is the entry point for the task runner.
package main

import (
	"os"

	"github.com/autocodit-io/runner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
