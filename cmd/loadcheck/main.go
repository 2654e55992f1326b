package main

import (
	"context"
	"errors"
	"os"

	"github.com/wesleyorama2/loadcheck/internal/cli"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

func main() {
	os.Exit(exitCode(cli.Execute()))
}
