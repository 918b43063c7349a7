package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"redub/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for bad input or configuration and 1 otherwise.
func exitCode(err error) int {
	if services.IsUserError(err) {
		return 2
	}
	return 1
}
