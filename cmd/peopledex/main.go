// Package main provides the entry point for the peopledex CLI.
package main

import (
	"fmt"
	"os"

	"github.com/peopledex/peopledex/cmd/peopledex/cmd"
	"github.com/peopledex/peopledex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(os.Stderr, errors.FormatForCLI(err))
		os.Exit(1)
	}
}
