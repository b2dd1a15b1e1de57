// Package main is the entry point for the talon CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "talon: %v\n", err)
		os.Exit(1)
	}
}
