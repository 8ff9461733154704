// Package main provides the cargo-edit command line tool for editing Cargo
// manifests.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
