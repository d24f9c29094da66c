// Package main is the entry point for the extcare CLI.
package main

import (
	"os"

	"github.com/warp/extcare-billing/cmd/extcare/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
