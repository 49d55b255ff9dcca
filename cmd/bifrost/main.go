// Package main provides the entry point for the bifrost CLI.
package main

import (
	"fmt"
	"os"

	"github.com/GaxGuy/agpl-BifrostMCP/cmd/bifrost/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
