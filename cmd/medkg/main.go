// Command medkg builds the medical knowledge graph and answers questions
// over it from the terminal or as an MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Fatal: %s", err.Error()))
		os.Exit(1)
	}
}
