// Package main provides the stabilitymcp CLI: it turns the per-function
// stability records emitted during compilation into a deterministic
// composable stability report, checks it against a baseline, and serves it
// over MCP.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	// Ensure log output goes to stderr, never stdout (MCP uses stdout for JSON-RPC)
	log.SetOutput(os.Stderr)

	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
