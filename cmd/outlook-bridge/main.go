// Package main is the entry point for the Outlook bridge. It serves the
// action catalog over HTTP and can also run a single action from the
// command line.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
