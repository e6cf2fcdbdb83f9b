// Command assetcached runs the content-addressed binary asset cache server.
package main

import (
	"fmt"
	"os"

	"github.com/cachegrid/assetcache/cmd/assetcached/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
