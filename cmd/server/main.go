package main

import (
	"os"

	"github.com/garyjia/backoffice-wizard/internal/cli"
)

// Version information set via ldflags at build time.
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
