package main

import (
	"os"

	"github.com/adverant/nexus/passport-worker/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
