package main

import (
	"os"

	"github.com/audiobatch/audiobatch-go/cmd"
)

// Populated at link time through -ldflags.
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := cmd.Execute(version, buildDate); err != nil {
		os.Exit(1)
	}
}
