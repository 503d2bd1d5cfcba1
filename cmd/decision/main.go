package main

import (
	"os"

	"github.com/voldesk/options-core/cmd/decision/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
