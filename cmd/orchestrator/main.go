package main

import (
	"os"

	"mathengine/internal/cli"
)

func main() {
	if err := cli.ExecuteOrchestrator(); err != nil {
		os.Exit(1)
	}
}
