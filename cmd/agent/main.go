package main

import (
	"os"

	"mathengine/internal/cli"
)

func main() {
	if err := cli.ExecuteAgent(); err != nil {
		os.Exit(1)
	}
}
