package main

import (
	"os"

	"mathengine/internal/cli"
)

func main() {
	if err := cli.ExecuteMathctl(); err != nil {
		os.Exit(1)
	}
}
