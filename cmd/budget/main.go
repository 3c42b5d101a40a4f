package main

import (
	"context"
	"os"

	"budget/internal/cli"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	if err := cli.Execute(context.Background(), cli.Deps{}); err != nil {
		os.Exit(1)
	}
}
