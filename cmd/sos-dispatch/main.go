package main

import (
	"os"

	"github.com/noah-isme/sos-dispatch-api/internal/cli"
)

// @title SOS Dispatch API
// @version 1.0.0
// @description Routes help requests from people in need to verified, available volunteers.
// @BasePath /api/v1
// @schemes http

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
