// Command server runs the restaurant operations backend.
package main

import (
	"fmt"
	"os"

	"kdsops/internal/app"
	"kdsops/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		application.Logger.Error("exited with error", "error", err.Error())
		os.Exit(1)
	}
}
