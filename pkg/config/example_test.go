package config_test

import (
	"fmt"

	"github.com/wonny/leadscore/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Pipeline config: %s\n", cfg.PipelineConfigPath)
	fmt.Printf("Output dir: %s\n", cfg.OutputDir)

	// Postgres is only needed by storage-backed commands
	if err := cfg.RequireDatabase(); err != nil {
		fmt.Println("running in CSV-only mode")
	}
}
