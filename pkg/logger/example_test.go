package logger_test

import (
	"errors"

	"github.com/wonny/leadscore/pkg/config"
	"github.com/wonny/leadscore/pkg/logger"
)

// Example_pipeline demonstrates run- and entity-scoped logging
func Example_pipeline() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	runLog := log.WithRun("7d0c3e0e", "9f2a")
	runLog.Info("pipeline started")

	runLog.WithComponent("s1_usage").
		WithEntity("portal-42").
		WithField("dropped_rows", 3).
		Warn("usage after conversion dropped")

	runLog.WithError(errors.New("duplicate entity portal-9")).Error("registry build failed")
}
