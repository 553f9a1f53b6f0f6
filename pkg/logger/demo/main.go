package main

import (
	"log/slog"

	"github.com/soundprediction/strata/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    Strata Colored Logger Demo")
	log.Info("============================================")

	log.Debug("Debug message - cyan")
	log.Info("Info message - green")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("Attributes render inline:")
	log.Info("batch ingested", "nodes", 42, "edges", 100)
	log.Info("refinement reached stability", "cycles", 3, "refinements", 5)
	log.Warn("refinement budget exhausted", "refinements", 10)

	log.Info("Demo complete!")
}
