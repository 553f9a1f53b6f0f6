package strata

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/advice"
	"github.com/soundprediction/strata/pkg/config"
	"github.com/soundprediction/strata/pkg/history"
	"github.com/soundprediction/strata/pkg/logger"
	"github.com/soundprediction/strata/pkg/telemetry"
	"github.com/soundprediction/strata/pkg/validate"
)

// initializeEngine wires the engine from configuration: colorized logging with
// optional Parquet error tracking, the gap advisor behind a circuit breaker,
// and the on-disk update log.
func initializeEngine(cfg *config.Config) (*strata.Client, *telemetry.CycleRecorder, error) {
	log := buildLogger(cfg)

	var advisor advice.Advisor
	if cfg.Advice.Enabled && cfg.Advice.APIKey != "" {
		advisor = advice.NewOpenAIAdvisor(advice.OpenAIConfig{
			APIKey:  cfg.Advice.APIKey,
			BaseURL: cfg.Advice.BaseURL,
			Model:   cfg.Advice.Model,
			Timeout: time.Duration(cfg.Advice.Timeout) * time.Second,
			Logger:  log,
		})
		if cfg.CircuitBreaker.Enabled {
			advisor = advice.NewBreakerAdvisor(advisor, advice.BreakerConfig{
				MaxRequests:      cfg.CircuitBreaker.MaxRequests,
				Interval:         time.Duration(cfg.CircuitBreaker.Interval) * time.Second,
				Timeout:          time.Duration(cfg.CircuitBreaker.Timeout) * time.Second,
				ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
			}, log)
		}
	}

	var updateLog *history.Log
	if cfg.History.Path != "" || cfg.History.InMemory {
		var err error
		updateLog, err = history.Open(history.Config{
			Path:       cfg.History.Path,
			InMemory:   cfg.History.InMemory,
			SyncWrites: cfg.History.SyncWrites,
			Logger:     log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open update log: %w", err)
		}
	}

	thresholds := validate.DefaultThresholds()
	if cfg.Validation.TargetEta > 0 {
		thresholds.TargetEta = cfg.Validation.TargetEta
	}
	if cfg.Validation.MaxIsolation > 0 {
		thresholds.MaxIsolation = cfg.Validation.MaxIsolation
	}
	if cfg.Validation.MinClustering > 0 {
		thresholds.MinClustering = cfg.Validation.MinClustering
	}
	if cfg.Validation.GrowthExponent > 0 {
		thresholds.GrowthExponent = cfg.Validation.GrowthExponent
	}

	engineConfig := strata.DefaultConfig()
	engineConfig.MaxRefinements = cfg.Refinement.MaxRefinements
	engineConfig.MaxCycles = cfg.Refinement.MaxCycles
	engineConfig.BridgeEdgesPerCycle = cfg.Refinement.BridgeEdgesPerCycle
	engineConfig.Thresholds = thresholds
	if cfg.Advice.Timeout > 0 {
		engineConfig.AdviceTimeout = time.Duration(cfg.Advice.Timeout) * time.Second
	}
	if cfg.History.WindowSeconds > 0 {
		engineConfig.CorrelationWindow = time.Duration(cfg.History.WindowSeconds) * time.Second
	}

	client, err := strata.NewClient(advisor, updateLog, engineConfig, log)
	if err != nil {
		if updateLog != nil {
			updateLog.Close()
		}
		return nil, nil, fmt.Errorf("failed to create engine: %w", err)
	}

	var recorder *telemetry.CycleRecorder
	if cfg.Telemetry.ParquetPath != "" {
		recorder, err = telemetry.NewCycleRecorder(cfg.Telemetry.ParquetPath)
		if err != nil {
			log.Warn("cycle telemetry disabled", "error", err)
			recorder = nil
		}
	}

	return client, recorder, nil
}

// buildLogger assembles the logging stack: a color handler at the configured
// level, wrapped with Parquet error tracking when a telemetry path is set.
func buildLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler = logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	if cfg.Telemetry.ParquetPath != "" {
		parquetHandler, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize error tracking: %v\n", err)
		} else {
			handler = parquetHandler
		}
	}

	return slog.New(handler)
}
