package strata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/alert"
	"github.com/soundprediction/strata/pkg/config"
	"github.com/soundprediction/strata/pkg/persist"
	"github.com/soundprediction/strata/pkg/telemetry"
)

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Run one bounded refinement pass over the persisted graph",
	Long: `Load the persisted graph snapshot, run validate/remediate cycles until the
graph is stable or a budget runs out, and persist the result.

Requires snapshot persistence to be configured; an in-memory graph would have
nothing to refine.`,
	RunE: runRefine,
}

func init() {
	rootCmd.AddCommand(refineCmd)

	refineCmd.Flags().Duration("timeout", 5*time.Minute, "Overall deadline for the run")
	refineCmd.Flags().Bool("dry-run", false, "Refine but do not persist the result")
}

func runRefine(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Persist.Enabled {
		return fmt.Errorf("refine requires persist.enabled, there is no graph to load otherwise")
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	client, recorder, err := initializeEngine(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	snapshots, err := persist.NewNeo4jStore(cfg.Persist.URI, cfg.Persist.Username, cfg.Persist.Password, cfg.Persist.Database, nil)
	if err != nil {
		return fmt.Errorf("failed to connect snapshot store: %w", err)
	}
	defer snapshots.Close(ctx)

	restored, err := snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	client.Restore(restored)

	outcome, err := client.Refine(ctx)
	if err != nil {
		return fmt.Errorf("refinement failed: %w", err)
	}

	fmt.Printf("state=%s cycles=%d refinements=%d remaining_violations=%d\n",
		outcome.State, outcome.Cycles, outcome.Refinements, len(outcome.Final.Violations))
	for _, action := range outcome.Actions {
		fmt.Printf("  cycle %d: %s on %s (mutated=%v)\n", action.Cycle, action.Action, action.Metric, action.Mutated)
	}

	if outcome.State == strata.StateExhausted && cfg.Alert.Enabled {
		alerter := alert.NewEmailAlerter(cfg.Alert)
		body := fmt.Sprintf("Refinement exhausted after %d cycles with %d violations remaining.",
			outcome.Cycles, len(outcome.Final.Violations))
		if err := alerter.Alert("strata: refinement exhausted", body); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: alert failed: %v\n", err)
		}
	}

	if recorder != nil {
		runID := telemetry.NewRunID()
		for _, action := range outcome.Actions {
			recorder.Record(telemetry.CycleRecord{
				RunID:       runID,
				Cycle:       action.Cycle,
				Action:      action.Action.String(),
				Metric:      action.Metric,
				Mutated:     action.Mutated,
				FinalState:  outcome.State.String(),
				Refinements: outcome.Refinements,
				NodeCount:   client.Store().NodeCount(),
				EdgeCount:   client.Store().EdgeCount(),
			})
		}
		if err := recorder.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry flush failed: %v\n", err)
		}
	}

	if dryRun {
		fmt.Println("dry run, not persisting")
		return nil
	}
	if err := snapshots.Save(ctx, client.Store()); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}
