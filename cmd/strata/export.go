package strata

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/strata/pkg/config"
	"github.com/soundprediction/strata/pkg/persist"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the persisted graph as YAML",
	Long: `Load the persisted graph snapshot and write one YAML document per node,
including containment, uncertainty attributes, relations, and correlated
concepts. Suitable for import into note-taking tools.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Persist.Enabled {
		return fmt.Errorf("export requires persist.enabled, there is no graph to load otherwise")
	}

	client, _, err := initializeEngine(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
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

	// Correlations come from the update log, so exported correlates reflect
	// observed co-occurrence rather than the snapshot alone.
	if err := client.LearnCorrelations(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: correlation replay failed: %v\n", err)
	}

	out := os.Stdout
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	return client.ExportYAML(out)
}
