package strata

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/strata/pkg/config"
	"github.com/soundprediction/strata/pkg/persist"
	"github.com/soundprediction/strata/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Strata HTTP server",
	Long: `Start the Strata HTTP server to provide REST API access to the knowledge graph.

The server provides endpoints for:
- Ingesting nodes and edges
- Validating structural invariants
- Running bounded refinement
- Resolving ambiguous concepts per query
- Exporting the graph
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Advice flags
	serverCmd.Flags().Bool("advice-enabled", false, "Enable the gap-advice collaborator")
	serverCmd.Flags().String("advice-model", "", "Advice model")
	serverCmd.Flags().String("advice-api-key", "", "Advice API key")
	serverCmd.Flags().String("advice-base-url", "", "Advice base URL")

	// History flags
	serverCmd.Flags().String("history-path", "", "Directory for the update log")

	// Persistence flags
	serverCmd.Flags().Bool("persist-enabled", false, "Persist snapshots to Neo4j")
	serverCmd.Flags().String("persist-uri", "", "Neo4j URI")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for telemetry")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrideConfigWithFlags(cmd, cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	client, recorder, err := initializeEngine(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	// Restore the last snapshot and replay correlation history before
	// serving.
	var snapshots *persist.Neo4jStore
	if cfg.Persist.Enabled {
		snapshots, err = persist.NewNeo4jStore(cfg.Persist.URI, cfg.Persist.Username, cfg.Persist.Password, cfg.Persist.Database, nil)
		if err != nil {
			return fmt.Errorf("failed to connect snapshot store: %w", err)
		}
		loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		restored, err := snapshots.Load(loadCtx)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: snapshot restore failed: %v\n", err)
		} else {
			client.Restore(restored)
		}
	}
	if err := client.LearnCorrelations(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: correlation replay failed: %v\n", err)
	}

	srv := server.New(cfg, client, recorder)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()
	fmt.Printf("Serving on %s:%d\n", cfg.Server.Host, cfg.Server.Port)

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		if snapshots != nil {
			if err := snapshots.Save(shutdownCtx, client.Store()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: snapshot save failed: %v\n", err)
			}
			snapshots.Close(shutdownCtx)
		}

		fmt.Println("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Advice flags
	if cmd.Flags().Changed("advice-enabled") {
		cfg.Advice.Enabled, _ = cmd.Flags().GetBool("advice-enabled")
	}
	if cmd.Flags().Changed("advice-model") {
		cfg.Advice.Model, _ = cmd.Flags().GetString("advice-model")
	}
	if cmd.Flags().Changed("advice-api-key") {
		cfg.Advice.APIKey, _ = cmd.Flags().GetString("advice-api-key")
	}
	if cmd.Flags().Changed("advice-base-url") {
		cfg.Advice.BaseURL, _ = cmd.Flags().GetString("advice-base-url")
	}

	// History flags
	if cmd.Flags().Changed("history-path") {
		cfg.History.Path, _ = cmd.Flags().GetString("history-path")
	}

	// Persistence flags
	if cmd.Flags().Changed("persist-enabled") {
		cfg.Persist.Enabled, _ = cmd.Flags().GetBool("persist-enabled")
	}
	if cmd.Flags().Changed("persist-uri") {
		cfg.Persist.URI, _ = cmd.Flags().GetString("persist-uri")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
