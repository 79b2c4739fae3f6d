package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/bam-rec/internal/ingestion"
	"github.com/mfenderov/bam-rec/internal/recommend"
)

var loadFile string

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load saved content and projects from a JSON file",
	Long: `Load saved content rows, their analyses and projects into the
configured stores.

Content goes to Elasticsearch when it is enabled and to the SQL database
otherwise. Projects go to S3 when storage is enabled.

The file holds two lists:

  {
    "content":  [{"content": {"user_id": "...", "url": "...", ...}, "analysis": {...}}],
    "projects": [{"id": "...", "user_id": "...", "title": "...", "technologies": [...]}]
  }

Examples:
  bam-rec load --file testdata/content.json`,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	loadCmd.Flags().StringVar(&loadFile, "file", "", "JSON file to load (required)")
	loadCmd.MarkFlagRequired("file")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Debug("load command starting", "file", loadFile)

	f, err := os.Open(loadFile)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", loadFile, err)
	}
	defer f.Close()

	batch, err := ingestion.Decode(f)
	if err != nil {
		return err
	}

	app, err := recommend.BuildWithTimeout(GetConfig(), nil, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build stores: %w", err)
	}
	defer app.Close()

	fmt.Printf("Loading: %s\n", loadFile)

	result := app.Loader().Load(ctx, batch)

	fmt.Printf("\nLoad complete:\n")
	fmt.Printf("  Content loaded:  %d\n", result.ContentLoaded)
	fmt.Printf("  Projects loaded: %d\n", result.ProjectsLoaded)
	fmt.Printf("  Duration: %v\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("  Warnings: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	return nil
}
