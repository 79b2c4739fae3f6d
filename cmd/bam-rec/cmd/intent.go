package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfenderov/bam-rec/internal/intent"
	"github.com/mfenderov/bam-rec/internal/recommend"
	"github.com/mfenderov/bam-rec/pkg/models"
)

var (
	intentTech    string
	intentUser    string
	intentProject string
)

var intentCmd = &cobra.Command{
	Use:   "intent [text]",
	Short: "Show how a request is interpreted",
	Long: `Resolve the intent of a request and print it as JSON.

The LLM is asked first when enabled, then a stored project analysis,
then keyword rules. The "source" field shows which one answered.

Example:
  bam-rec intent "urgent: fix the login bug in our react app" --tech react`,
	Args: cobra.ExactArgs(1),
	RunE: runIntent,
}

func init() {
	rootCmd.AddCommand(intentCmd)

	intentCmd.Flags().StringVar(&intentTech, "tech", "", "Comma-separated technologies")
	intentCmd.Flags().StringVar(&intentUser, "user", "", "User the request belongs to")
	intentCmd.Flags().StringVar(&intentProject, "project", "", "Project whose stored analysis may be reused")
}

func runIntent(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := recommend.BuildWithTimeout(GetConfig(), nil, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build recommendation service: %w", err)
	}
	defer app.Close()

	resolved := app.Resolver.Resolve(ctx, intent.Input{
		Text:         args[0],
		UserID:       intentUser,
		ProjectID:    intentProject,
		Technologies: models.NormalizeTechnologies(strings.Split(intentTech, ",")),
	})

	output, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
