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

	"github.com/mfenderov/bam-rec/internal/recommend"
	"github.com/mfenderov/bam-rec/pkg/models"
)

var (
	recDescription string
	recTech        string
	recUser        string
	recProject     string
	recLimit       int
	recEngine      string
	recQuality     float64
	recGlobal      bool
	recDiversity   float64
	recFormat      string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [title]",
	Short: "Recommend saved content for a request",
	Long: `Rank a user's saved content against a request and print the results.

Examples:
  # Basic request
  bam-rec recommend "Learn React Basics" --user u1 --tech react,javascript

  # Force the fast engine and limit results
  bam-rec recommend "fix flaky postgres migrations" --user u1 --engine fast --limit 5

  # JSON output for scripting
  bam-rec recommend "deploy to kubernetes" --user u1 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringVar(&recDescription, "description", "", "Longer description of the task")
	recommendCmd.Flags().StringVar(&recTech, "tech", "", "Comma-separated technologies")
	recommendCmd.Flags().StringVar(&recUser, "user", "", "User whose content is ranked (required)")
	recommendCmd.Flags().StringVar(&recProject, "project", "", "Project the request belongs to")
	recommendCmd.Flags().IntVar(&recLimit, "limit", 10, "Maximum number of results")
	recommendCmd.Flags().StringVar(&recEngine, "engine", "", "Ranking engine: fast, context or auto")
	recommendCmd.Flags().Float64Var(&recQuality, "min-quality", 0, "Minimum content quality, 0-10")
	recommendCmd.Flags().Float64Var(&recDiversity, "diversity", 0, "0-1; push repeated content types down the list")
	recommendCmd.Flags().BoolVar(&recGlobal, "global", false, "Also rank content other users shared")
	recommendCmd.Flags().StringVar(&recFormat, "format", "text", "Output format: text or json")
	recommendCmd.MarkFlagRequired("user")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := models.RecommendationRequest{
		UserID:               recUser,
		Description:          recDescription,
		Technologies:         recTech,
		ProjectID:            recProject,
		MaxRecommendations:   recLimit,
		EnginePreference:     models.EnginePreference(strings.ToLower(recEngine)),
		QualityThreshold:     recQuality,
		DiversityWeight:      recDiversity,
		IncludeGlobalContent: recGlobal,
	}
	if len(args) > 0 {
		req.Title = args[0]
	}

	app, err := recommend.BuildWithTimeout(GetConfig(), nil, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build recommendation service: %w", err)
	}
	defer app.Close()

	if err := app.Service.Validate(req); err != nil {
		return err
	}

	results := app.Service.GetRecommendations(ctx, req)

	if recFormat == "json" {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No recommendations found.")
		return nil
	}

	fmt.Printf("Found %d recommendations:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("─── %d. %s ───\n", i+1, r.Title)
		fmt.Printf("URL:        %s\n", r.URL)
		fmt.Printf("Score:      %.1f (%s, confidence %.2f)\n", r.Score, r.Engine, r.Confidence)
		fmt.Printf("Type:       %s, %s\n", r.ContentType, r.Difficulty)
		if len(r.Technologies) > 0 {
			fmt.Printf("Tech:       %s\n", strings.Join(r.Technologies, ", "))
		}
		fmt.Printf("Why:        %s\n\n", r.Reason)
	}

	return nil
}
