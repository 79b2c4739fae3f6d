package ranking

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfenderov/bam-rec/internal/llm"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// Explainer writes free-text reasons for a recommended item.
type Explainer interface {
	Explain(ctx context.Context, req llm.ExplainRequest) (string, error)
}

// EnhancerConfig bounds explanation work.
type EnhancerConfig struct {
	TopN        int
	Concurrency int
	Timeout     time.Duration
}

// Enhancer replaces templated reasons of the top results with generated ones.
type Enhancer struct {
	explainer Explainer
	config    EnhancerConfig
	logger    *slog.Logger
}

// NewEnhancer creates an enhancer. A nil explainer makes Enhance a no-op.
func NewEnhancer(explainer Explainer, config EnhancerConfig, logger *slog.Logger) *Enhancer {
	if config.TopN <= 0 {
		config.TopN = 3
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{
		explainer: explainer,
		config:    config,
		logger:    logger.With("component", "enhancer"),
	}
}

// Enhance explains the top results concurrently. A failed or slow call keeps
// that result's templated reason. items supplies the text behind each result.
func (e *Enhancer) Enhance(ctx context.Context, results []models.RecommendationResult, items []models.NormalizedContent, req models.EnhancedRequest) {
	if e == nil || e.explainer == nil || len(results) == 0 {
		return
	}

	byID := make(map[string]models.NormalizedContent, len(items))
	for _, c := range items {
		byID[c.ID] = c
	}

	var goal, stage string
	if req.Intent != nil {
		goal, stage = req.Intent.Goal, req.Intent.LearningStage
	}

	n := min(e.config.TopN, len(results))
	g := new(errgroup.Group)
	g.SetLimit(e.config.Concurrency)

	for i := 0; i < n; i++ {
		r := &results[i]
		c := byID[r.ID]
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
			defer cancel()

			text, err := e.explainer.Explain(callCtx, llm.ExplainRequest{
				Title:        r.Title,
				URL:          r.URL,
				Summary:      c.ExtractedText,
				Technologies: r.Technologies,
				UserRequest:  req.Request.Text(),
				Goal:         goal,
				Stage:        stage,
			})
			if err != nil {
				e.logger.Warn("explanation failed, keeping template", "id", r.ID, "error", err)
				return nil
			}

			r.Reason = text
			if r.Metadata == nil {
				r.Metadata = map[string]any{}
			}
			r.Metadata[MetaReasonSource] = ReasonSourceLLM
			return nil
		})
	}

	// Workers never return errors.
	_ = g.Wait()
}
