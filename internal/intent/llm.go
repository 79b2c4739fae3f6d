package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mfenderov/bam-rec/internal/llm"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// DefaultAnalysisTTL is how long an LLM analysis is reused.
const DefaultAnalysisTTL = 24 * time.Hour

// Classifier is the LLM capability the strategy needs.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string, project *llm.ProjectContext) (*llm.Classification, error)
}

// ProjectStore holds project context and the analyses attached to projects.
// Both sqlstore.Store and storage.Client implement it.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetStoredIntent(ctx context.Context, projectID string) (*models.StoredIntent, error)
	SaveStoredIntent(ctx context.Context, s models.StoredIntent) error
}

// LLMStrategy classifies with the LLM. Answers are cached in memory by
// content hash and project, and persisted to the project store when a
// project is known.
type LLMStrategy struct {
	classifier Classifier
	projects   ProjectStore
	cache      *expirable.LRU[string, models.Intent]
	ttl        time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewLLMStrategy creates the LLM layer. projects may be nil.
func NewLLMStrategy(classifier Classifier, projects ProjectStore, ttl time.Duration, cacheSize int, logger *slog.Logger) *LLMStrategy {
	if ttl <= 0 {
		ttl = DefaultAnalysisTTL
	}
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMStrategy{
		classifier: classifier,
		projects:   projects,
		cache:      expirable.NewLRU[string, models.Intent](cacheSize, nil, ttl),
		ttl:        ttl,
		logger:     logger.With("component", "intent", "strategy", "llm"),
		now:        time.Now,
	}
}

// Name implements Strategy.
func (s *LLMStrategy) Name() string { return models.IntentSourceLLM }

// Resolve implements Strategy.
func (s *LLMStrategy) Resolve(ctx context.Context, in Input) Result {
	if s.classifier == nil {
		return Unavailable(fmt.Errorf("%w: no classifier configured", ErrUnavailable))
	}

	hash := in.Hash()
	key := hash + "|" + in.ProjectID
	if cached, ok := s.cache.Get(key); ok {
		return Resolved(cached)
	}

	cl, err := s.classifier.ClassifyIntent(ctx, in.Text, s.projectContext(ctx, in.ProjectID))
	if err != nil {
		return Unavailable(fmt.Errorf("%w: %w", ErrUnavailable, err))
	}

	now := s.now()
	i := models.Intent{
		Goal:                 cl.Goal,
		LearningStage:        cl.LearningStage,
		ProjectType:          cl.ProjectType,
		Urgency:              cl.Urgency,
		SpecificTechnologies: append(cl.SpecificTechnologies, in.Technologies...),
		ComplexityPreference: cl.ComplexityPreference,
		TimeConstraint:       cl.TimeConstraint,
		FocusAreas:           cl.FocusAreas,
		ContentHash:          hash,
		Source:               models.IntentSourceLLM,
		AnalyzedAt:           now,
	}.Normalize()

	s.cache.Add(key, i)
	s.persist(ctx, in.ProjectID, i, now)
	return Resolved(i)
}

func (s *LLMStrategy) projectContext(ctx context.Context, projectID string) *llm.ProjectContext {
	if projectID == "" || s.projects == nil {
		return nil
	}
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		s.logger.Debug("project context unavailable", "project_id", projectID, "error", err)
		return nil
	}
	return &llm.ProjectContext{
		Title:        p.Title,
		Description:  p.Description,
		Technologies: p.Technologies,
	}
}

// persist stores the analysis on the project. Failures only cost a later
// re-analysis.
func (s *LLMStrategy) persist(ctx context.Context, projectID string, i models.Intent, now time.Time) {
	if projectID == "" || s.projects == nil {
		return
	}
	err := s.projects.SaveStoredIntent(ctx, models.StoredIntent{
		ProjectID: projectID,
		Intent:    i,
		ExpiresAt: now.Add(s.ttl),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("failed to store project analysis", "project_id", projectID, "error", err)
	}
}
