package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// ProjectStrategy reuses an analysis already attached to the project, as long
// as it was made for the same text and has not expired.
type ProjectStrategy struct {
	projects ProjectStore
	now      func() time.Time
}

// NewProjectStrategy creates the stored-analysis layer.
func NewProjectStrategy(projects ProjectStore) *ProjectStrategy {
	return &ProjectStrategy{projects: projects, now: time.Now}
}

// Name implements Strategy.
func (s *ProjectStrategy) Name() string { return models.IntentSourceProject }

// Resolve implements Strategy.
func (s *ProjectStrategy) Resolve(ctx context.Context, in Input) Result {
	if in.ProjectID == "" {
		return Unavailable(fmt.Errorf("%w: no project", ErrUnavailable))
	}
	if s.projects == nil {
		return Unavailable(fmt.Errorf("%w: no project store", ErrUnavailable))
	}

	stored, err := s.projects.GetStoredIntent(ctx, in.ProjectID)
	if err != nil {
		return Unavailable(fmt.Errorf("%w: %w", ErrUnavailable, err))
	}
	if !stored.Applicable(in.Hash(), s.now()) {
		return Unavailable(fmt.Errorf("%w: stored analysis is stale", ErrUnavailable))
	}

	i := stored.Intent
	i.Source = models.IntentSourceProject
	return Resolved(i)
}
