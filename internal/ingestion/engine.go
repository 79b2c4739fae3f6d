// Package ingestion loads saved content and projects into the configured
// stores from a JSON batch.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// ContentSink stores one content row with its optional analysis.
type ContentSink func(ctx context.Context, raw models.RawContent, analysis *models.ContentAnalysis) error

// ProjectSink stores one project.
type ProjectSink func(ctx context.Context, p models.Project) error

// Batch is the file format read by Load.
type Batch struct {
	Content  []models.Candidate `json:"content"`
	Projects []models.Project   `json:"projects"`
}

// Result holds ingestion execution results.
type Result struct {
	ContentLoaded  int
	ProjectsLoaded int
	Duration       time.Duration
	Errors         []string
}

// Engine writes batches to content and project stores.
type Engine struct {
	content  ContentSink
	projects ProjectSink
	refresh  func(ctx context.Context) error // nil unless the content store needs it
	now      func() time.Time
}

// New creates a new ingestion engine. A nil sink rejects rows of its kind.
func New(content ContentSink, projects ProjectSink, refresh func(ctx context.Context) error) *Engine {
	return &Engine{
		content:  content,
		projects: projects,
		refresh:  refresh,
		now:      time.Now,
	}
}

// Decode reads a Batch from r.
func Decode(r io.Reader) (Batch, error) {
	var b Batch
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return Batch{}, fmt.Errorf("failed to decode batch: %w", err)
	}
	return b, nil
}

// Load writes every row of b. Row failures are collected in Result.Errors and
// do not stop the batch.
func (e *Engine) Load(ctx context.Context, b Batch) *Result {
	start := e.now()
	result := &Result{}

	slog.Info("starting ingestion", "content", len(b.Content), "projects", len(b.Projects))

	for _, c := range b.Content {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		raw, analysis, err := e.prepareContent(c)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if e.content == nil {
			result.Errors = append(result.Errors, "no content store configured")
			break
		}

		slog.Debug("storing content", "id", raw.ID, "url", raw.URL, "tags", len(raw.Tags))
		if err := e.content(ctx, raw, analysis); err != nil {
			slog.Error("failed to store content", "id", raw.ID, "error", err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.ContentLoaded++
	}

	for _, p := range b.Projects {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}
		if strings.TrimSpace(p.ID) == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("project %q has no id", p.Title))
			continue
		}
		if e.projects == nil {
			result.Errors = append(result.Errors, "no project store configured")
			break
		}

		p.Technologies = models.NormalizeTechnologies(p.Technologies)
		if err := e.projects(ctx, p); err != nil {
			slog.Error("failed to store project", "id", p.ID, "error", err)
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.ProjectsLoaded++
	}

	// Make rows searchable immediately
	if e.refresh != nil && result.ContentLoaded > 0 {
		if err := e.refresh(ctx); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.Duration = e.now().Sub(start)
	slog.Info("ingestion complete",
		"content_loaded", result.ContentLoaded,
		"projects_loaded", result.ProjectsLoaded,
		"duration", result.Duration,
		"errors", len(result.Errors))

	return result
}

// prepareContent validates a row and fills derived fields.
func (e *Engine) prepareContent(c models.Candidate) (models.RawContent, *models.ContentAnalysis, error) {
	raw := c.Content
	raw.URL = strings.TrimSpace(raw.URL)
	if raw.URL == "" {
		return raw, nil, fmt.Errorf("content %q has no url", raw.Title)
	}
	if strings.TrimSpace(raw.UserID) == "" {
		return raw, nil, fmt.Errorf("content %s has no user_id", raw.URL)
	}
	if raw.ID == "" {
		raw.ID = models.GenerateContentID(raw.UserID, raw.URL)
	}
	if raw.SavedAt.IsZero() {
		raw.SavedAt = e.now()
	}
	raw.Tags = models.NormalizeTechnologies(raw.Tags)

	analysis := c.Analysis
	if analysis != nil {
		a := *analysis
		a.ContentID = raw.ID
		a.Technologies = models.NormalizeTechnologies(a.Technologies)
		analysis = &a
	}
	return raw, analysis, nil
}
