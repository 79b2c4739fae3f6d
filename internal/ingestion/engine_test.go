package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/bam-rec/internal/sqlstore"
	"github.com/mfenderov/bam-rec/pkg/models"
)

const batchJSON = `{
  "content": [
    {
      "content": {
        "user_id": "u1",
        "url": "https://react.dev/learn",
        "title": "Quick Start",
        "extracted_text": "Learn components, props and state.",
        "tags": ["React", "JavaScript"],
        "quality_score": 9
      },
      "analysis": {"technologies": ["React"], "content_type": "tutorial", "difficulty": "beginner"}
    },
    {"content": {"user_id": "u1", "title": "no url"}}
  ],
  "projects": [
    {"id": "p1", "user_id": "u1", "title": "Portfolio", "technologies": ["React", "TypeScript"]},
    {"title": "nameless"}
  ]
}`

func TestDecode(t *testing.T) {
	b, err := Decode(strings.NewReader(batchJSON))
	require.NoError(t, err)
	assert.Len(t, b.Content, 2)
	assert.Len(t, b.Projects, 2)
	require.NotNil(t, b.Content[0].Analysis)
	assert.Equal(t, "tutorial", b.Content[0].Analysis.ContentType)

	_, err = Decode(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestLoad_CollectsRowErrors(t *testing.T) {
	var stored []models.RawContent
	var analyses []*models.ContentAnalysis
	var projects []models.Project
	refreshed := false

	e := New(
		func(_ context.Context, raw models.RawContent, a *models.ContentAnalysis) error {
			stored = append(stored, raw)
			analyses = append(analyses, a)
			return nil
		},
		func(_ context.Context, p models.Project) error {
			projects = append(projects, p)
			return nil
		},
		func(context.Context) error { refreshed = true; return nil },
	)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	b, err := Decode(strings.NewReader(batchJSON))
	require.NoError(t, err)
	res := e.Load(context.Background(), b)

	assert.Equal(t, 1, res.ContentLoaded)
	assert.Equal(t, 1, res.ProjectsLoaded)
	assert.Len(t, res.Errors, 2)
	assert.True(t, refreshed)

	require.Len(t, stored, 1)
	assert.Equal(t, models.GenerateContentID("u1", "https://react.dev/learn"), stored[0].ID)
	assert.Equal(t, now, stored[0].SavedAt)
	assert.Equal(t, []string{"react", "javascript"}, stored[0].Tags)
	require.NotNil(t, analyses[0])
	assert.Equal(t, stored[0].ID, analyses[0].ContentID)
	assert.Equal(t, []string{"react"}, analyses[0].Technologies)

	require.Len(t, projects, 1)
	assert.Equal(t, []string{"react", "typescript"}, projects[0].Technologies)
}

func TestLoad_SinkErrorsDoNotStopBatch(t *testing.T) {
	calls := 0
	e := New(func(context.Context, models.RawContent, *models.ContentAnalysis) error {
		calls++
		if calls == 1 {
			return errors.New("disk full")
		}
		return nil
	}, nil, nil)

	res := e.Load(context.Background(), Batch{Content: []models.Candidate{
		{Content: models.RawContent{UserID: "u1", URL: "https://a.dev"}},
		{Content: models.RawContent{UserID: "u1", URL: "https://b.dev"}},
	}})
	assert.Equal(t, 1, res.ContentLoaded)
	assert.Equal(t, []string{"disk full"}, res.Errors)
}

func TestLoad_MissingStores(t *testing.T) {
	e := New(nil, nil, nil)
	res := e.Load(context.Background(), Batch{
		Content:  []models.Candidate{{Content: models.RawContent{UserID: "u1", URL: "https://a.dev"}}},
		Projects: []models.Project{{ID: "p1"}},
	})
	assert.Zero(t, res.ContentLoaded)
	assert.Zero(t, res.ProjectsLoaded)
	assert.Equal(t, []string{"no content store configured", "no project store configured"}, res.Errors)
}

func TestLoad_IntoSQLStore(t *testing.T) {
	store, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "load.db"), nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.Migrate(ctx))

	b, err := Decode(strings.NewReader(batchJSON))
	require.NoError(t, err)
	res := New(store.SaveContent, store.SaveProject, nil).Load(ctx, b)
	assert.Equal(t, 1, res.ContentLoaded)
	assert.Equal(t, 1, res.ProjectsLoaded)

	candidates, err := store.FetchCandidates(ctx, "u1", models.CandidateFilter{}.WithDefaults())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Quick Start", candidates[0].Content.Title)
	require.NotNil(t, candidates[0].Analysis)
	assert.Equal(t, "tutorial", candidates[0].Analysis.ContentType)

	p, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Portfolio", p.Title)
}
