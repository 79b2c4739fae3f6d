package recommend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/bam-rec/internal/config"
	"github.com/mfenderov/bam-rec/internal/ingestion"
	"github.com/mfenderov/bam-rec/pkg/models"
)

func sqliteConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "build.db")
	return cfg
}

func TestBuild_SQLiteServesLoadedContent(t *testing.T) {
	ctx := context.Background()
	app, err := Build(ctx, sqliteConfig(t), nil, nil)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	require.NotNil(t, app.Content)

	res := app.Loader().Load(ctx, ingestion.Batch{Content: []models.Candidate{{
		Content: models.RawContent{
			UserID:        "u1",
			URL:           "https://react.dev/learn",
			Title:         "React basics for beginners",
			ExtractedText: "Learn React components, props and state in JavaScript.",
			Tags:          []string{"react", "javascript"},
			ContentType:   "tutorial",
			Difficulty:    "beginner",
			QualityScore:  8,
		},
	}}})
	require.Empty(t, res.Errors)
	assert.Equal(t, 1, res.ContentLoaded)

	id := models.GenerateContentID("u1", "https://react.dev/learn")
	got, err := app.Content.GetContent(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "React basics for beginners", got.Title)

	results := app.Service.GetRecommendations(ctx, reactRequest())
	require.NotEmpty(t, results)
	assert.Equal(t, id, results[0].ID)
}

func TestBuild_UnknownDefaultEngine(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Recommend.DefaultEngine = "turbo"

	_, err := Build(context.Background(), cfg, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"turbo"`)
	assert.Contains(t, err.Error(), "context, fast")
}
