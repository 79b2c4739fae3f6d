package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/bam-rec/pkg/models"
)

func TestNormalize_UnionsTechnologies(t *testing.T) {
	n := New(nil, nil)
	saved := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{
			ID:            "c1",
			UserID:        "u1",
			URL:           "https://react.dev/learn",
			Title:         "Quick Start",
			ExtractedText: "React basics",
			Tags:          []string{"React", "JavaScript"},
			QualityScore:  8,
			SavedAt:       saved,
		},
		Analysis: &models.ContentAnalysis{
			Technologies: []string{"react", "JSX"},
			KeyConcepts:  []string{"components"},
			AnalysisData: json.RawMessage(`{"technologies":["Hooks","jsx"],"content_type":"Tutorial","difficulty":"beginner","relevance_score":0.7}`),
		},
		RelevanceHint: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"react", "javascript", "jsx", "hooks"}, got.Technologies)
	assert.Equal(t, []string{"components"}, got.KeyConcepts)
	assert.Equal(t, "tutorial", got.ContentType)
	assert.Equal(t, "beginner", got.Difficulty)
	assert.InDelta(t, 0.7, got.RelevanceHint, 1e-9)
	assert.Equal(t, saved, got.SavedAt)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, models.SchemaVersion, got.Version)
}

func TestNormalize_Defaults(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{ID: "c1", URL: "https://example.org/a", ExtractedText: "text"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.DefaultContentType, got.ContentType)
	assert.Equal(t, models.DefaultDifficulty, got.Difficulty)
	assert.Equal(t, "https://example.org/a", got.Title)
	assert.Empty(t, got.Technologies)
	assert.NotNil(t, got.Technologies)
}

func TestNormalize_CommaSeparatedAnalysisTechnologies(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{ID: "c1", Title: "t"},
		Analysis: &models.ContentAnalysis{
			AnalysisData: json.RawMessage(`{"technologies":"Go, gRPC"}`),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "grpc"}, got.Technologies)
}

func TestNormalize_MalformedAnalysisFallsBackToMinimal(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{ID: "c1", Title: "Go Tour", Tags: []string{"Go"}, QualityScore: 7},
		Analysis: &models.ContentAnalysis{
			ContentType:  "reference",
			AnalysisData: json.RawMessage(`{"technologies": 42}`),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Go Tour", got.Title)
	assert.Equal(t, []string{"go"}, got.Technologies)
	assert.Equal(t, models.DefaultContentType, got.ContentType)
	assert.Equal(t, 7.0, got.QualityScore)
}

func TestNormalize_HTMLText(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{
			ID:            "c1",
			MediaType:     "text/html",
			ExtractedText: `<html><head><title>Hooks Guide</title></head><body><h1>Hooks</h1><p>useState</p></body></html>`,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hooks Guide", got.Title)
	assert.Contains(t, got.ExtractedText, "# Hooks")
	assert.NotContains(t, got.ExtractedText, "<p>")
}

func TestNormalize_MarkdownTitle(t *testing.T) {
	n := New(nil, nil)

	got, err := n.Normalize(models.Candidate{
		Content: models.RawContent{ID: "c1", ExtractedText: "intro\n# Concurrency Patterns\nbody"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Concurrency Patterns", got.Title)
}

func TestNormalizeAll_SkipsRowsWithoutID(t *testing.T) {
	n := New(nil, nil)

	got := n.NormalizeAll([]models.Candidate{
		{Content: models.RawContent{ID: "a", Title: "A"}},
		{Content: models.RawContent{Title: "missing id"}},
		{Content: models.RawContent{ID: "b", Title: "B"}, Analysis: &models.ContentAnalysis{AnalysisData: json.RawMessage(`{`)}},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestNormalize_MissingID(t *testing.T) {
	_, err := New(nil, nil).Normalize(models.Candidate{})
	assert.ErrorIs(t, err, ErrMissingID)
}
