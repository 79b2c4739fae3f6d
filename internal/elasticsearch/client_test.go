package elasticsearch

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/bam-rec/pkg/models"
)

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func newTestClient(t *testing.T, index string) *Client {
	t.Helper()
	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     index,
	})
	require.NoError(t, err)

	ctx := context.Background()
	client.DeleteIndex(ctx)
	require.NoError(t, client.CreateIndex(ctx))
	t.Cleanup(func() { client.DeleteIndex(context.Background()) })
	return client
}

func TestBuildCandidateQuery(t *testing.T) {
	q := buildCandidateQuery("u1", models.CandidateFilter{
		MinQuality:      5,
		ExcludePatterns: []string{"localhost", " "},
		Limit:           20,
	})

	data, err := json.Marshal(q)
	require.NoError(t, err)
	body := string(data)

	for _, want := range []string{
		`{"term":{"user_id":"u1"}}`,
		`{"term":{"has_text":true}}`,
		`"quality_score":{"gte":5}`,
		`"value":"*localhost*"`,
		`"track_scores":true`,
		`"size":20`,
	} {
		assert.Contains(t, body, want)
	}
	assert.NotContains(t, body, "shared", "query should not include shared content unless requested")
	assert.NotContains(t, body, "multi_match", "query without text should not score")
	assert.Equal(t, 1, strings.Count(body, "wildcard"), "blank exclude patterns should be skipped")
}

func TestBuildCandidateQuery_GlobalAndText(t *testing.T) {
	q := buildCandidateQuery("u1", models.CandidateFilter{IncludeGlobal: true, Query: "react hooks", Limit: 10})
	data, err := json.Marshal(q)
	require.NoError(t, err)
	body := string(data)

	assert.Contains(t, body, `{"term":{"shared":true}}`)
	assert.Contains(t, body, `"minimum_should_match":1`)
	assert.Contains(t, body, `"query":"react hooks"`)
	assert.NotContains(t, body, "must_not", "must_not should be omitted without patterns")
}

func TestToCandidates_RelevanceHint(t *testing.T) {
	score := func(f float64) *float64 { return &f }
	hits := []searchHit{
		{Score: score(4), Source: contentDoc{ID: "a", Title: "A"}},
		{Score: score(2), Source: contentDoc{ID: "b", Title: "B"}},
		{Score: nil, Source: contentDoc{ID: "c", Title: "C"}},
	}

	got := toCandidates(hits, true)
	want := []float64{1, 0.5, 0}
	for i, c := range got {
		assert.Equal(t, want[i], c.RelevanceHint, "candidate %s", c.Content.ID)
	}

	for _, c := range toCandidates(hits, false) {
		assert.Zero(t, c.RelevanceHint, "unscored candidate %s", c.Content.ID)
	}
}

func TestClient_Connect(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "bam-rec-test",
	})
	require.NoError(t, err)
	assert.True(t, client.Ping(context.Background()), "Ping() should return true for running ES")
}

func TestClient_CreateIndex(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "bam-rec-test-create")

	// Creating again should not error (idempotent)
	require.NoError(t, client.CreateIndex(context.Background()))
}

func TestClient_FetchCandidates(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "bam-rec-test-candidates")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	rows := []models.RawContent{
		{ID: "hooks", UserID: "u1", URL: "https://react.dev/hooks", Title: "React Hooks", ExtractedText: "Using react hooks in components.", QualityScore: 8, SavedAt: now},
		{ID: "sql", UserID: "u1", URL: "https://pg.dev/index", Title: "Postgres Indexes", ExtractedText: "B-tree indexes explained.", QualityScore: 9, SavedAt: now},
		{ID: "local", UserID: "u1", URL: "http://localhost:3000/x", Title: "Local", ExtractedText: "react", QualityScore: 9, SavedAt: now},
		{ID: "empty", UserID: "u1", URL: "https://react.dev/empty", Title: "Empty", ExtractedText: "", QualityScore: 9, SavedAt: now},
		{ID: "shared", UserID: "u2", URL: "https://react.dev/shared", Title: "Shared React", ExtractedText: "react patterns", QualityScore: 6, SavedAt: now, Shared: true},
	}
	for _, r := range rows {
		var a *models.ContentAnalysis
		if r.ID == "hooks" {
			a = &models.ContentAnalysis{ContentID: r.ID, Technologies: []string{"react"}, ContentType: "tutorial"}
		}
		require.NoError(t, client.IndexContent(ctx, r, a), r.ID)
	}
	client.Refresh(ctx)

	got, err := client.FetchCandidates(ctx, "u1", models.CandidateFilter{
		Query:           "react hooks",
		MinQuality:      5,
		ExcludePatterns: []string{"localhost"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "sql", got[0].Content.ID)
	assert.Equal(t, "hooks", got[1].Content.ID)
	assert.Equal(t, 1.0, got[1].RelevanceHint)
	require.NotNil(t, got[1].Analysis)
	assert.Equal(t, "tutorial", got[1].Analysis.ContentType)

	got, err = client.FetchCandidates(ctx, "u1", models.CandidateFilter{IncludeGlobal: true, ExcludePatterns: []string{"localhost"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestClient_GetContent(t *testing.T) {
	skipIfNoES(t)

	client := newTestClient(t, "bam-rec-test-get")
	ctx := context.Background()

	raw := models.RawContent{
		ID:            "test-get",
		UserID:        "u1",
		URL:           "https://go.dev/doc",
		Title:         "Test Page",
		ExtractedText: "# Test\n\nTest content for get operation.",
	}
	require.NoError(t, client.IndexContent(ctx, raw, nil))

	result, err := client.GetContent(ctx, "test-get")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, raw.ExtractedText, result.ExtractedText)

	missing, err := client.GetContent(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
