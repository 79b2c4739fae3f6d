package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client is the Elasticsearch content store. Each document holds one saved
// content row together with its analysis.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// indexMapping defines the ES index mapping for saved content.
var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"user_id": { "type": "keyword" },
			"url": { "type": "keyword" },
			"title": { "type": "text" },
			"extracted_text": { "type": "text", "analyzer": "english" },
			"media_type": { "type": "keyword" },
			"tags": { "type": "keyword" },
			"content_type": { "type": "keyword" },
			"difficulty": { "type": "keyword" },
			"quality_score": { "type": "float" },
			"saved_at": { "type": "date" },
			"shared": { "type": "boolean" },
			"has_text": { "type": "boolean" },
			"analysis": {
				"properties": {
					"technologies": { "type": "keyword" },
					"key_concepts": { "type": "keyword" },
					"content_type": { "type": "keyword" },
					"difficulty": { "type": "keyword" },
					"relevance_score": { "type": "float" },
					"analysis_data": { "type": "object", "enabled": false }
				}
			}
		}
	}
}`

// contentDoc is the stored document shape.
type contentDoc struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	URL           string                  `json:"url"`
	Title         string                  `json:"title"`
	ExtractedText string                  `json:"extracted_text"`
	MediaType     string                  `json:"media_type,omitempty"`
	Tags          []string                `json:"tags,omitempty"`
	ContentType   string                  `json:"content_type,omitempty"`
	Difficulty    string                  `json:"difficulty,omitempty"`
	QualityScore  float64                 `json:"quality_score"`
	SavedAt       time.Time               `json:"saved_at"`
	Shared        bool                    `json:"shared"`
	HasText       bool                    `json:"has_text"` // non-empty title and text
	Analysis      *models.ContentAnalysis `json:"analysis,omitempty"`
}

// CreateIndex creates the index with proper mapping.
func (c *Client) CreateIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}

	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexContent indexes one content row with its optional analysis.
func (c *Client) IndexContent(ctx context.Context, raw models.RawContent, analysis *models.ContentAnalysis) error {
	doc := contentDoc{
		ID:            raw.ID,
		UserID:        raw.UserID,
		URL:           raw.URL,
		Title:         raw.Title,
		ExtractedText: raw.ExtractedText,
		MediaType:     raw.MediaType,
		Tags:          raw.Tags,
		ContentType:   raw.ContentType,
		Difficulty:    raw.Difficulty,
		QualityScore:  raw.QualityScore,
		SavedAt:       raw.SavedAt,
		Shared:        raw.Shared,
		HasText:       strings.TrimSpace(raw.Title) != "" && strings.TrimSpace(raw.ExtractedText) != "",
		Analysis:      analysis,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal content: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(raw.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index content: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing content (status %d): %s", res.StatusCode, res.String())
	}

	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse represents ES search response structure.
type searchResponse struct {
	Hits struct {
		Hits []searchHit `json:"hits"`
	} `json:"hits"`
}

type searchHit struct {
	Score  *float64   `json:"_score"`
	Source contentDoc `json:"_source"`
}

// buildCandidateQuery filters server-side and sorts by quality then recency.
// Scores are still tracked so a text query yields a relevance hint.
func buildCandidateQuery(userID string, f models.CandidateFilter) map[string]interface{} {
	var visibility map[string]interface{}
	if f.IncludeGlobal {
		visibility = map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"term": map[string]interface{}{"user_id": userID}},
					{"term": map[string]interface{}{"shared": true}},
				},
				"minimum_should_match": 1,
			},
		}
	} else {
		visibility = map[string]interface{}{"term": map[string]interface{}{"user_id": userID}}
	}

	boolQuery := map[string]interface{}{
		"filter": []map[string]interface{}{
			visibility,
			{"term": map[string]interface{}{"has_text": true}},
			{"range": map[string]interface{}{"quality_score": map[string]interface{}{"gte": f.MinQuality}}},
		},
	}

	var mustNot []map[string]interface{}
	for _, p := range f.ExcludePatterns {
		if p = strings.TrimSpace(p); p != "" {
			mustNot = append(mustNot, map[string]interface{}{
				"wildcard": map[string]interface{}{"url": map[string]interface{}{"value": "*" + p + "*"}},
			})
		}
	}
	if len(mustNot) > 0 {
		boolQuery["must_not"] = mustNot
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		boolQuery["should"] = []map[string]interface{}{
			{
				"multi_match": map[string]interface{}{
					"query":  q,
					"fields": []string{"title^2", "extracted_text", "tags^2", "analysis.technologies^2"},
				},
			},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{"bool": boolQuery},
		"sort": []map[string]interface{}{
			{"quality_score": map[string]interface{}{"order": "desc"}},
			{"saved_at": map[string]interface{}{"order": "desc"}},
		},
		"track_scores": true,
		"size":         f.Limit,
	}
}

// FetchCandidates returns content visible to userID that passes the filter.
// RelevanceHint is each hit's text score divided by the best score in the batch.
func (c *Client) FetchCandidates(ctx context.Context, userID string, filter models.CandidateFilter) ([]models.Candidate, error) {
	filter = filter.WithDefaults()

	data, err := json.Marshal(buildCandidateQuery(userID, filter))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return toCandidates(sr.Hits.Hits, filter.Query != ""), nil
}

func toCandidates(hits []searchHit, scored bool) []models.Candidate {
	var maxScore float64
	if scored {
		for _, h := range hits {
			if h.Score != nil && *h.Score > maxScore {
				maxScore = *h.Score
			}
		}
	}

	out := make([]models.Candidate, len(hits))
	for i, h := range hits {
		d := h.Source
		out[i] = models.Candidate{
			Content: models.RawContent{
				ID:            d.ID,
				UserID:        d.UserID,
				URL:           d.URL,
				Title:         d.Title,
				ExtractedText: d.ExtractedText,
				MediaType:     d.MediaType,
				Tags:          d.Tags,
				ContentType:   d.ContentType,
				Difficulty:    d.Difficulty,
				QualityScore:  d.QualityScore,
				SavedAt:       d.SavedAt,
				Shared:        d.Shared,
			},
			Analysis: d.Analysis,
		}
		if maxScore > 0 && h.Score != nil {
			out[i].RelevanceHint = *h.Score / maxScore
		}
	}
	return out
}

// getResponse represents ES get response structure.
type getResponse struct {
	Found  bool       `json:"found"`
	Source contentDoc `json:"_source"`
}

// GetContent retrieves a content row by ID. It returns nil when missing.
func (c *Client) GetContent(ctx context.Context, id string) (*models.RawContent, error) {
	res, err := c.es.Get(
		c.index,
		id,
		c.es.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, nil
	}

	if res.IsError() {
		return nil, fmt.Errorf("get error: %s", res.String())
	}

	var gr getResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !gr.Found {
		return nil, nil
	}

	return &toCandidates([]searchHit{{Source: gr.Source}}, false)[0].Content, nil
}
