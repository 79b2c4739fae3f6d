package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// SchemaVersion is the version of the NormalizedContent record shape.
const SchemaVersion = 1

// Defaults applied when neither the stored row nor its analysis carries a value.
const (
	DefaultContentType = "article"
	DefaultDifficulty  = "intermediate"
)

// RawContent is a saved content row as delivered by a content store.
type RawContent struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	ExtractedText string    `json:"extracted_text"`
	MediaType     string    `json:"media_type,omitempty"` // HTTP Content-Type of the stored text
	Tags          []string  `json:"tags,omitempty"`
	ContentType   string    `json:"content_type,omitempty"`
	Difficulty    string    `json:"difficulty,omitempty"`
	QualityScore  float64   `json:"quality_score"`
	SavedAt       time.Time `json:"saved_at"`
	Shared        bool      `json:"shared,omitempty"` // visible to other users
}

// ContentAnalysis is the optional analysis produced for a content row by the
// background analysis job.
type ContentAnalysis struct {
	ContentID      string          `json:"content_id"`
	Technologies   []string        `json:"technologies,omitempty"`
	KeyConcepts    []string        `json:"key_concepts,omitempty"`
	ContentType    string          `json:"content_type,omitempty"`
	Difficulty     string          `json:"difficulty,omitempty"`
	RelevanceScore float64         `json:"relevance_score,omitempty"`
	AnalysisData   json.RawMessage `json:"analysis_data,omitempty"`
}

// Candidate is one raw row plus its optional analysis, as returned by
// FetchCandidates.
type Candidate struct {
	Content       RawContent       `json:"content"`
	Analysis      *ContentAnalysis `json:"analysis,omitempty"`
	RelevanceHint float64          `json:"relevance_hint,omitempty"`
}

// NormalizedContent is the canonical shape every ranking engine consumes.
// Construct it with NewNormalizedContent so every field has a value.
type NormalizedContent struct {
	Version       int       `json:"version"`
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	URL           string    `json:"url"`
	ExtractedText string    `json:"extracted_text"`
	Technologies  []string  `json:"technologies"`
	KeyConcepts   []string  `json:"key_concepts"`
	ContentType   string    `json:"content_type"`
	Difficulty    string    `json:"difficulty"`
	QualityScore  float64   `json:"quality_score"`
	SavedAt       time.Time `json:"saved_at"`
	RelevanceHint float64   `json:"relevance_hint"`
	UserID        string    `json:"user_id"`
}

// NewNormalizedContent fills every missing field with its default. Slices are
// never nil, quality is clamped to 0-10 and the relevance hint to 0-1.
func NewNormalizedContent(c NormalizedContent) NormalizedContent {
	c.Version = SchemaVersion
	if c.Title == "" {
		c.Title = c.URL
	}
	if c.Technologies == nil {
		c.Technologies = []string{}
	}
	if c.KeyConcepts == nil {
		c.KeyConcepts = []string{}
	}
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	if c.Difficulty == "" {
		c.Difficulty = DefaultDifficulty
	}
	c.QualityScore = clamp(c.QualityScore, 0, 10)
	c.RelevanceHint = clamp(c.RelevanceHint, 0, 1)
	return c
}

// GenerateContentID creates a deterministic ID from a URL and owner.
// The ID is the first 16 hex chars of a SHA-256 hash.
func GenerateContentID(userID, url string) string {
	hash := sha256.Sum256([]byte(userID + "|" + url))
	return hex.EncodeToString(hash[:])[:16]
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CandidateFilter narrows FetchCandidates server-side.
type CandidateFilter struct {
	Query           string // request text; stores that rank by text relevance use it for RelevanceHint
	MinQuality      float64
	ExcludePatterns []string // URL substrings of known low-value sources
	Limit           int
	IncludeGlobal   bool // also return rows other users marked as shared
}

// DefaultCandidateLimit caps a candidate batch.
const DefaultCandidateLimit = 100

// WithDefaults fills a zero limit.
func (f CandidateFilter) WithDefaults() CandidateFilter {
	if f.Limit <= 0 || f.Limit > DefaultCandidateLimit {
		f.Limit = DefaultCandidateLimit
	}
	return f
}
