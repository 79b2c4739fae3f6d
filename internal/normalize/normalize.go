// Package normalize maps stored content rows and their optional analyses into
// the single record shape the ranking engines consume.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mfenderov/bam-rec/internal/processor"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// ErrMissingID is returned for rows that cannot be identified.
var ErrMissingID = errors.New("content row has no id")

// analysisData is the subset of the free-form analysis JSON we read.
// Technologies may be a list or a comma-separated string.
type analysisData struct {
	Technologies   json.RawMessage `json:"technologies"`
	KeyConcepts    json.RawMessage `json:"key_concepts"`
	ContentType    string          `json:"content_type"`
	Difficulty     string          `json:"difficulty"`
	RelevanceScore float64         `json:"relevance_score"`
}

// Normalizer builds NormalizedContent records.
type Normalizer struct {
	processor *processor.Processor
	logger    *slog.Logger
}

// New creates a Normalizer. A nil logger uses slog.Default().
func New(p *processor.Processor, logger *slog.Logger) *Normalizer {
	if p == nil {
		p = processor.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{processor: p, logger: logger.With("component", "normalize")}
}

// Normalize converts one candidate. A malformed analysis degrades to a minimal
// record built from the raw row alone; only a missing id is an error.
func (n *Normalizer) Normalize(c models.Candidate) (models.NormalizedContent, error) {
	raw := c.Content
	if strings.TrimSpace(raw.ID) == "" {
		return models.NormalizedContent{}, ErrMissingID
	}

	full, err := n.build(c)
	if err != nil {
		n.logger.Warn("falling back to minimal content record", "id", raw.ID, "error", err)
		return minimal(raw, c.RelevanceHint), nil
	}
	return full, nil
}

// NormalizeAll converts every candidate, skipping rows that cannot be identified.
func (n *Normalizer) NormalizeAll(candidates []models.Candidate) []models.NormalizedContent {
	out := make([]models.NormalizedContent, 0, len(candidates))
	for _, c := range candidates {
		nc, err := n.Normalize(c)
		if err != nil {
			n.logger.Warn("skipping content row", "url", c.Content.URL, "error", err)
			continue
		}
		out = append(out, nc)
	}
	return out
}

func (n *Normalizer) build(c models.Candidate) (models.NormalizedContent, error) {
	raw := c.Content

	text, htmlTitle, err := n.processor.Clean(raw.MediaType, raw.ExtractedText)
	if err != nil {
		return models.NormalizedContent{}, fmt.Errorf("failed to convert html: %w", err)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = htmlTitle
	}
	if title == "" {
		title = markdownTitle(text)
	}

	techs := append([]string{}, raw.Tags...)
	var concepts []string
	contentType := raw.ContentType
	difficulty := raw.Difficulty
	hint := c.RelevanceHint

	if a := c.Analysis; a != nil {
		techs = append(techs, a.Technologies...)
		concepts = append(concepts, a.KeyConcepts...)
		contentType = firstNonEmpty(contentType, a.ContentType)
		difficulty = firstNonEmpty(difficulty, a.Difficulty)
		hint = max(hint, a.RelevanceScore)

		if len(a.AnalysisData) > 0 && string(a.AnalysisData) != "null" {
			var data analysisData
			if err := json.Unmarshal(a.AnalysisData, &data); err != nil {
				return models.NormalizedContent{}, fmt.Errorf("failed to parse analysis data: %w", err)
			}
			extra, err := stringList(data.Technologies)
			if err != nil {
				return models.NormalizedContent{}, fmt.Errorf("analysis technologies: %w", err)
			}
			techs = append(techs, extra...)
			extra, err = stringList(data.KeyConcepts)
			if err != nil {
				return models.NormalizedContent{}, fmt.Errorf("analysis key concepts: %w", err)
			}
			concepts = append(concepts, extra...)
			contentType = firstNonEmpty(contentType, data.ContentType)
			difficulty = firstNonEmpty(difficulty, data.Difficulty)
			hint = max(hint, data.RelevanceScore)
		}
	}

	return models.NewNormalizedContent(models.NormalizedContent{
		ID:            raw.ID,
		Title:         title,
		URL:           raw.URL,
		ExtractedText: text,
		Technologies:  models.NormalizeTechnologies(techs),
		KeyConcepts:   dedupe(concepts),
		ContentType:   strings.ToLower(strings.TrimSpace(contentType)),
		Difficulty:    strings.ToLower(strings.TrimSpace(difficulty)),
		QualityScore:  raw.QualityScore,
		SavedAt:       raw.SavedAt,
		RelevanceHint: hint,
		UserID:        raw.UserID,
	}), nil
}

func minimal(raw models.RawContent, hint float64) models.NormalizedContent {
	return models.NewNormalizedContent(models.NormalizedContent{
		ID:            raw.ID,
		Title:         strings.TrimSpace(raw.Title),
		URL:           raw.URL,
		ExtractedText: raw.ExtractedText,
		Technologies:  models.NormalizeTechnologies(raw.Tags),
		QualityScore:  raw.QualityScore,
		SavedAt:       raw.SavedAt,
		RelevanceHint: hint,
		UserID:        raw.UserID,
	})
}

// stringList decodes a JSON list of strings or a comma-separated string.
func stringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("want list or string, got %s", string(raw))
	}
	return strings.Split(s, ","), nil
}

// markdownTitle returns the first H1 heading of markdown content.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
