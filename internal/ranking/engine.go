// Package ranking scores normalized content against an enhanced request.
//
// Two engines share one contract: FastEngine does the minimum per item and
// ContextEngine weighs intent, content type and difficulty as well. Both
// apply the same threshold, backfill and ordering rules.
package ranking

import (
	"context"
	"sort"
	"strings"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// Engine ranks candidates for a request. Results are sorted by score
// descending and truncated to the request's MaxRecommendations.
type Engine interface {
	Name() string
	Rank(ctx context.Context, items []models.NormalizedContent, req models.EnhancedRequest) ([]models.RecommendationResult, error)
}

// Similarity is the batched text similarity the engines need.
type Similarity interface {
	BatchSimilarity(ctx context.Context, query string, candidates []string) []float64
}

// Metadata keys set on every result.
const (
	MetaComponents   = "components"
	MetaSimilarity   = "similarity"
	MetaReasonSource = "reason_source"
	MetaRequestID    = "request_id"

	ReasonSourceTemplate = "template"
	ReasonSourceLLM      = "llm"
)

// Settings holds the scoring constants shared by both engines.
type Settings struct {
	Weights            models.ScoreWeights
	MinScore           float64
	BackfillScore      float64
	BackfillMax        int
	MinResults         int
	UserContentBoost   float64
	RelevanceHintBoost float64
	ProjectBoost       float64
}

// DefaultSettings returns the stock thresholds and boosts.
func DefaultSettings() Settings {
	return Settings{
		Weights:            models.DefaultScoreWeights(),
		MinScore:           25,
		BackfillScore:      15,
		BackfillMax:        2,
		MinResults:         3,
		UserContentBoost:   5,
		RelevanceHintBoost: 5,
		ProjectBoost:       2,
	}
}

// maxSimilarityText bounds the text embedded per candidate.
const maxSimilarityText = 1000

// contentText is what a candidate is compared on.
func contentText(c models.NormalizedContent) string {
	var b strings.Builder
	b.WriteString(c.Title)
	if len(c.Technologies) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(c.Technologies, " "))
	}
	if len(c.KeyConcepts) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(c.KeyConcepts, " "))
	}
	if c.ExtractedText != "" {
		b.WriteString(" ")
		b.WriteString(c.ExtractedText)
	}
	s := b.String()
	if len(s) > maxSimilarityText {
		s = s[:maxSimilarityText]
	}
	return s
}

func similarities(ctx context.Context, sim Similarity, query string, items []models.NormalizedContent) []float64 {
	if sim == nil {
		return make([]float64, len(items))
	}
	texts := make([]string, len(items))
	for i, c := range items {
		texts[i] = contentText(c)
	}
	return sim.BatchSimilarity(ctx, query, texts)
}

// finalize sorts results, drops those under MinScore and truncates to limit.
// When fewer than MinResults pass, up to BackfillMax results scoring at least
// BackfillScore are kept as well.
func finalize(results []models.RecommendationResult, limit int, s Settings) []models.RecommendationResult {
	sortResults(results)

	kept := 0
	for kept < len(results) && results[kept].Score >= s.MinScore {
		kept++
	}

	if kept < s.MinResults {
		added := 0
		for kept < len(results) && added < s.BackfillMax && results[kept].Score >= s.BackfillScore {
			kept++
			added++
		}
	}

	if limit > 0 && kept > limit {
		kept = limit
	}
	return append([]models.RecommendationResult{}, results[:kept]...)
}

// diversityPenalty is the score taken per earlier result of the same content
// type at diversity weight 1.
const diversityPenalty = 10.0

// diversify lowers the score of each result by weight·diversityPenalty for
// every higher-ranked result of the same content type. finalize re-sorts.
func diversify(results []models.RecommendationResult, weight float64) {
	if weight <= 0 || len(results) < 2 {
		return
	}
	sortResults(results)
	seen := make(map[string]int)
	for i := range results {
		r := &results[i]
		if n := seen[r.ContentType]; n > 0 {
			r.Score = max(r.Score-weight*diversityPenalty*float64(n), 0)
			r.Confidence = confidence(r.Score)
		}
		seen[r.ContentType]++
	}
}

// sortResults orders by score descending, then id for stable output.
func sortResults(results []models.RecommendationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func confidence(score float64) float64 {
	return 0.3 + 0.7*score/100
}

func clamp01(x float64) float64 {
	return min(max(x, 0), 1)
}

func newResult(c models.NormalizedContent, engine string, score float64, reason string, req models.EnhancedRequest) models.RecommendationResult {
	return models.RecommendationResult{
		ID:           c.ID,
		Title:        c.Title,
		URL:          c.URL,
		Score:        score,
		Reason:       reason,
		ContentType:  c.ContentType,
		Difficulty:   c.Difficulty,
		Technologies: c.Technologies,
		KeyConcepts:  c.KeyConcepts,
		QualityScore: c.QualityScore,
		Engine:       engine,
		Confidence:   confidence(score),
		Metadata: map[string]any{
			MetaReasonSource: ReasonSourceTemplate,
			MetaRequestID:    req.RequestID,
		},
	}
}

// Registry maps engine names to engines.
type Registry struct {
	engines map[string]Engine
	def     string
}

// NewRegistry registers engines under their names. def names the engine used
// when a preference is unset or unknown.
func NewRegistry(def models.EnginePreference, engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine, len(engines)), def: string(def)}
	for _, e := range engines {
		r.engines[e.Name()] = e
	}
	return r
}

// Get returns the engine registered under name.
func (r *Registry) Get(name string) (Engine, bool) {
	e, ok := r.engines[name]
	return e, ok
}

// Default returns the default engine.
func (r *Registry) Default() Engine {
	return r.engines[r.def]
}

// Names lists registered engines in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// autoMaxTextLen is the longest title plus description auto selection
// still treats as a short request.
const autoMaxTextLen = 40

// Select picks the engine for a request. An explicit registered preference
// wins. Auto picks the fast engine only for short requests with at most one
// technology and no project. Anything else gets the default.
func (r *Registry) Select(req models.RecommendationRequest) Engine {
	pref := req.EnginePreference
	if pref == models.EngineAuto {
		pref = r.auto(req)
	}
	if e, ok := r.engines[string(pref)]; ok {
		return e
	}
	return r.Default()
}

func (r *Registry) auto(req models.RecommendationRequest) models.EnginePreference {
	text := strings.TrimSpace(strings.TrimSpace(req.Title) + " " + strings.TrimSpace(req.Description))
	if len(text) < autoMaxTextLen && len(req.TechnologyList()) <= 1 && req.ProjectID == "" {
		return models.EngineFast
	}
	return models.EngineContext
}
