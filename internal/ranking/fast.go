package ranking

import (
	"context"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// Fast engine weights.
const (
	fastTechWeight     = 0.5
	fastSemanticWeight = 0.4
	fastQualityWeight  = 0.1
)

// FastEngine scores on technology overlap, semantic similarity and quality.
type FastEngine struct {
	sim      Similarity
	settings Settings
}

// NewFastEngine creates the fast engine.
func NewFastEngine(sim Similarity, settings Settings) *FastEngine {
	return &FastEngine{sim: sim, settings: settings}
}

// Name implements Engine.
func (e *FastEngine) Name() string { return string(models.EngineFast) }

// Rank implements Engine.
func (e *FastEngine) Rank(ctx context.Context, items []models.NormalizedContent, req models.EnhancedRequest) ([]models.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []models.RecommendationResult{}, nil
	}

	techs := req.Technologies()
	sims := similarities(ctx, e.sim, req.Request.Text(), items)

	results := make([]models.RecommendationResult, 0, len(items))
	for i, c := range items {
		tech := TechOverlap(techs, c.Technologies)
		sem := max(sims[i], 0)
		quality := c.QualityScore / 10

		score := 100 * (fastTechWeight*tech + fastSemanticWeight*sem + fastQualityWeight*quality)
		if c.UserID != "" && c.UserID == req.Request.UserID {
			score += e.settings.UserContentBoost
		}
		if req.Request.ProjectID != "" && tech > 0 {
			score += e.settings.ProjectBoost
		}
		score = min(score, 100)

		r := newResult(c, e.Name(), score, fastReason(MatchedTechnologies(techs, c.Technologies), sem, c.QualityScore), req)
		r.Metadata[MetaComponents] = map[string]float64{
			"technology": tech,
			"semantic":   sem,
			"quality":    quality,
		}
		r.Metadata[MetaSimilarity] = sims[i]
		results = append(results, r)
	}

	diversify(results, req.Request.DiversityWeight)
	return finalize(results, req.Request.MaxRecommendations, e.settings), nil
}
