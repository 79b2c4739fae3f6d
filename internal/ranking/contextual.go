package ranking

import (
	"context"
	"slices"
	"strings"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// goalContentTypes lists content types that serve each goal, best first.
var goalContentTypes = map[string][]string{
	models.GoalLearn:    {"tutorial", "guide", "course", "documentation", "article"},
	models.GoalBuild:    {"tutorial", "example", "project", "guide", "documentation"},
	models.GoalOptimize: {"best_practice", "guide", "article", "reference"},
	models.GoalDebug:    {"troubleshooting", "reference", "documentation", "qa", "article"},
	models.GoalResearch: {"research", "comparison", "article", "reference", "documentation"},
}

// difficultyFit scores content difficulty against the learner's stage.
var difficultyFit = map[string]map[string]float64{
	models.StageBeginner:     {"beginner": 1.0, "intermediate": 0.6, "advanced": 0.2},
	models.StageIntermediate: {"beginner": 0.6, "intermediate": 1.0, "advanced": 0.7},
	models.StageAdvanced:     {"beginner": 0.3, "intermediate": 0.7, "advanced": 1.0},
}

// goalTerms are words in content that signal a goal.
var goalTerms = map[string][]string{
	models.GoalLearn:    {"learn", "tutorial", "guide", "introduction", "basics", "getting started"},
	models.GoalBuild:    {"build", "create", "implement", "project", "example", "step by step"},
	models.GoalOptimize: {"optimize", "performance", "best practice", "efficient", "faster", "benchmark"},
	models.GoalDebug:    {"debug", "error", "fix", "troubleshoot", "issue", "pitfall"},
	models.GoalResearch: {"comparison", "versus", "vs", "analysis", "research", "trade-off"},
}

// projectTypeTerms are words in content that signal a project type.
var projectTypeTerms = map[string][]string{
	"web_app": {"web", "frontend", "browser", "website"},
	"api":     {"api", "rest", "endpoint", "graphql", "backend"},
	"mobile":  {"mobile", "ios", "android"},
	"data":    {"data", "analytics", "pipeline", "machine learning"},
	"cli":     {"cli", "command line", "terminal"},
	"devops":  {"deploy", "docker", "kubernetes", "infrastructure", "ci/cd"},
}

// practicalTypes answer urgent requests best.
var practicalTypes = []string{"tutorial", "example", "guide", "troubleshooting", "reference"}

// Intent multipliers.
const (
	optimizeBestPracticeBoost = 1.2
	tightTutorialBoost        = 1.15
	beginnerLearnBoost        = 1.1
	buildExampleBoost         = 1.1
)

const neutralScore = 0.5

// maxAlignmentText bounds the text searched for intent terms.
const maxAlignmentText = 2000

// ContextEngine weighs technology, semantic similarity, content type,
// difficulty, quality and, when known, intent alignment and urgency.
type ContextEngine struct {
	sim      Similarity
	settings Settings
}

// NewContextEngine creates the context-aware engine.
func NewContextEngine(sim Similarity, settings Settings) *ContextEngine {
	return &ContextEngine{sim: sim, settings: settings}
}

// Name implements Engine.
func (e *ContextEngine) Name() string { return string(models.EngineContext) }

// components are the per-signal scores of one candidate, each in [0, 1].
type components struct {
	Technology  float64
	Semantic    float64
	ContentType float64
	Difficulty  float64
	Quality     float64
	Intent      float64
	Urgency     float64

	projectHit bool
}

func (c components) asMap(withIntent, withUrgency bool) map[string]float64 {
	m := map[string]float64{
		"technology":   c.Technology,
		"semantic":     c.Semantic,
		"content_type": c.ContentType,
		"difficulty":   c.Difficulty,
		"quality":      c.Quality,
	}
	if withIntent {
		m["intent"] = c.Intent
	}
	if withUrgency {
		m["urgency"] = c.Urgency
	}
	return m
}

// Rank implements Engine.
func (e *ContextEngine) Rank(ctx context.Context, items []models.NormalizedContent, req models.EnhancedRequest) ([]models.RecommendationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return []models.RecommendationResult{}, nil
	}

	w := req.Weights
	if w == (models.ScoreWeights{}) {
		w = e.settings.Weights
	}
	intent := req.Intent
	withIntent := intent != nil && w.Intent > 0
	withUrgency := w.Urgency > 0

	techs := req.Technologies()
	sims := similarities(ctx, e.sim, req.Request.Text(), items)

	results := make([]models.RecommendationResult, 0, len(items))
	for i, c := range items {
		comp := components{
			Technology:  TechOverlap(techs, c.Technologies),
			Semantic:    max(sims[i], 0),
			ContentType: contentTypeFit(intent, c.ContentType),
			Difficulty:  difficultyAlignment(intent, c.Difficulty),
			Quality:     clamp01(c.QualityScore / 10),
		}
		if withIntent {
			comp.Intent, comp.projectHit = intentAlignment(intent, c)
		}
		if withUrgency && slices.Contains(practicalTypes, c.ContentType) {
			comp.Urgency = 1
		}

		sum := w.Technology*comp.Technology + w.Semantic*comp.Semantic +
			w.ContentType*comp.ContentType + w.Difficulty*comp.Difficulty + w.Quality*comp.Quality
		total := w.Technology + w.Semantic + w.ContentType + w.Difficulty + w.Quality
		if withIntent {
			sum += w.Intent * comp.Intent
			total += w.Intent
		}
		if withUrgency {
			sum += w.Urgency * comp.Urgency
			total += w.Urgency
		}

		var score float64
		if total > 0 {
			score = sum / total * 100
		}
		score *= intentMultiplier(intent, c)
		if c.UserID != "" && c.UserID == req.Request.UserID {
			score += e.settings.UserContentBoost
		}
		score += e.settings.RelevanceHintBoost * c.RelevanceHint
		score = min(score, 100)

		reason := contextReason(reasonInput{
			score:      score,
			matched:    MatchedTechnologies(techs, c.Technologies),
			comp:       comp,
			intent:     intent,
			content:    c,
			projectHit: comp.projectHit,
		})

		r := newResult(c, e.Name(), score, reason, req)
		r.Metadata[MetaComponents] = comp.asMap(withIntent, withUrgency)
		r.Metadata[MetaSimilarity] = sims[i]
		results = append(results, r)
	}

	diversify(results, req.Request.DiversityWeight)
	return finalize(results, req.Request.MaxRecommendations, e.settings), nil
}

func contentTypeFit(intent *models.Intent, contentType string) float64 {
	if intent == nil {
		return neutralScore
	}
	preferred := goalContentTypes[intent.Goal]
	switch idx := slices.Index(preferred, contentType); {
	case idx == 0:
		return 1.0
	case idx > 0:
		return 0.8
	default:
		return 0.3
	}
}

func difficultyAlignment(intent *models.Intent, difficulty string) float64 {
	if intent == nil {
		return neutralScore
	}
	fit, ok := difficultyFit[intent.LearningStage][difficulty]
	if !ok {
		return neutralScore
	}
	return fit
}

// intentAlignment averages the intent signals found in the content: goal
// terms, the share of focus areas mentioned, and project-type terms.
func intentAlignment(intent *models.Intent, c models.NormalizedContent) (float64, bool) {
	text := alignmentText(c)

	var sum float64
	signals := 0

	signals++
	if containsAny(text, goalTerms[intent.Goal]) {
		sum++
	}

	if len(intent.FocusAreas) > 0 {
		signals++
		hit := 0
		for _, f := range intent.FocusAreas {
			if strings.Contains(text, f) {
				hit++
			}
		}
		sum += float64(hit) / float64(len(intent.FocusAreas))
	}

	projectHit := false
	if terms, ok := projectTypeTerms[intent.ProjectType]; ok {
		signals++
		if containsAny(text, terms) {
			projectHit = true
			sum++
		}
	}

	return sum / float64(signals), projectHit
}

func intentMultiplier(intent *models.Intent, c models.NormalizedContent) float64 {
	if intent == nil {
		return 1
	}
	m := 1.0
	if intent.Goal == models.GoalOptimize && c.ContentType == "best_practice" {
		m *= optimizeBestPracticeBoost
	}
	if intent.TimeConstraint == models.TimeTight && c.ContentType == "tutorial" {
		m *= tightTutorialBoost
	}
	if intent.Goal == models.GoalLearn && intent.LearningStage == models.StageBeginner && c.Difficulty == "beginner" {
		m *= beginnerLearnBoost
	}
	if intent.Goal == models.GoalBuild && (c.ContentType == "project" || c.ContentType == "example") {
		m *= buildExampleBoost
	}
	return m
}

func alignmentText(c models.NormalizedContent) string {
	text := c.ExtractedText
	if len(text) > maxAlignmentText {
		text = text[:maxAlignmentText]
	}
	return strings.ToLower(c.Title + " " + strings.Join(c.KeyConcepts, " ") + " " + text)
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
