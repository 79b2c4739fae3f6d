package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Intent goals.
const (
	GoalLearn    = "learn"
	GoalBuild    = "build"
	GoalOptimize = "optimize"
	GoalDebug    = "debug"
	GoalResearch = "research"
)

// Learning stages.
const (
	StageBeginner     = "beginner"
	StageIntermediate = "intermediate"
	StageAdvanced     = "advanced"
)

// Urgency levels and time constraints.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"

	TimeTight    = "tight"
	TimeModerate = "moderate"
	TimeFlexible = "flexible"
)

// Intent sources, recorded so callers can tell which resolver layer answered.
const (
	IntentSourceLLM     = "llm"
	IntentSourceProject = "project"
	IntentSourceRules   = "rules"
)

// Intent is the structured interpretation of a free-text request.
type Intent struct {
	Goal                 string    `json:"goal"`
	LearningStage        string    `json:"learning_stage"`
	ProjectType          string    `json:"project_type"`
	Urgency              string    `json:"urgency"`
	SpecificTechnologies []string  `json:"specific_technologies"`
	ComplexityPreference string    `json:"complexity_preference"`
	TimeConstraint       string    `json:"time_constraint"`
	FocusAreas           []string  `json:"focus_areas"`
	ContentHash          string    `json:"content_hash"`
	Source               string    `json:"source"`
	AnalyzedAt           time.Time `json:"analyzed_at"`
}

// Normalize fills missing fields so every resolver layer yields the same shape.
func (i Intent) Normalize() Intent {
	i.Goal = strings.ToLower(strings.TrimSpace(i.Goal))
	if i.Goal == "" {
		i.Goal = GoalLearn
	}
	i.LearningStage = strings.ToLower(strings.TrimSpace(i.LearningStage))
	if i.LearningStage == "" {
		i.LearningStage = StageIntermediate
	}
	if i.ProjectType == "" {
		i.ProjectType = "general"
	}
	i.Urgency = strings.ToLower(strings.TrimSpace(i.Urgency))
	if i.Urgency == "" {
		i.Urgency = UrgencyMedium
	}
	i.SpecificTechnologies = NormalizeTechnologies(i.SpecificTechnologies)
	if i.ComplexityPreference == "" {
		i.ComplexityPreference = "moderate"
	}
	if i.TimeConstraint == "" {
		i.TimeConstraint = TimeModerate
	}
	i.FocusAreas = NormalizeTechnologies(i.FocusAreas)
	return i
}

// StoredIntent is an intent analysis attached to a project. It is reusable
// while its ContentHash matches the current input and it has not expired.
type StoredIntent struct {
	ProjectID string    `json:"project_id"`
	Intent    Intent    `json:"intent"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Applicable reports whether the stored analysis can serve input with the
// given hash at time now.
func (s StoredIntent) Applicable(hash string, now time.Time) bool {
	return s.Intent.ContentHash != "" && s.Intent.ContentHash == hash && now.Before(s.ExpiresAt)
}

// Project is the stored context of a user project.
type Project struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
}

// ContentHash returns a stable hash of normalized text: lower-cased with
// whitespace collapsed. It keys caches and validates stored analyses.
func ContentHash(text string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:16]
}

// ScoreWeights are the per-signal weights of the context-aware engine.
type ScoreWeights struct {
	Technology  float64 `json:"technology" mapstructure:"technology"`
	Semantic    float64 `json:"semantic" mapstructure:"semantic"`
	ContentType float64 `json:"content_type" mapstructure:"content_type"`
	Difficulty  float64 `json:"difficulty" mapstructure:"difficulty"`
	Quality     float64 `json:"quality" mapstructure:"quality"`
	Intent      float64 `json:"intent" mapstructure:"intent"`
	Urgency     float64 `json:"urgency" mapstructure:"urgency"`
}

// DefaultScoreWeights returns the context-aware engine defaults.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{
		Technology:  0.35,
		Semantic:    0.25,
		ContentType: 0.15,
		Difficulty:  0.10,
		Quality:     0.05,
		Intent:      0.10,
	}
}

// EnhancedRequest carries the original request together with its resolved
// intent and derived weights.
type EnhancedRequest struct {
	Request   RecommendationRequest
	Intent    *Intent
	Weights   ScoreWeights
	RequestID string
}

// Technologies returns request technologies merged with intent technologies.
func (e EnhancedRequest) Technologies() []string {
	techs := e.Request.TechnologyList()
	if e.Intent != nil {
		techs = NormalizeTechnologies(append(techs, e.Intent.SpecificTechnologies...))
	}
	return techs
}
