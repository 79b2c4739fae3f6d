package models

import (
	"strings"
	"time"
)

// EnginePreference names the ranking strategy a caller asks for.
type EnginePreference string

const (
	EngineUnset   EnginePreference = ""
	EngineFast    EnginePreference = "fast"
	EngineContext EnginePreference = "context"
	EngineAuto    EnginePreference = "auto"
)

// RecommendationRequest is what a user asks for. It is treated as an
// immutable value: the orchestrator never modifies it after receipt.
type RecommendationRequest struct {
	UserID               string           `json:"user_id" validate:"required"`
	Title                string           `json:"title" validate:"required_without=Description"`
	Description          string           `json:"description,omitempty"`
	Technologies         string           `json:"technologies,omitempty"` // comma-separated
	UserInterests        string           `json:"user_interests,omitempty"`
	ProjectID            string           `json:"project_id,omitempty"`
	MaxRecommendations   int              `json:"max_recommendations" validate:"gt=0"`
	EnginePreference     EnginePreference `json:"engine_preference,omitempty" validate:"omitempty,oneof=fast context auto"`
	DiversityWeight      float64          `json:"diversity_weight,omitempty" validate:"gte=0,lte=1"`
	QualityThreshold     float64          `json:"quality_threshold,omitempty" validate:"gte=0,lte=10"`
	IncludeGlobalContent bool             `json:"include_global_content,omitempty"`
	CacheTTL             time.Duration    `json:"cache_ttl,omitempty"`
}

// TechnologyList splits the comma-separated technologies into a lower-cased,
// de-duplicated list, preserving the caller's order.
func (r RecommendationRequest) TechnologyList() []string {
	return NormalizeTechnologies(strings.Split(r.Technologies, ","))
}

// Text returns the combined free text of the request used for similarity and
// intent analysis.
func (r RecommendationRequest) Text() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{r.Title, r.Description, r.Technologies, r.UserInterests} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// NormalizeTechnologies trims, lower-cases and de-duplicates technology names.
// Empty entries are dropped; first occurrence wins.
func NormalizeTechnologies(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
