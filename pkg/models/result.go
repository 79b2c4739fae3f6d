package models

import "time"

// RecommendationResult is one ranked, explained recommendation.
type RecommendationResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	Score        float64        `json:"score"` // 0-100
	Reason       string         `json:"reason"`
	ContentType  string         `json:"content_type"`
	Difficulty   string         `json:"difficulty"`
	Technologies []string       `json:"technologies"`
	KeyConcepts  []string       `json:"key_concepts"`
	QualityScore float64        `json:"quality_score"`
	Engine       string         `json:"engine"`
	Confidence   float64        `json:"confidence"` // 0-1
	Metadata     map[string]any `json:"metadata,omitempty"`
	Cached       bool           `json:"cached"`
}

// EnginePerformance holds running counters for one ranking engine.
type EnginePerformance struct {
	AvgResponseTime time.Duration `json:"avg_response_time"`
	SuccessRate     float64       `json:"success_rate"`
	ErrorCount      int64         `json:"error_count"`
	TotalRequests   int64         `json:"total_requests"`
	LastUsed        time.Time     `json:"last_used"`
}
