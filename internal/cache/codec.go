package cache

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// EncodeResults serializes a result list for storage.
func EncodeResults(results []models.RecommendationResult) ([]byte, error) {
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("failed to encode results: %w", err)
	}
	return data, nil
}

// DecodeResults restores a stored result list and marks every entry cached.
func DecodeResults(data []byte) ([]models.RecommendationResult, error) {
	var results []models.RecommendationResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	if results == nil {
		results = []models.RecommendationResult{}
	}
	for i := range results {
		results[i].Cached = true
	}
	return results, nil
}
