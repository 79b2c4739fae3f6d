// Package recommend orchestrates a recommendation request: intent
// resolution, cache lookup, candidate retrieval, ranking and explanation.
package recommend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mfenderov/bam-rec/internal/cache"
	"github.com/mfenderov/bam-rec/internal/intent"
	"github.com/mfenderov/bam-rec/internal/normalize"
	"github.com/mfenderov/bam-rec/internal/ranking"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// ErrInvalidRequest wraps request validation failures.
var ErrInvalidRequest = errors.New("invalid recommendation request")

// ContentStore delivers candidate rows for a user.
type ContentStore interface {
	FetchCandidates(ctx context.Context, userID string, filter models.CandidateFilter) ([]models.Candidate, error)
}

// IntentResolver turns request text into an intent. It never fails.
type IntentResolver interface {
	Resolve(ctx context.Context, in intent.Input) models.Intent
}

// Config holds orchestration settings.
type Config struct {
	CacheTTL          time.Duration
	MinQuality        float64
	CandidateLimit    int
	ExcludePatterns   []string
	Weights           models.ScoreWeights
	GoalTechWeight    float64
	HighUrgencyWeight float64
}

// Deps are the collaborators of a Service. Cache, Enhancer and Registerer
// may be nil.
type Deps struct {
	Store      ContentStore
	Normalizer *normalize.Normalizer
	Resolver   IntentResolver
	Engines    *ranking.Registry
	Enhancer   *ranking.Enhancer
	Cache      cache.Cache
	Registerer prometheus.Registerer
	Logger     *slog.Logger
}

// PerformanceMetrics summarizes cache effectiveness and engine health.
type PerformanceMetrics struct {
	CacheHits    int64                               `json:"cache_hits"`
	CacheMisses  int64                               `json:"cache_misses"`
	CacheHitRate float64                             `json:"cache_hit_rate"`
	Engines      map[string]models.EnginePerformance `json:"engines"`
}

// Service answers recommendation requests. It is safe for concurrent use.
type Service struct {
	config     Config
	store      ContentStore
	normalizer *normalize.Normalizer
	resolver   IntentResolver
	engines    *ranking.Registry
	enhancer   *ranking.Enhancer
	cache      *cache.BestEffort
	validate   *validator.Validate
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64

	mu   sync.Mutex
	perf map[string]*models.EnginePerformance
}

// NewService creates a Service.
func NewService(config Config, deps Deps) *Service {
	if config.CacheTTL <= 0 {
		config.CacheTTL = time.Hour
	}
	if config.Weights == (models.ScoreWeights{}) {
		config.Weights = models.DefaultScoreWeights()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = normalize.New(nil, logger)
	}
	resolver := deps.Resolver
	if resolver == nil {
		resolver = intent.NewResolver(logger, intent.NewRuleStrategy())
	}

	return &Service{
		config:     config,
		store:      deps.Store,
		normalizer: normalizer,
		resolver:   resolver,
		engines:    deps.Engines,
		enhancer:   deps.Enhancer,
		cache:      cache.NewBestEffort(deps.Cache, logger),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    NewMetrics(deps.Registerer),
		logger:     logger.With("component", "recommend"),
		now:        time.Now,
		perf:       make(map[string]*models.EnginePerformance),
	}
}

// Validate checks the request contract.
func (s *Service) Validate(req models.RecommendationRequest) error {
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// GetRecommendations returns ranked results for req. It never fails: every
// error, including a panic, yields an empty list.
func (s *Service) GetRecommendations(ctx context.Context, req models.RecommendationRequest) (results []models.RecommendationResult) {
	start := s.now()
	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "user_id", req.UserID)

	outcome := outcomeError
	defer func() {
		if p := recover(); p != nil {
			logger.Error("recommendation panicked", "panic", p, "stack", string(debug.Stack()))
			outcome = outcomePanic
			results = []models.RecommendationResult{}
		}
		s.metrics.requests.WithLabelValues(outcome).Inc()
		s.metrics.requestDuration.WithLabelValues(outcome).Observe(s.now().Sub(start).Seconds())
	}()

	if err := s.Validate(req); err != nil {
		logger.Error("rejecting request", "error", err)
		outcome = outcomeInvalid
		return []models.RecommendationResult{}
	}

	resolved := s.resolver.Resolve(ctx, intent.Input{
		Text:         req.Text(),
		UserID:       req.UserID,
		ProjectID:    req.ProjectID,
		Technologies: req.TechnologyList(),
	})

	key := CacheKey(req, resolved.ContentHash)
	if cached, ok := s.lookup(ctx, key); ok {
		logger.Debug("serving cached recommendations", "count", len(cached))
		outcome = outcomeHit
		return cached
	}

	if s.store == nil || s.engines == nil {
		logger.Error("service is missing a content store or engines")
		return []models.RecommendationResult{}
	}

	candidates, err := s.store.FetchCandidates(ctx, req.UserID, s.candidateFilter(req))
	if err != nil {
		logger.Warn("content store unavailable", "error", err)
		return []models.RecommendationResult{}
	}
	items := s.normalizer.NormalizeAll(candidates)

	enhanced := s.enhance(req, resolved, requestID)
	engine := s.engines.Select(req)

	results, err = s.rank(ctx, engine, items, enhanced)
	if err != nil {
		logger.Warn("ranking failed", "engine", engine.Name(), "error", err)
		return []models.RecommendationResult{}
	}

	s.enhancer.Enhance(ctx, results, items, enhanced)
	s.save(ctx, key, results, req.CacheTTL)

	outcome = outcomeMiss
	logger.Info("recommendations ready",
		"engine", engine.Name(),
		"intent_source", resolved.Source,
		"goal", resolved.Goal,
		"candidates", len(items),
		"results", len(results),
		"duration", s.now().Sub(start),
	)
	return results
}

// GetPerformanceMetrics reports cache and engine counters since start.
func (s *Service) GetPerformanceMetrics() PerformanceMetrics {
	hits, misses := s.hits.Load(), s.misses.Load()
	m := PerformanceMetrics{
		CacheHits:   hits,
		CacheMisses: misses,
		Engines:     make(map[string]models.EnginePerformance),
	}
	if total := hits + misses; total > 0 {
		m.CacheHitRate = float64(hits) / float64(total)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, p := range s.perf {
		m.Engines[name] = *p
	}
	return m
}

// CacheKey derives the cache key from the request and the resolved intent.
// A non-zero diversity weight changes the ranking and is appended.
func CacheKey(req models.RecommendationRequest, intentHash string) string {
	title := req.Title
	if r := []rune(title); len(r) > 50 {
		title = string(r[:50])
	}
	parts := []string{
		req.UserID,
		title,
		strings.Join(req.TechnologyList(), ","),
		strconv.Itoa(req.MaxRecommendations),
		string(req.EnginePreference),
		intentHash,
	}
	if req.DiversityWeight > 0 {
		parts = append(parts, "div="+strconv.FormatFloat(req.DiversityWeight, 'g', -1, 64))
	}
	raw := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(raw))
	return "rec:" + hex.EncodeToString(sum[:])
}

func (s *Service) lookup(ctx context.Context, key string) ([]models.RecommendationResult, bool) {
	data, ok := s.cache.Get(ctx, key)
	if ok {
		results, err := cache.DecodeResults(data)
		if err == nil {
			s.hits.Add(1)
			s.metrics.cacheLookups.WithLabelValues("hit").Inc()
			return results, true
		}
		s.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
	}
	s.misses.Add(1)
	s.metrics.cacheLookups.WithLabelValues("miss").Inc()
	return nil, false
}

func (s *Service) save(ctx context.Context, key string, results []models.RecommendationResult, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.config.CacheTTL
	}
	data, err := cache.EncodeResults(results)
	if err != nil {
		s.logger.Warn("failed to encode results for cache", "error", err)
		return
	}
	s.cache.Set(ctx, key, data, ttl)
}

func (s *Service) candidateFilter(req models.RecommendationRequest) models.CandidateFilter {
	minQuality := s.config.MinQuality
	if req.QualityThreshold > 0 {
		minQuality = req.QualityThreshold
	}
	return models.CandidateFilter{
		Query:           req.Text(),
		MinQuality:      minQuality,
		ExcludePatterns: s.config.ExcludePatterns,
		Limit:           s.config.CandidateLimit,
		IncludeGlobal:   req.IncludeGlobalContent,
	}.WithDefaults()
}

// enhance attaches the intent and derives per-signal weights from it.
func (s *Service) enhance(req models.RecommendationRequest, in models.Intent, requestID string) models.EnhancedRequest {
	w := s.config.Weights
	if (in.Goal == models.GoalBuild || in.Goal == models.GoalOptimize) && s.config.GoalTechWeight > 0 {
		w.Technology = s.config.GoalTechWeight
	}
	if in.Urgency == models.UrgencyHigh && s.config.HighUrgencyWeight > 0 {
		w.Urgency = s.config.HighUrgencyWeight
	}
	return models.EnhancedRequest{
		Request:   req,
		Intent:    &in,
		Weights:   w,
		RequestID: requestID,
	}
}

func (s *Service) rank(ctx context.Context, engine ranking.Engine, items []models.NormalizedContent, req models.EnhancedRequest) ([]models.RecommendationResult, error) {
	start := s.now()
	results, err := engine.Rank(ctx, items, req)
	elapsed := s.now().Sub(start)

	s.metrics.engineDuration.WithLabelValues(engine.Name()).Observe(elapsed.Seconds())
	if err != nil {
		s.metrics.engineErrors.WithLabelValues(engine.Name()).Inc()
	}
	s.recordEngine(engine.Name(), elapsed, err)
	return results, err
}

func (s *Service) recordEngine(name string, elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.perf[name]
	if !ok {
		p = &models.EnginePerformance{}
		s.perf[name] = p
	}
	p.TotalRequests++
	if err != nil {
		p.ErrorCount++
	}
	p.AvgResponseTime += (elapsed - p.AvgResponseTime) / time.Duration(p.TotalRequests)
	p.SuccessRate = float64(p.TotalRequests-p.ErrorCount) / float64(p.TotalRequests)
	p.LastUsed = s.now()
}
