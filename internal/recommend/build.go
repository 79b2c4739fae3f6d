package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mfenderov/bam-rec/internal/cache"
	"github.com/mfenderov/bam-rec/internal/config"
	"github.com/mfenderov/bam-rec/internal/elasticsearch"
	"github.com/mfenderov/bam-rec/internal/embeddings"
	"github.com/mfenderov/bam-rec/internal/ingestion"
	"github.com/mfenderov/bam-rec/internal/intent"
	"github.com/mfenderov/bam-rec/internal/llm"
	"github.com/mfenderov/bam-rec/internal/normalize"
	"github.com/mfenderov/bam-rec/internal/processor"
	"github.com/mfenderov/bam-rec/internal/ranking"
	"github.com/mfenderov/bam-rec/internal/similarity"
	"github.com/mfenderov/bam-rec/internal/sqlstore"
	"github.com/mfenderov/bam-rec/internal/storage"
	"github.com/mfenderov/bam-rec/pkg/models"
)

// App is a Service with the backends it was built from.
type App struct {
	Service  *Service
	Resolver *intent.Resolver
	Content  ContentReader

	// SaveContent and SaveProject write to whichever store serves reads.
	SaveContent ingestion.ContentSink
	SaveProject ingestion.ProjectSink
	Refresh     func(ctx context.Context) error

	closers []func() error
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("failed to close backend", "error", err)
		}
	}
}

// ContentReader looks up one content row by id. A missing row is nil, nil.
type ContentReader interface {
	GetContent(ctx context.Context, id string) (*models.RawContent, error)
}

// Loader returns an ingestion engine writing to the App's stores.
func (a *App) Loader() *ingestion.Engine {
	return ingestion.New(a.SaveContent, a.SaveProject, a.Refresh)
}

// Build assembles the Service from configuration. Optional backends that are
// unreachable at startup are logged and replaced by their fallbacks.
func Build(ctx context.Context, cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{}

	// The SQL store holds content unless Elasticsearch does, and projects
	// unless S3 does.
	var sqlStore *sqlstore.Store
	if !cfg.Elasticsearch.Enabled || !cfg.Storage.Enabled {
		s, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		app.closers = append(app.closers, s.Close)
		sqlStore = s
	}

	var content ContentStore
	if sqlStore != nil {
		content = sqlStore
		app.Content = sqlStore
		app.SaveContent = sqlStore.SaveContent
	}
	if cfg.Elasticsearch.Enabled {
		es, err := elasticsearch.New(elasticsearch.Config{
			Addresses: cfg.Elasticsearch.Addresses,
			Index:     cfg.Elasticsearch.Index,
			Username:  cfg.Elasticsearch.Username,
			Password:  cfg.Elasticsearch.Password,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		if !es.Ping(ctx) {
			logger.Warn("elasticsearch not reachable, requests will return empty results until it is", "addresses", cfg.Elasticsearch.Addresses)
		} else if err := es.CreateIndex(ctx); err != nil {
			logger.Warn("failed to ensure content index", "error", err)
		}
		content = es
		app.Content = es
		app.SaveContent = es.IndexContent
		app.Refresh = es.Refresh
	}

	var projects intent.ProjectStore
	if sqlStore != nil {
		projects = sqlStore
		app.SaveProject = sqlStore.SaveProject
	}
	if cfg.Storage.Enabled {
		s3, err := storage.New(storage.Config{
			Endpoint:        cfg.Storage.Endpoint,
			Bucket:          cfg.Storage.Bucket,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			logger.Warn("project bucket not available", "bucket", s3.Bucket(), "error", err)
		}
		projects = s3
		app.SaveProject = s3.SaveProject
	}

	var resultCache cache.Cache
	if cfg.Redis.Addr != "" {
		r := cache.NewRedis(cache.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err := r.Ping(ctx); err != nil {
			logger.Warn("redis not reachable, cache lookups will miss", "addr", cfg.Redis.Addr, "error", err)
		}
		app.closers = append(app.closers, r.Close)
		resultCache = r
	} else {
		m, err := cache.NewMemory(cfg.Recommend.CacheSize)
		if err != nil {
			app.Close()
			return nil, err
		}
		resultCache = m
	}

	sim := similarity.New(embeddingFactory(cfg.Embeddings),
		similarity.WithLogger(logger),
		similarity.WithCacheSize(cfg.Embeddings.CacheSize),
	)

	strategies := []intent.Strategy{}
	var explainer ranking.Explainer
	if cfg.LLM.Enabled {
		client, err := llm.New(llm.Config{
			SocketPath:       cfg.LLM.SocketPath,
			BaseURL:          cfg.LLM.BaseURL,
			APIKey:           cfg.LLM.APIKey,
			Model:            cfg.LLM.Model,
			Timeout:          cfg.LLM.Timeout,
			FailureThreshold: cfg.LLM.FailureThreshold,
			OpenTimeout:      cfg.LLM.OpenTimeout,
		})
		if err != nil {
			app.Close()
			return nil, err
		}
		strategies = append(strategies, intent.NewLLMStrategy(client, projects, cfg.Recommend.IntentCacheTTL, cfg.Recommend.CacheSize, logger))
		explainer = client
		logger.Info("LLM enabled", "model", cfg.LLM.Model)
	}
	if projects != nil {
		strategies = append(strategies, intent.NewProjectStrategy(projects))
	}
	strategies = append(strategies, intent.NewRuleStrategy())
	resolver := intent.NewResolver(logger, strategies...)
	app.Resolver = resolver

	settings := RankingSettings(cfg.Ranking)
	engines := ranking.NewRegistry(
		models.EnginePreference(cfg.Recommend.DefaultEngine),
		ranking.NewFastEngine(sim, settings),
		ranking.NewContextEngine(sim, settings),
	)
	if _, ok := engines.Get(cfg.Recommend.DefaultEngine); !ok {
		app.Close()
		return nil, fmt.Errorf("unknown default engine %q (have %s)", cfg.Recommend.DefaultEngine, strings.Join(engines.Names(), ", "))
	}

	enhancer := ranking.NewEnhancer(explainer, ranking.EnhancerConfig{
		TopN:        cfg.Recommend.ExplainTopN,
		Concurrency: cfg.Recommend.ExplainConcurrency,
		Timeout:     cfg.Recommend.ExplainTimeout,
	}, logger)

	app.Service = NewService(Config{
		CacheTTL:          cfg.Recommend.CacheTTL,
		MinQuality:        cfg.Recommend.MinQuality,
		CandidateLimit:    cfg.Recommend.CandidateLimit,
		ExcludePatterns:   cfg.Recommend.ExcludePatterns,
		Weights:           cfg.Ranking.Weights,
		GoalTechWeight:    cfg.Ranking.GoalTechWeight,
		HighUrgencyWeight: cfg.Ranking.HighUrgencyWeight,
	}, Deps{
		Store:      content,
		Normalizer: normalize.New(processor.New(), logger),
		Resolver:   resolver,
		Engines:    engines,
		Enhancer:   enhancer,
		Cache:      resultCache,
		Registerer: reg,
		Logger:     logger,
	})
	return app, nil
}

// RankingSettings maps ranking configuration onto engine settings.
func RankingSettings(c config.Ranking) ranking.Settings {
	s := ranking.DefaultSettings()
	if c.Weights != (models.ScoreWeights{}) {
		s.Weights = c.Weights
	}
	s.MinScore = c.MinScore
	s.BackfillScore = c.BackfillScore
	s.BackfillMax = c.BackfillMax
	s.MinResults = c.MinResults
	s.UserContentBoost = c.UserContentBoost
	s.RelevanceHintBoost = c.RelevanceHintBoost
	return s
}

// embeddingFactory returns nil when embeddings are disabled, which puts the
// similarity provider on hashed vectors.
func embeddingFactory(c config.Embeddings) similarity.EncoderFactory {
	if !c.Enabled {
		return nil
	}
	return func() (similarity.Encoder, error) {
		if dims := embeddings.Dimensions(c.Model); dims != similarity.Dimension {
			return nil, fmt.Errorf("%w: model %s has %d dimensions", similarity.ErrDimensionMismatch, c.Model, dims)
		}
		client, err := embeddings.New(embeddings.Config{
			SocketPath: c.SocketPath,
			BaseURL:    c.BaseURL,
			Model:      c.Model,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("embeddings enabled", "model", c.Model)
		return client, nil
	}
}

// buildTimeout bounds startup checks against optional backends.
const buildTimeout = 5 * time.Second

// BuildWithTimeout runs Build with a bounded context for startup checks.
func BuildWithTimeout(cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()
	return Build(ctx, cfg, reg, logger)
}
