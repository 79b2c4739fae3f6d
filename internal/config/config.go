package config

import (
	"time"

	"github.com/mfenderov/bam-rec/pkg/models"
)

// Config holds all application configuration.
type Config struct {
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
	Database      Database      `mapstructure:"database"`
	Redis         Redis         `mapstructure:"redis"`
	Embeddings    Embeddings    `mapstructure:"embeddings"`
	LLM           LLM           `mapstructure:"llm"`
	Storage       Storage       `mapstructure:"storage"`
	Recommend     Recommend     `mapstructure:"recommend"`
	Ranking       Ranking       `mapstructure:"ranking"`
	MCP           MCP           `mapstructure:"mcp"`
	Metrics       Metrics       `mapstructure:"metrics"`
}

// Elasticsearch holds ES connection configuration.
type Elasticsearch struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Index     string   `mapstructure:"index"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// Database holds the relational content store configuration.
// Driver is "postgres" or "sqlite".
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Redis holds the result cache connection. An empty Addr selects the
// in-process cache.
type Redis struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

// Embeddings holds embeddings generation configuration.
type Embeddings struct {
	Enabled    bool   `mapstructure:"enabled"`
	SocketPath string `mapstructure:"socket_path"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	CacheSize  int    `mapstructure:"cache_size"`
}

// LLM holds configuration for intent classification and explanations.
type LLM struct {
	Enabled          bool          `mapstructure:"enabled"`
	SocketPath       string        `mapstructure:"socket_path"`
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

// Storage holds S3/MinIO storage configuration for project snapshots.
type Storage struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Recommend holds orchestrator settings.
type Recommend struct {
	DefaultEngine      string        `mapstructure:"default_engine"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheSize          int           `mapstructure:"cache_size"`
	MinQuality         float64       `mapstructure:"min_quality"`
	CandidateLimit     int           `mapstructure:"candidate_limit"`
	ExcludePatterns    []string      `mapstructure:"exclude_patterns"`
	ExplainTopN        int           `mapstructure:"explain_top_n"`
	ExplainConcurrency int           `mapstructure:"explain_concurrency"`
	ExplainTimeout     time.Duration `mapstructure:"explain_timeout"`
	IntentCacheTTL     time.Duration `mapstructure:"intent_cache_ttl"`
}

// Ranking holds scoring constants. Every value has a default and can be
// overridden per deployment.
type Ranking struct {
	Weights            models.ScoreWeights `mapstructure:"weights"`
	GoalTechWeight     float64             `mapstructure:"goal_tech_weight"`
	HighUrgencyWeight  float64             `mapstructure:"high_urgency_weight"`
	MinScore           float64             `mapstructure:"min_score"`
	BackfillScore      float64             `mapstructure:"backfill_score"`
	BackfillMax        int                 `mapstructure:"backfill_max"`
	MinResults         int                 `mapstructure:"min_results"`
	UserContentBoost   float64             `mapstructure:"user_content_boost"`
	RelevanceHintBoost float64             `mapstructure:"relevance_hint_boost"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Metrics holds the Prometheus endpoint address. Empty disables it.
type Metrics struct {
	Addr string `mapstructure:"addr"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Elasticsearch: Elasticsearch{
			Enabled:   false,
			Addresses: []string{"http://localhost:9200"},
			Index:     "bam-rec-content",
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "bam-rec.db",
		},
		Redis: Redis{
			DialTimeout: 2 * time.Second,
		},
		Embeddings: Embeddings{
			Enabled:    false, // Disabled by default, requires DMR setup
			SocketPath: "",    // User must provide their Docker socket path
			Model:      "ai/all-minilm",
			CacheSize:  10000,
		},
		LLM: LLM{
			Enabled:          false, // Disabled by default, requires DMR setup
			SocketPath:       "",
			Model:            "ai/gemma3",
			Timeout:          20 * time.Second,
			FailureThreshold: 3,
			OpenTimeout:      time.Minute,
		},
		Storage: Storage{
			Endpoint:        "localhost:9002",
			Bucket:          "bam-rec",
			AccessKeyID:     "minioadmin",
			SecretAccessKey: "minioadmin",
			UseSSL:          false,
		},
		Recommend: Recommend{
			DefaultEngine:      string(models.EngineContext),
			CacheTTL:           time.Hour,
			CacheSize:          1000,
			MinQuality:         0,
			CandidateLimit:     100,
			ExcludePatterns:    []string{"localhost", "127.0.0.1", "example.com"},
			ExplainTopN:        3,
			ExplainConcurrency: 3,
			ExplainTimeout:     10 * time.Second,
			IntentCacheTTL:     24 * time.Hour,
		},
		Ranking: Ranking{
			Weights:            models.DefaultScoreWeights(),
			GoalTechWeight:     0.40,
			HighUrgencyWeight:  0.05,
			MinScore:           25,
			BackfillScore:      15,
			BackfillMax:        2,
			MinResults:         3,
			UserContentBoost:   5,
			RelevanceHintBoost: 5,
		},
		MCP: MCP{
			Name:    "bam-rec",
			Version: "1.0.0",
		},
	}
}
