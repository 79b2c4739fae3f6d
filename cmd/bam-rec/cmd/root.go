package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfenderov/bam-rec/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	cfg       config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "bam-rec",
	Short: "BAM-REC: recommendations from your saved content",
	Long: `BAM-REC ranks a user's saved articles, docs and tutorials against what
they are working on right now, and explains each pick.

Commands:
  serve      Start the MCP server for recommendations
  recommend  Rank saved content for a request from the command line
  intent     Show how a request is interpreted
  load       Load content and projects from a JSON file`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func initLogger() {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/bam-rec")
		viper.AddConfigPath(".")
	}

	// Environment variable overrides
	// BAMREC_REDIS_ADDR -> redis.addr
	viper.SetEnvPrefix("BAMREC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind nested env vars
	for _, key := range []string{
		"elasticsearch.enabled",
		"elasticsearch.addresses",
		"elasticsearch.index",
		"elasticsearch.username",
		"elasticsearch.password",
		"database.driver",
		"database.dsn",
		"redis.addr",
		"redis.password",
		"redis.db",
		"embeddings.enabled",
		"embeddings.socket_path",
		"embeddings.base_url",
		"embeddings.model",
		"llm.enabled",
		"llm.socket_path",
		"llm.base_url",
		"llm.api_key",
		"llm.model",
		"storage.enabled",
		"storage.endpoint",
		"storage.bucket",
		"storage.access_key_id",
		"storage.secret_access_key",
		"recommend.default_engine",
		"recommend.cache_ttl",
		"recommend.min_quality",
		"mcp.name",
		"mcp.version",
		"metrics.addr",
	} {
		viper.BindEnv(key, "BAMREC_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
		// No config file - use defaults + env vars
	}

	// Unmarshal into struct (merges config file with defaults)
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Handle special case: addresses as comma-separated string from env
	if addrs := os.Getenv("BAMREC_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
	if patterns := os.Getenv("BAMREC_RECOMMEND_EXCLUDE_PATTERNS"); patterns != "" {
		cfg.Recommend.ExcludePatterns = strings.Split(patterns, ",")
	}
}
