// Package config provides configuration management for discoursekg using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/discoursekg/discoursekg/pkg/bytesize"
)

// Default configuration values.
const (
	defaultEnvironment        = "test"
	defaultDataRoot           = "./data"
	defaultFanout             = 4
	defaultStageTimeout       = 10 * time.Minute
	defaultFailedOutputLimit  = 64 * bytesize.KB
	defaultFetchTimeout       = 30 * time.Second
	defaultMaxBodySize        = 4 * bytesize.MB
	defaultMinTranscriptWords = 50
	defaultMaxItemsPerSource  = 50
	defaultDateScoreThreshold = 2
	defaultTargetWords        = 1000
	defaultLLMModel           = "gemini-2.0-flash"
	defaultGraphURL           = "bolt://localhost:7687"
	defaultGraphUser          = "neo4j"
	defaultServerPort         = 8080
	defaultServerTimeout      = 30 * time.Second
	defaultShutdownTimeout    = 10 * time.Second
	defaultGraphPoolSize      = 10
)

// Config holds all configuration for the application.
type Config struct {
	// Environment namespaces the journal and artifact tree ({test, prod, ...}).
	Environment string `mapstructure:"environment"`
	// DataRoot is the storage root for the journal and artifacts.
	DataRoot string `mapstructure:"data_root"`

	Logging   LoggingConfig   `mapstructure:"logging"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Discover  DiscoverConfig  `mapstructure:"discover"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	Summarize SummarizeConfig `mapstructure:"summarize"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// PipelineConfig holds runtime scheduling configuration.
type PipelineConfig struct {
	// Fanout is the number of items processed concurrently per stage invocation.
	Fanout int `mapstructure:"fanout"`
	// StageTimeout bounds a single processor invocation for one item.
	StageTimeout time.Duration `mapstructure:"stage_timeout"`
	// FailedOutputLimit caps captured failure output stored in the journal.
	// Supports human-readable values like "64KB".
	FailedOutputLimit ByteSize `mapstructure:"failed_output_limit"`
}

// FetchConfig holds shared HTTP fetching configuration for the
// discover and scrape processors.
type FetchConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxBodySize caps a fetched response body. Supports values like "4MB".
	MaxBodySize ByteSize `mapstructure:"max_body_size"`
	UserAgent   string   `mapstructure:"user_agent"`
}

// DiscoverConfig holds discovery processor configuration.
type DiscoverConfig struct {
	// MaxItemsPerSource bounds candidates taken from a single source page or feed.
	MaxItemsPerSource int `mapstructure:"max_items_per_source"`
	// DateScoreThreshold is the minimum consensus score a publication date
	// must reach before a candidate becomes an item.
	DateScoreThreshold int `mapstructure:"date_score_threshold"`
}

// ScrapeConfig holds scrape processor configuration.
type ScrapeConfig struct {
	// MinWords rejects extractions shorter than this many words.
	MinWords int `mapstructure:"min_words"`
}

// SummarizeConfig holds summarize processor configuration.
type SummarizeConfig struct {
	// TargetWords is the word budget a summary accumulates toward.
	TargetWords int `mapstructure:"target_words"`
}

// LLMConfig holds credentials and model selection for LLM-backed processors.
type LLMConfig struct {
	APIKey string `mapstructure:"api_key" masq:"secret"`
	Model  string `mapstructure:"model"`
}

// GraphConfig holds graph store connection configuration.
type GraphConfig struct {
	// Store selects the backend: "neo4j" or "memory".
	Store    string `mapstructure:"store"`
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password" masq:"secret"`
	// Database is the target database name; empty selects the server default.
	Database string `mapstructure:"database"`
	// PoolSize bounds concurrent connections to the graph store.
	PoolSize int `mapstructure:"pool_size"`
}

// ServerConfig holds HTTP status server configuration for serve mode.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// SchedulerConfig holds cron-driven stage invocation configuration for serve mode.
type SchedulerConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Entries []ScheduleEntry `mapstructure:"entries"`
}

// ScheduleEntry describes one recurring stage invocation.
type ScheduleEntry struct {
	// Cron is a 5-field cron expression.
	Cron string `mapstructure:"cron"`
	// Stage names the pipeline stage to run.
	Stage string `mapstructure:"stage"`
	// Speaker is required when Stage is "discover".
	Speaker string `mapstructure:"speaker"`
	// Lookback sets the discover date range to [now-Lookback, now].
	// Supports extended units like "30d" and "2w".
	Lookback Duration `mapstructure:"lookback"`
}

// Load reads configuration from file and environment variables.
// Precedence: explicit flags (bound by the CLI) > environment > file > defaults.
// Environment variables are prefixed with DISCOURSEKG_ and use underscores for
// nesting (DISCOURSEKG_PIPELINE_FANOUT=8). The operational variables
// ENVIRONMENT, DATA_ROOT, LOG_LEVEL, GRAPH_URL, GRAPH_USER, GRAPH_PASSWORD,
// and LLM_API_KEY are also honored without the prefix.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/discoursekg")
		v.AddConfigPath("$HOME/.discoursekg")
	}

	v.SetEnvPrefix("DISCOURSEKG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindAliases(v)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks())); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// decodeHooks returns the mapstructure hooks used to unmarshal config values,
// adding TextUnmarshaler support for the Duration and ByteSize types.
func decodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
}

// bindAliases maps the unprefixed operational environment variables onto
// their config keys. The prefixed form wins when both are set.
func bindAliases(v *viper.Viper) {
	aliases := map[string][]string{
		"environment":    {"DISCOURSEKG_ENVIRONMENT", "ENVIRONMENT"},
		"data_root":      {"DISCOURSEKG_DATA_ROOT", "DATA_ROOT"},
		"logging.level":  {"DISCOURSEKG_LOGGING_LEVEL", "LOG_LEVEL"},
		"graph.url":      {"DISCOURSEKG_GRAPH_URL", "GRAPH_URL"},
		"graph.user":     {"DISCOURSEKG_GRAPH_USER", "GRAPH_USER"},
		"graph.password": {"DISCOURSEKG_GRAPH_PASSWORD", "GRAPH_PASSWORD"},
		"llm.api_key":    {"DISCOURSEKG_LLM_API_KEY", "LLM_API_KEY"},
	}
	for key, envs := range aliases {
		// BindEnv never fails with a non-empty key list.
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", defaultEnvironment)
	v.SetDefault("data_root", defaultDataRoot)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("pipeline.fanout", defaultFanout)
	v.SetDefault("pipeline.stage_timeout", defaultStageTimeout)
	v.SetDefault("pipeline.failed_output_limit", int64(defaultFailedOutputLimit))

	v.SetDefault("fetch.timeout", defaultFetchTimeout)
	v.SetDefault("fetch.max_body_size", int64(defaultMaxBodySize))
	v.SetDefault("fetch.user_agent", "")

	v.SetDefault("discover.max_items_per_source", defaultMaxItemsPerSource)
	v.SetDefault("discover.date_score_threshold", defaultDateScoreThreshold)

	v.SetDefault("scrape.min_words", defaultMinTranscriptWords)

	v.SetDefault("summarize.target_words", defaultTargetWords)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", defaultLLMModel)

	v.SetDefault("graph.store", "neo4j")
	v.SetDefault("graph.url", defaultGraphURL)
	v.SetDefault("graph.user", defaultGraphUser)
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")
	v.SetDefault("graph.pool_size", defaultGraphPoolSize)

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.entries", []map[string]any{})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if strings.ContainsAny(c.Environment, "/\\ ") {
		return fmt.Errorf("environment must not contain path separators or spaces")
	}
	if c.DataRoot == "" {
		return fmt.Errorf("data_root is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Pipeline.Fanout < 1 {
		return fmt.Errorf("pipeline.fanout must be at least 1")
	}
	if c.Pipeline.StageTimeout <= 0 {
		return fmt.Errorf("pipeline.stage_timeout must be positive")
	}
	if c.Pipeline.FailedOutputLimit < 0 {
		return fmt.Errorf("pipeline.failed_output_limit must not be negative")
	}

	if c.Discover.MaxItemsPerSource < 1 {
		return fmt.Errorf("discover.max_items_per_source must be at least 1")
	}
	if c.Summarize.TargetWords < 1 {
		return fmt.Errorf("summarize.target_words must be at least 1")
	}

	switch c.Graph.Store {
	case "neo4j", "memory":
	default:
		return fmt.Errorf("graph.store must be one of: neo4j, memory")
	}

	const maxPort = 65535
	if c.Server.Port < 1 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 1 and %d", maxPort)
	}

	return nil
}

// JournalPath returns the journal file path for the configured environment.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataRoot, "state", fmt.Sprintf("pipeline_state_%s.jsonl", c.Environment))
}

// EnvironmentRoot returns the artifact tree root for the configured environment.
func (c *Config) EnvironmentRoot() string {
	return filepath.Join(c.DataRoot, c.Environment)
}

// SpeakersPath returns the speaker registry path for the configured environment.
func (c *Config) SpeakersPath() string {
	return filepath.Join(c.EnvironmentRoot(), "speakers.json")
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
