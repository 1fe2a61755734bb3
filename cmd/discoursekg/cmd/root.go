// Package cmd implements the CLI commands for discoursekg.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/discoursekg/discoursekg/internal/config"
	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/observability"
	"github.com/discoursekg/discoursekg/internal/storage"
	"github.com/discoursekg/discoursekg/internal/version"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string

// cfg is the loaded configuration, populated by PersistentPreRunE before
// any subcommand runs.
var cfg *config.Config

// ItemsFailedError reports an invocation that finished with per-item
// failures. main maps it to exit code 1; operator errors exit with 2.
type ItemsFailedError struct {
	Failed int
	Total  int
}

func (e *ItemsFailedError) Error() string {
	return fmt.Sprintf("%d of %d items failed", e.Failed, e.Total)
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "discoursekg",
	Short:   "Discourse knowledge-graph pipeline",
	Version: version.Short(),
	Long: `discoursekg tracks public communications (speeches, interviews,
testimony) for registered speakers and advances each item through a
fixed pipeline: discover, scrape, summarize, categorize, graph.

Progress is journaled per item so interrupted or failed work is retried
on the next invocation, and categorized output is upserted into a
knowledge graph keyed by speaker, entity, topic, and sentiment.`,
	SilenceUsage: true,
	// PersistentPreRunE is set in init() to avoid initialization cycle
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	// Set PersistentPreRunE here to avoid initialization cycle
	// (initRuntime references rootCmd.PersistentFlags)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// version works without configuration
		if cmd.Name() == "version" {
			return nil
		}
		return initRuntime()
	}

	// Global flags
	// Note: These flags are NOT bound to viper. Instead, we check if they were
	// explicitly set using Changed() and only then override the config/env values.
	// This preserves the correct priority: CLI flag > env var > config > default
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("environment", "", "environment namespace for the journal and artifacts")
	rootCmd.PersistentFlags().String("data-root", "", "storage root for the journal and artifacts")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (text, json)")
}

// initRuntime loads configuration and installs the default logger. A
// .env file in the working directory, when present, seeds the process
// environment first so credentials like LLM_API_KEY need not be
// exported by hand.
//
// Priority order (highest to lowest):
//  1. CLI flags (--environment, --data-root, --log-level, --log-format) - only if explicitly provided
//  2. Environment variables (DISCOURSEKG_ENVIRONMENT, DATA_ROOT, LOG_LEVEL, ...)
//  3. Config file values
//  4. Built-in defaults
func initRuntime() error {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	// Override with CLI flags only if explicitly set by user.
	// We don't bind flags to viper because viper's flag layer would always
	// override env/config, even when using the flag's default value.
	flags := rootCmd.PersistentFlags()
	if flags.Changed("environment") {
		cfg.Environment, _ = flags.GetString("environment")
	}
	if flags.Changed("data-root") {
		cfg.DataRoot, _ = flags.GetString("data-root")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.Logging.Level = strings.ToLower(level)
	}
	if flags.Changed("log-format") {
		format, _ := flags.GetString("log-format")
		cfg.Logging.Format = strings.ToLower(format)
	}

	// Handle "warning" as an alias for "warn"
	if cfg.Logging.Level == "warning" {
		cfg.Logging.Level = "warn"
	}

	// Re-validate: flag overrides bypass the checks inside config.Load.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := observability.NewLoggerWithWriter(cfg.Logging, os.Stderr)
	observability.SetDefault(logger)

	return nil
}

// openJournal opens the sandbox and journal for the configured
// environment. Commands that only read or update journal records use
// this instead of the full pipeline stack.
func openJournal() (*storage.Sandbox, *journal.Journal, error) {
	sandbox, err := storage.NewSandbox(cfg.DataRoot)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing storage: %w", err)
	}

	j, err := journal.Open(sandbox, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("opening journal: %w", err)
	}
	j = j.WithFailedOutputLimit(cfg.Pipeline.FailedOutputLimit.Int())

	return sandbox, j, nil
}
