package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/discoursekg/discoursekg/internal/config"
	"github.com/discoursekg/discoursekg/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing discoursekg configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration values in YAML format.

This shows every option after applying config file, environment, and
flag overrides. Secret values are left blank. You can redirect this
output to a file to create a configuration template:

  discoursekg config dump > config.yaml

Configuration can be set via:
  - Config file (config.yaml, /etc/discoursekg/config.yaml, ~/.discoursekg/config.yaml)
  - Environment variables (DISCOURSEKG_SERVER_PORT, LLM_API_KEY, etc.)
  - Command-line flags (for some options)

Environment variables use the DISCOURSEKG_ prefix and underscores for nesting.
Example: server.port -> DISCOURSEKG_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a struct to a map, formatting durations and sizes for
// human readability. Fields tagged as secrets are blanked so the dump
// can be shared or committed.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = strings.ToLower(fieldType.Name)
		}

		if fieldType.Tag.Get("masq") == "secret" {
			result[key] = ""
			continue
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case config.ByteSize:
			result[key] = v.String()
		default:
			switch field.Kind() {
			case reflect.Struct:
				result[key] = toMap(field.Interface())
			case reflect.Slice:
				items := make([]any, 0, field.Len())
				for j := 0; j < field.Len(); j++ {
					elem := field.Index(j)
					if elem.Kind() == reflect.Struct {
						items = append(items, toMap(elem.Interface()))
					} else {
						items = append(items, elem.Interface())
					}
				}
				result[key] = items
			default:
				result[key] = field.Interface()
			}
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	// cfg was loaded by PersistentPreRunE, overrides included.
	cfgMap := toMap(cfg)

	yamlData, err := yaml.Marshal(cfgMap)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	// Print header with documentation
	fmt.Println("# discoursekg Configuration File")
	fmt.Println("# ==============================")
	fmt.Println("#")
	fmt.Println("# Values reflect the current effective configuration; secrets are blank.")
	fmt.Println("# Duration format: 30s, 10m, 1h, 30d")
	fmt.Println("# Size format: 64KB, 4MB")
	fmt.Println("#")
	fmt.Println("# Environment variable overrides:")
	fmt.Println("#   DISCOURSEKG_ENVIRONMENT, DISCOURSEKG_DATA_ROOT")
	fmt.Println("#   DISCOURSEKG_PIPELINE_FANOUT, DISCOURSEKG_PIPELINE_STAGE_TIMEOUT")
	fmt.Println("#   DISCOURSEKG_GRAPH_URL, DISCOURSEKG_GRAPH_USER, DISCOURSEKG_GRAPH_PASSWORD")
	fmt.Println("#   DISCOURSEKG_LLM_API_KEY, DISCOURSEKG_LOGGING_LEVEL")
	fmt.Println("#   etc. The unprefixed forms ENVIRONMENT, DATA_ROOT, LOG_LEVEL,")
	fmt.Println("#   GRAPH_URL, GRAPH_USER, GRAPH_PASSWORD, and LLM_API_KEY also work.")
	fmt.Println("#")
	fmt.Println("")
	fmt.Print(string(yamlData))

	return nil
}
