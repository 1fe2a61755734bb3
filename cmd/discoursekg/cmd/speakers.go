package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discoursekg/discoursekg/internal/speakers"
	"github.com/discoursekg/discoursekg/internal/storage"
)

var speakersCmd = &cobra.Command{
	Use:   "speakers",
	Short: "Inspect the speaker registry",
}

var speakersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered speakers",
	RunE:  runSpeakersList,
}

var speakersShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show one registry entry as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpeakersShow,
}

func init() {
	rootCmd.AddCommand(speakersCmd)
	speakersCmd.AddCommand(speakersListCmd)
	speakersCmd.AddCommand(speakersShowCmd)
}

// openRegistry loads the speaker registry for the configured environment.
func openRegistry() (*speakers.Registry, error) {
	sandbox, err := storage.NewSandbox(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	registry, err := speakers.Load(sandbox, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("loading speaker registry: %w", err)
	}
	return registry, nil
}

func runSpeakersList(_ *cobra.Command, _ []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	entries := registry.List()
	if len(entries) == 0 {
		fmt.Println("no speakers registered")
		return nil
	}

	fmt.Printf("%-32s %-12s %-8s %s\n", "KEY", "INDUSTRY", "SOURCES", "ORGANIZATION")
	for _, entry := range entries {
		fmt.Printf("%-32s %-12s %-8d %s\n",
			entry.Key,
			entry.Speaker.Industry,
			len(entry.Speaker.Sources),
			entry.Speaker.Organization)
	}
	return nil
}

func runSpeakersShow(_ *cobra.Command, args []string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	entry, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entry.Speaker, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling speaker: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
