package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/discoursekg/discoursekg/internal/archive"
	"github.com/discoursekg/discoursekg/internal/journal"
	"github.com/discoursekg/discoursekg/internal/storage"
	"github.com/discoursekg/discoursekg/pkg/bytesize"
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Snapshot the journal and artifact tree to a .tar.xz",
	Long: `Write a compressed snapshot of the configured environment: its
journal file and its artifact tree, with temporary files skipped.

The archive is written outside the data root by default; a path inside
it is safe too, the archiver excludes its own output.`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().String("output", "",
		"output path (default discoursekg_<environment>_<timestamp>.tar.xz)")
}

func runArchive(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = fmt.Sprintf("discoursekg_%s_%s.tar.xz",
			cfg.Environment, time.Now().UTC().Format("20060102T150405Z"))
	}

	sandbox, err := storage.NewSandbox(cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	archiver := archive.NewArchiver(sandbox).WithLogger(slog.Default())
	summary, err := archiver.Create(cmd.Context(), output,
		journal.RelPath(cfg.Environment), cfg.Environment)
	if err != nil {
		return err
	}

	fmt.Printf("archived %d files to %s (%s data, %s compressed, %s)\n",
		summary.Files,
		summary.OutputPath,
		bytesize.Format(bytesize.Size(summary.DataSize)),
		bytesize.Format(bytesize.Size(summary.ArchiveSize)),
		summary.Elapsed.Round(time.Millisecond))
	return nil
}
