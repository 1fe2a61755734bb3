package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/discoursekg/discoursekg/internal/models"
	"github.com/discoursekg/discoursekg/internal/pipeline/core"
)

// dateLayout is the CLI date format for --from and --to.
const dateLayout = "2006-01-02"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run pipeline stages over ready items",
	Long: `Run one pipeline stage (or every stage in sequence) over the items
whose next stage matches.

Each invocation reads the journal, fans work out over the ready items,
and records per-item success or failure back to the journal. Failed
items stay eligible for retry on the next invocation.`,
}

var runDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover new communications for a speaker",
	RunE:  runDiscover,
}

var runAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run discover and every processing stage in sequence",
	RunE:  runAll,
}

// stageShorts gives each single-stage subcommand its help line.
var stageShorts = map[models.Stage]string{
	models.StageScrape:     "Extract transcripts for items ready to scrape",
	models.StageSummarize:  "Summarize scraped transcripts toward the word budget",
	models.StageCategorize: "Extract entities, topics, and subject sentiment",
	models.StageGraph:      "Upsert categorized items into the knowledge graph",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.PersistentFlags().Int("fanout", 0, "items processed concurrently (default from config)")
	runCmd.PersistentFlags().Int("timeout", 0, "per-item timeout in seconds (default from config)")

	for _, c := range []*cobra.Command{runDiscoverCmd, runAllCmd} {
		c.Flags().String("speaker", "", "registry key of the speaker to discover")
		c.Flags().String("from", "", "start date YYYY-MM-DD (default 30 days back)")
		c.Flags().String("to", "", "end date YYYY-MM-DD, inclusive (default today)")
		_ = c.MarkFlagRequired("speaker")
	}

	runCmd.AddCommand(runDiscoverCmd)
	for _, stage := range models.StageSequence[1:] {
		runCmd.AddCommand(stageCommand(stage))
	}
	runCmd.AddCommand(runAllCmd)
}

// stageCommand builds the subcommand running a single processing stage.
func stageCommand(stage models.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: stageShorts[stage],
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSingleStage(cmd, stage)
		},
	}
}

func runSingleStage(cmd *cobra.Command, stage models.Stage) error {
	applyRunOverrides(cmd.Flags())

	stack, err := newPipelineStack()
	if err != nil {
		return err
	}
	defer closeStack(stack)

	processor, err := stack.newProcessor(stage)
	if err != nil {
		return err
	}

	report, err := stack.runtime.RunStage(cmd.Context(), processor)
	if err != nil {
		return err
	}

	printReport(report)
	return reportError(report)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	applyRunOverrides(cmd.Flags())

	req, err := discoverRequest(cmd)
	if err != nil {
		return err
	}

	stack, err := newPipelineStack()
	if err != nil {
		return err
	}
	defer closeStack(stack)

	report, err := stack.runtime.RunDiscover(cmd.Context(), stack.newDiscoverer(), req)
	if err != nil {
		return err
	}

	printReport(report)
	return reportError(report)
}

func runAll(cmd *cobra.Command, _ []string) error {
	applyRunOverrides(cmd.Flags())

	req, err := discoverRequest(cmd)
	if err != nil {
		return err
	}

	stack, err := newPipelineStack()
	if err != nil {
		return err
	}
	defer closeStack(stack)

	var failed, total int

	report, err := stack.runtime.RunDiscover(cmd.Context(), stack.newDiscoverer(), req)
	if err != nil {
		return err
	}
	printReport(report)
	failed += report.Failed
	total += report.ItemsTotal

	for _, stage := range models.StageSequence[1:] {
		processor, err := stack.newProcessor(stage)
		if err != nil {
			return err
		}

		report, err := stack.runtime.RunStage(cmd.Context(), processor)
		if err != nil {
			return err
		}
		printReport(report)
		failed += report.Failed
		total += report.ItemsTotal
	}

	if failed > 0 {
		return &ItemsFailedError{Failed: failed, Total: total}
	}
	return nil
}

// applyRunOverrides folds the run flags into cfg when explicitly set.
func applyRunOverrides(flags *pflag.FlagSet) {
	if flags.Changed("fanout") {
		n, _ := flags.GetInt("fanout")
		cfg.Pipeline.Fanout = n
	}
	if flags.Changed("timeout") {
		secs, _ := flags.GetInt("timeout")
		cfg.Pipeline.StageTimeout = time.Duration(secs) * time.Second
	}
}

// discoverRequest builds the discover request from flags. Dates are
// compared at day granularity, both ends inclusive.
func discoverRequest(cmd *cobra.Command) (core.DiscoverRequest, error) {
	speaker, _ := cmd.Flags().GetString("speaker")

	now := time.Now().UTC()
	req := core.DiscoverRequest{
		Speaker: speaker,
		Start:   now.AddDate(0, 0, -30),
		End:     now,
	}

	if s, _ := cmd.Flags().GetString("from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return req, fmt.Errorf("invalid --from date %q (want YYYY-MM-DD)", s)
		}
		req.Start = t
	}
	if s, _ := cmd.Flags().GetString("to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return req, fmt.Errorf("invalid --to date %q (want YYYY-MM-DD)", s)
		}
		req.End = t
	}
	if req.End.Before(req.Start) {
		return req, fmt.Errorf("--to %s is before --from %s",
			req.End.Format(dateLayout), req.Start.Format(dateLayout))
	}

	return req, nil
}

// printReport writes a human-readable invocation summary to stdout.
func printReport(report *core.StageReport) {
	if report.ItemsTotal == 0 {
		fmt.Printf("%s: no items ready\n", report.Stage)
		return
	}

	fmt.Printf("%s: %d items, %d succeeded, %d failed",
		report.Stage, report.ItemsTotal, report.Succeeded, report.Failed)
	if report.Skipped > 0 {
		fmt.Printf(", %d skipped", report.Skipped)
	}
	fmt.Printf(" (%s)\n", report.Elapsed.Round(time.Millisecond))

	for _, failure := range report.Failures {
		fmt.Printf("  failed %s: %s\n", failure.ID, failure.Error)
	}
}

// reportError converts per-item failures into the exit-code-1 error.
func reportError(report *core.StageReport) error {
	if report.Failed > 0 {
		return &ItemsFailedError{Failed: report.Failed, Total: report.ItemsTotal}
	}
	return nil
}

// closeStack releases stack connections after an invocation.
func closeStack(stack *pipelineStack) {
	if err := stack.Close(context.Background()); err != nil {
		stack.logger.Warn("closing graph store", "error", err.Error())
	}
}
