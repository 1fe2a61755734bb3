package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discoursekg/discoursekg/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show journal counts by next stage",
	Long: `Show how many journal items are waiting at each pipeline stage.

With --stage the counts cover only items whose next stage matches. With
--failed every item holding a recorded error is listed. The command
exits 1 when any counted item is in the FAILED state.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("stage", "", "only count items whose next stage matches")
	statusCmd.Flags().Bool("failed", false, "list every item with a recorded error")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	_, journ, err := openJournal()
	if err != nil {
		return err
	}

	states := journ.All()

	if s, _ := cmd.Flags().GetString("stage"); s != "" {
		stage, err := models.ParseStage(s)
		if err != nil {
			return err
		}
		var filtered []*models.PipelineState
		for _, state := range states {
			if state.NextStage != nil && *state.NextStage == stage {
				filtered = append(filtered, state)
			}
		}
		states = filtered
	}

	byStage := make(map[string]int)
	byStatus := make(map[models.StageStatus]int)
	for _, state := range states {
		byStage[nextStageName(state)]++
		byStatus[state.Status]++
	}

	fmt.Printf("environment: %s\n", cfg.Environment)
	fmt.Printf("items:       %d\n", len(states))

	fmt.Println("\nnext stage:")
	for _, stage := range models.StageSequence {
		if n := byStage[stage.String()]; n > 0 {
			fmt.Printf("  %-12s %d\n", stage, n)
		}
	}
	if n := byStage["done"]; n > 0 {
		fmt.Printf("  %-12s %d\n", "done", n)
	}

	fmt.Println("\nstatus:")
	for _, status := range []models.StageStatus{
		models.StatusPending,
		models.StatusInProgress,
		models.StatusCompleted,
		models.StatusFailed,
		models.StatusInvalidated,
	} {
		if n := byStatus[status]; n > 0 {
			fmt.Printf("  %-12s %d\n", status, n)
		}
	}

	if listFailed, _ := cmd.Flags().GetBool("failed"); listFailed {
		fmt.Println("\nfailed items:")
		for _, state := range states {
			if state.ErrorMessage == "" {
				continue
			}
			fmt.Printf("  %s  [%s, retries %d] %s\n",
				state.ID, nextStageName(state), state.RetryCount, state.ErrorMessage)
		}
	}

	if n := byStatus[models.StatusFailed]; n > 0 {
		return &ItemsFailedError{Failed: n, Total: len(states)}
	}
	return nil
}

// nextStageName renders an item's next stage, with "done" for items
// that completed the whole sequence.
func nextStageName(state *models.PipelineState) string {
	if state.NextStage == nil {
		return "done"
	}
	return state.NextStage.String()
}
