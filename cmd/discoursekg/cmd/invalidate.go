package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Exclude an item from further processing",
	Long: `Mark a journal item INVALIDATED so no stage picks it up again.

The record and its artifacts are kept for inspection; only eligibility
is withdrawn. Use this for items that fail repeatedly on broken source
material.`,
	RunE: runInvalidate,
}

func init() {
	rootCmd.AddCommand(invalidateCmd)

	invalidateCmd.Flags().String("id", "", "item id to invalidate")
	_ = invalidateCmd.MarkFlagRequired("id")
}

func runInvalidate(cmd *cobra.Command, _ []string) error {
	id, _ := cmd.Flags().GetString("id")

	_, journ, err := openJournal()
	if err != nil {
		return err
	}

	if err := journ.Invalidate(id); err != nil {
		return fmt.Errorf("invalidating %s: %w", id, err)
	}

	fmt.Printf("invalidated %s\n", id)
	return nil
}
