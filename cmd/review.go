package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/cardscan-cli/internal/runstore"
)

var reviewThreshold float64

var reviewCmd = &cobra.Command{
	Use:   "review <run-id>",
	Short: "List low-confidence fields for a run, worst first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewThreshold <= 0 {
			reviewThreshold = cfg.Review.ConfidenceThreshold
		}
		store := runstore.NewStore(cfg.Runs.Root)
		entries, err := store.LowConfidence(args[0], reviewThreshold)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("No fields below confidence %.2f for run %s\n", reviewThreshold, args[0])
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Page", "Image", "Field", "Confidence", "Value"})
		for _, entry := range entries {
			t.AppendRow(table.Row{
				entry.PageIndex, entry.Image, entry.Field,
				fmt.Sprintf("%.2f", entry.Confidence),
				fmt.Sprintf("%v", entry.Value),
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	reviewCmd.Flags().Float64Var(&reviewThreshold, "threshold", 0, "confidence threshold (default from config)")
	rootCmd.AddCommand(reviewCmd)
}
