package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sells-group/cardscan-cli/internal/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored processing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := runstore.NewStore(cfg.Runs.Root)
		runs, err := store.List()
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run ID", "Created", "Source", "Pages", "Rows", "Structured"})
		for _, run := range runs {
			t.AppendRow(table.Row{
				run.RunID, run.CreatedAt, run.SourceName,
				len(run.Pages), run.Rows, run.HasStructured,
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
