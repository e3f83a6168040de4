package commands

import (
	"fmt"
	"os"

	"bggstats/internal/export"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <file.csv>",
	Short: "Count the games and rows of a csv written by fetch.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		summary, err := export.SummarizeCSV(f)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", args[0], err)
		}

		t := newTable(cmd)
		t.AppendHeader(table.Row{"", "Count"})
		t.AppendRows([]table.Row{
			{"Rows", summary.Rows},
			{"Games", summary.Games},
			{"Owned", summary.Owned},
			{"Base games", summary.BaseGames},
			{"Expansions", summary.Expansions},
			{"Unranked", summary.Unranked},
			{"Missing data", summary.MissingData},
		})
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
}
