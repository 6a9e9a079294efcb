package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ashureev/lunchbot/internal/app"
)

var (
	historyDays  int
	historyLimit int
	statsDays    int
)

// historyCmd lists recorded choices.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded lunch choices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			records, err := a.Store.Records(ctx, userID, historyDays, historyLimit)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history for %s in the last %d days\n", userID, historyDays)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tMENU\tAREA\tCATEGORY")
			for _, rec := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.EatenOn, rec.MenuName, rec.Area, rec.Category)
			}
			return w.Flush()
		})
	},
}

// statsCmd summarizes recorded choices by area and category.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize recorded lunch choices",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			stats, err := a.Store.Stats(ctx, userID, statsDays)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, stats)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d lunches in the last %d days\n", userID, stats.Total, statsDays)
			printCounts(cmd, "By area", stats.ByArea)
			printCounts(cmd, "By category", stats.ByCategory)
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyDays, "days", 30, "Look back this many days")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum records to print")
	statsCmd.Flags().IntVar(&statsDays, "days", 30, "Look back this many days")
}

func printCounts(cmd *cobra.Command, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-12s %d\n", k, counts[k])
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
