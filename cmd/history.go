package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"soakq/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List past soak runs, or show one in full",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := resolveHistoryPath()
		if err != nil {
			return err
		}
		store, err := storage.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		}

		items, err := store.List()
		if err != nil {
			return err
		}
		if historyLimit > 0 && len(items) > historyLimit {
			items = items[:historyLimit]
		}
		writeHistory(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many runs (0 for all)")
}

func writeHistory(w io.Writer, items []storage.HistoryItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No runs recorded yet.")
		return
	}

	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("ID", "When", "Target", "Reqs", "P95 (ms)", "Degradation", "Leaks", "Thresholds", "Verdict")
	for _, it := range items {
		passed := "pass"
		if !it.Summary.Passed {
			passed = "FAIL"
		}
		t.AddLine(
			shortID(it.ID),
			humanize.Time(it.Timestamp),
			it.Config.BaseURL,
			humanize.Comma(int64(it.Summary.TotalRequests)),
			fmt.Sprintf("%.1f", it.Summary.P95LatencyMs),
			fmt.Sprintf("%.1f%%", it.Summary.DegradationPct),
			it.Summary.LeakFlags,
			passed,
			it.Summary.Verdict,
		)
	}
	t.Print()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
