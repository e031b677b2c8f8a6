package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dependify/modernize/internal/analytics"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect and manage recorded batches",
}

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batches, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")

		batches, err := store.List(status)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no batches")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREPO\tSTATUS\tACCEPTED\tEXHAUSTED\tCREATED")
		for _, b := range batches {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%s\n",
				b.ID, b.RepoRef, b.Status, b.Accepted, b.ArtifactCount, b.Exhausted, b.CreatedAt)
		}
		return w.Flush()
	},
}

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show one batch's state and result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		state, err := store.Get(args[0])
		if err != nil {
			return err
		}

		view := map[string]interface{}{"state": state}
		if result, err := store.GetResult(args[0]); err == nil {
			view["result"] = result
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	},
}

var batchesDeleteCmd = &cobra.Command{
	Use:   "delete <batch-id>",
	Short: "Delete a batch's recorded state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted batch %s\n", args[0])
		return nil
	},
}

var batchesStatsCmd = &cobra.Command{
	Use:   "stats [batch-id]",
	Short: "Show stage timings and outcome rates from the event log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		batchID := ""
		if len(args) == 1 {
			batchID = args[0]
		}

		stats, err := analytics.QueryOutcomeStats(database, batchID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "artifacts: %d  accepted: %d (%.1f%%)  exhausted: %d\n",
			stats.Artifacts, stats.Accepted, stats.AcceptancePct, stats.Exhausted)
		fmt.Fprintf(out, "avg attempts: %.1f  healed after retry: %.1f%%\n\n",
			stats.AvgAttempts, stats.HealedPct)

		durations, err := analytics.QueryStageDurations(database, batchID)
		if err != nil {
			return err
		}
		if len(durations) == 0 {
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tCOUNT\tAVG(s)\tP50(s)\tP95(s)")
		for _, d := range durations {
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.1f\n", d.Stage, d.Count, d.Avg, d.P50, d.P95)
		}
		return w.Flush()
	},
}

func init() {
	batchesListCmd.Flags().String("status", "", "Filter by status (pending, running, publishing, completed, failed, cancelled)")
	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesShowCmd)
	batchesCmd.AddCommand(batchesDeleteCmd)
	batchesCmd.AddCommand(batchesStatsCmd)
}
