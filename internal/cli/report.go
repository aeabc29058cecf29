package cli

import (
	"context"
	"fmt"

	"github.com/lazypower/strategist/internal/logging"
	"github.com/lazypower/strategist/internal/report"
	"github.com/spf13/cobra"
)

var (
	reportServer string
	reportBatch  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Submit an optimization result read from stdin",
	Long:  "Reads one optimization record as JSON on stdin (or JSONL with --batch) and posts it to a running server. Always exits 0 so executors are never failed by reporting.",
	Run:   runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportServer, "server", "", "server URL (default $STRATEGIST_URL or http://127.0.0.1:37780)")
	reportCmd.Flags().BoolVar(&reportBatch, "batch", false, "read one record per line (JSONL)")
}

func runReport(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		// Reporting must not fail the executor; fall back to defaults.
		cfg.Log.Level = "warn"
	}
	log := logging.Component(newLogger(cfg), "report")

	client := report.NewClient(reportServer)
	if reportBatch {
		sum := report.SubmitAll(context.Background(), client, cmd.InOrStdin(), log)
		fmt.Fprintf(cmd.OutOrStdout(), "read %d, skipped %d, accepted %d\n", sum.Read, sum.Skipped, sum.Accepted)
		return
	}

	res := report.Submit(context.Background(), client, cmd.InOrStdin(), log)
	if res.Accepted {
		fmt.Fprintf(cmd.OutOrStdout(), "accepted %s\n", res.ID)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "not accepted")
}
