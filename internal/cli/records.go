package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var recordsLimit int

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Show recently accepted learning records",
	RunE:  runRecords,
}

func init() {
	recordsCmd.Flags().IntVarP(&recordsLimit, "limit", "n", 20, "maximum number of records")
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.RecentRecords(context.Background(), recordsLimit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No records yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tAPP\tSTRATEGY\tFREED MB\tSPEED %\tSCORE")
	for _, r := range recs {
		rec := r.Record
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.1f\t%.2f\n",
			time.UnixMilli(r.CreatedAt).Format(time.DateTime),
			rec.AppID, rec.Strategy, rec.MemoryFreedMB, rec.SpeedGainPercent, rec.EffectivenessScore)
	}
	return w.Flush()
}
