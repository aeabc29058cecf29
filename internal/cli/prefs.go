package cli

import (
	"context"
	"fmt"

	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/spf13/cobra"
)

var (
	prefsTier      string
	prefsTolerance string
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage personal strategy preferences",
}

var prefsSetCmd = &cobra.Command{
	Use:   "set [appID]",
	Short: "Set the preferred tier and risk tolerance for an application",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrefsSet,
}

func init() {
	prefsSetCmd.Flags().StringVar(&prefsTier, "tier", "", "preferred tier (conservative, balanced, aggressive)")
	prefsSetCmd.Flags().StringVar(&prefsTolerance, "tolerance", "", "risk tolerance (low, medium, high)")
	prefsCmd.AddCommand(prefsSetCmd)
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	appID := args[0]
	tier, err := parseTier(prefsTier)
	if err != nil {
		return err
	}
	tolerance := strategy.RiskTolerance(prefsTolerance)
	if tolerance != "" && !tolerance.Valid() {
		return fmt.Errorf("unknown risk tolerance %q", prefsTolerance)
	}
	if tier == "" && tolerance == "" {
		return fmt.Errorf("nothing to set: pass --tier and/or --tolerance")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	eng, err := newEngine(ctx, cfg, db, learned.Nop{}, newLogger(cfg))
	if err != nil {
		return err
	}
	if eng.GetStrategyForApp(appID) == nil {
		return fmt.Errorf("no strategy for %s", appID)
	}

	eng.UpdatePersonalPreference(ctx, appID, strategy.Preference{
		PreferredTier: tier,
		RiskTolerance: tolerance,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "preference saved for %s\n", appID)
	return nil
}
