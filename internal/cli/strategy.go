package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/spf13/cobra"
)

var strategyCmd = &cobra.Command{
	Use:   "strategy",
	Short: "Inspect combined application strategies",
}

var strategyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every application strategy",
	RunE:  runStrategyList,
}

var strategyShowCmd = &cobra.Command{
	Use:   "show [appID]",
	Short: "Print one combined strategy as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrategyShow,
}

func init() {
	strategyCmd.AddCommand(strategyListCmd)
	strategyCmd.AddCommand(strategyShowCmd)
}

func runStrategyList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Offline: learned layer comes from the local cache only.
	eng, err := newEngine(context.Background(), cfg, db, learned.Nop{}, newLogger(cfg))
	if err != nil {
		return err
	}

	all := eng.All()
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tNAME\tTIERS\tLEARNED\tPERSONAL\tVERSION")
	for _, id := range ids {
		c := all[id]
		fmt.Fprintf(w, "%s\t%s\t%d\t%v\t%v\t%s\n",
			id, c.DisplayName, len(c.Strategies), c.Metadata.HasLearned, c.Metadata.HasPersonal, c.Metadata.Version)
	}
	return w.Flush()
}

func runStrategyShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := newEngine(context.Background(), cfg, db, learned.Nop{}, newLogger(cfg))
	if err != nil {
		return err
	}
	c := eng.GetStrategyForApp(args[0])
	if c == nil {
		return fmt.Errorf("no strategy for %s", args[0])
	}
	return printJSON(cmd, c)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseTier accepts an empty string as "unset".
func parseTier(s string) (strategy.RiskTier, error) {
	if s == "" {
		return "", nil
	}
	return strategy.ParseRiskTier(s)
}
