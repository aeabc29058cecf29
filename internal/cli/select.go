package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/lazypower/strategist/internal/learned"
	"github.com/lazypower/strategist/internal/strategy"
	"github.com/spf13/cobra"
)

var (
	selOS        string
	selOSVersion string
	selMemoryGB  float64
	selAge       string
	selUptime    time.Duration
	selPressure  string
	selLoad      string
	selActivity  string
	selForce     string
	selApp       string
	selUpgraded  bool
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "Pick and narrow a strategy for a machine",
	Long:  "Runs the contextual selector for the described machine and prints the selected strategy. With --app, selects against that application's combined strategy.",
	RunE:  runSelect,
}

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "List the optimization levels available to this machine and plan",
	RunE:  runLevels,
}

func init() {
	for _, c := range []*cobra.Command{selectCmd, levelsCmd} {
		c.Flags().StringVar(&selOS, "os", "Universal", "OS family (Sonoma, Ventura, Monterey, ...)")
		c.Flags().StringVar(&selOSVersion, "os-version", "", "OS version string")
		c.Flags().Float64Var(&selMemoryGB, "memory", 0, "installed memory in GB")
	}
	selectCmd.Flags().StringVar(&selAge, "age", "", "system age (fresh, established, mature)")
	selectCmd.Flags().DurationVar(&selUptime, "uptime", 0, "system uptime")
	selectCmd.Flags().StringVar(&selPressure, "pressure", "", "memory pressure (normal, warn, critical)")
	selectCmd.Flags().StringVar(&selLoad, "load", "", "system load (low, medium, high)")
	selectCmd.Flags().StringVar(&selActivity, "activity", "", "user activity (active, idle, away)")
	selectCmd.Flags().StringVar(&selForce, "force", "", "force a tier")
	selectCmd.Flags().StringVar(&selApp, "app", "", "select against an application strategy")
	selectCmd.Flags().BoolVar(&selUpgraded, "upgraded", false, "the OS was recently upgraded (starts a conservative period)")
}

func machineFromFlags() strategy.MachineProfile {
	return strategy.MachineProfile{
		OSName:          selOS,
		OSVersion:       selOSVersion,
		SystemAge:       selAge,
		MemoryGB:        selMemoryGB,
		UptimeSeconds:   int64(selUptime / time.Second),
		UpgradeDetected: selUpgraded,
	}
}

func runSelect(cmd *cobra.Command, args []string) error {
	force, err := parseTier(selForce)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	sel, err := newSelector(cfg, log)
	if err != nil {
		return err
	}

	machine := machineFromFlags()
	if machine.ConservativePeriod, err = db.MachinePeriod(ctx, time.Now(), machine.UpgradeDetected, cfg.Selector.ConservativeDays); err != nil {
		return err
	}
	rc := strategy.RuntimeContext{
		MemoryPressure: selPressure,
		SystemLoad:     selLoad,
		UserActivity:   selActivity,
		ForceStrategy:  force,
	}

	var out *strategy.Selected
	if selApp != "" {
		eng, err := newEngine(ctx, cfg, db, learned.Nop{}, log)
		if err != nil {
			return err
		}
		c := eng.GetStrategyForApp(selApp)
		if c == nil {
			return fmt.Errorf("no strategy for %s", selApp)
		}
		out, err = sel.SelectForApp(c, machine, rc)
		if err != nil {
			return err
		}
	} else {
		out, err = sel.Select(machine, rc)
		if err != nil {
			return err
		}
	}
	return printJSON(cmd, out)
}

func runLevels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sel, err := newSelector(cfg, newLogger(cfg))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tNAME\tAVAILABLE")
	for _, l := range sel.AvailableLevels(machineFromFlags()) {
		avail := "yes"
		if l.RequiresUpgrade {
			avail = "upgrade required"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Level, l.Name, avail)
	}
	return w.Flush()
}
