package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/output"
	"github.com/cairnhq/cairn/internal/reconcile"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "List tombstones confirmed dead over the monitoring window",
	Long: `Check cross-references registered tombstones against invocation events
in the external store. A tombstone is confirmed dead when it has been
active for at least the monitoring window and has never produced an
event.

Pipe the JSON output to a findings file for "cairn remove":

  cairn check --format json --output findings.json`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("project", "", "Project name (default from config)")
	checkCmd.Flags().Int("days", 0, "Monitoring window in days (default from config)")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString("project")
	project = resolveProject(project, cfg)

	days := cfg.Monitor.Days
	if cmd.Flags().Changed("days") {
		days, _ = cmd.Flags().GetInt("days")
	}
	if err := validateDays(days); err != nil {
		return err
	}

	store := newStore(cfg)
	if store == nil {
		return fmt.Errorf("%s", storeCredentialsHint)
	}

	dead, err := reconcile.New(store).ConfirmedDead(context.Background(), project, days)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(dead) == 0 {
		if formatter.Format() == output.FormatJSON {
			return formatter.Output([]struct{}{})
		}
		formatter.Success("No confirmed dead code after a %d-day window", days)
		return nil
	}

	var rows [][]string
	for _, rec := range dead {
		rows = append(rows, []string{
			rec.TombstoneID,
			rec.FunctionName,
			fmt.Sprintf("%s:%d", rec.FilePath, rec.LineNumber),
			rec.RegisteredAt.Format("2006-01-02"),
			rec.Reason,
		})
	}

	table := output.NewTable(
		fmt.Sprintf("Confirmed Dead (%d-day window)", days),
		[]string{"Tombstone", "Function", "Location", "Registered", "Reason"},
		rows, dead)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if formatter.Format() == output.FormatText {
		fmt.Fprintf(formatter.Writer(), "%d tombstones never triggered; remove with: cairn remove --input findings.json\n", len(dead))
	}
	return nil
}
