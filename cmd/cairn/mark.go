package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/analyzer"
	"github.com/cairnhq/cairn/internal/injector"
	"github.com/cairnhq/cairn/internal/output"
	"github.com/cairnhq/cairn/internal/progress"
	"github.com/cairnhq/cairn/pkg/tombstone"
)

var markCmd = &cobra.Command{
	Use:   "mark [path]",
	Short: "Instrument dead code candidates with runtime tombstones",
	Long: `Mark analyzes the source tree, selects elements at or above the
confidence threshold, inserts a tracking call at the top of each one,
and registers a tombstone for it in the external store.

Run the instrumented code in production for the monitoring window, then
use "cairn check" to see which tombstones were never triggered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMark,
}

func init() {
	markCmd.Flags().String("project", "", "Project name for tombstone identity (default from config)")
	markCmd.Flags().Float64("min-confidence", 0, "Confidence threshold (default from config)")
	markCmd.Flags().Int("max-changes", 0, "Maximum elements to instrument per run (default from config)")
	markCmd.Flags().Bool("dry-run", false, "Report planned edits without writing or registering")

	rootCmd.AddCommand(markCmd)
}

func runMark(cmd *cobra.Command, args []string) error {
	path := getPath(args)
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	project, _ := cmd.Flags().GetString("project")
	project = resolveProject(project, cfg)

	minConfidence := cfg.Analysis.MinConfidence
	if cmd.Flags().Changed("min-confidence") {
		minConfidence, _ = cmd.Flags().GetFloat64("min-confidence")
	}
	maxChanges := cfg.Analysis.MaxChanges
	if cmd.Flags().Changed("max-changes") {
		maxChanges, _ = cmd.Flags().GetInt("max-changes")
	}

	store := newStore(cfg)
	if store == nil && !dryRun {
		return fmt.Errorf("%s (or use --dry-run)", storeCredentialsHint)
	}

	trackerOpts := []tombstone.Option{
		tombstone.WithProject(project),
		tombstone.WithStore(store),
	}
	if dryRun {
		trackerOpts = append(trackerOpts, tombstone.WithDryRun())
	}
	tracker := tombstone.New(trackerOpts...)

	a := analyzer.New(path, analyzer.WithConfig(cfg))
	files, err := a.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	bar := progress.NewTracker("Analyzing...", len(files))
	a = analyzer.New(path, analyzer.WithConfig(cfg), analyzer.WithProgress(bar.Tick))
	candidates, err := a.Candidates(minConfidence)
	bar.FinishSuccess()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if len(candidates) == 0 {
		color.Green("No candidates at or above confidence %.2f", minConfidence)
		return nil
	}
	if maxChanges > 0 && len(candidates) > maxChanges {
		color.Yellow("Limiting to %d of %d candidates (--max-changes)", maxChanges, len(candidates))
		candidates = candidates[:maxChanges]
	}

	var injOpts []injector.Option
	if dryRun {
		injOpts = append(injOpts, injector.WithDryRun())
	}
	result := injector.New(path, tracker, injOpts...).Instrument(candidates)

	formatter, err := output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(result.Changes) > 0 {
		var rows [][]string
		for _, ch := range result.Changes {
			rows = append(rows, []string{
				ch.TombstoneID,
				ch.Element.Name,
				fmt.Sprintf("%s:%d", ch.Element.FilePath, ch.Element.LineNumber),
				fmt.Sprintf("%.0f%%", ch.Element.Confidence*100),
			})
		}
		title := "Instrumented Elements"
		if dryRun {
			title = "Would Instrument"
		}
		table := output.NewTable(title,
			[]string{"Tombstone", "Element", "Location", "Confidence"},
			rows, result.Changes)
		if err := formatter.Output(table); err != nil {
			return err
		}
	}

	if formatter.Format() == output.FormatText {
		formatter.Success("%d instrumented, %d already instrumented, %d files failed",
			len(result.Changes), len(result.Skipped), len(result.Failed))
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("instrumentation failed for %d files", len(result.Failed))
	}
	return nil
}
