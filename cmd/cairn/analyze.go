package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/analyzer"
	"github.com/cairnhq/cairn/internal/output"
	"github.com/cairnhq/cairn/internal/progress"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Score functions, methods, and types by dead code likelihood",
	Long: `Analyze scans the source tree, counts references, and reports every
element with its dead code confidence score. Report-only: nothing is
modified or registered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().Float64("min-confidence", 0, "Only report elements at or above this confidence (0.0-1.0)")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := getPath(args)
	minConfidence, _ := cmd.Flags().GetFloat64("min-confidence")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a := analyzer.New(path, analyzer.WithConfig(cfg))
	files, err := a.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No source files found")
		return nil
	}

	tracker := progress.NewTracker("Analyzing...", len(files))
	a = analyzer.New(path, analyzer.WithConfig(cfg), analyzer.WithProgress(tracker.Tick))
	elements, err := a.Analyze()
	tracker.FinishSuccess()
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	selected := analyzer.Select(elements, minConfidence)

	formatter, err := output.NewFormatter(output.ParseFormat(getFormat(cmd)), getOutputFile(cmd), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if len(selected) == 0 {
		formatter.Success("No elements at or above confidence %.2f", minConfidence)
		return nil
	}

	var rows [][]string
	for _, e := range selected {
		reason := ""
		if len(e.Reasons) > 0 {
			reason = e.Reasons[0]
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", e.FilePath, e.LineNumber),
			e.Name,
			string(e.Kind),
			confidenceCell(e.Confidence, formatter.Format() == output.FormatText && cfg.Output.Color),
			reason,
		})
	}

	table := output.NewTable(
		"Dead Code Candidates",
		[]string{"Location", "Element", "Kind", "Confidence", "Reason"},
		rows,
		selected,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if formatter.Format() == output.FormatText {
		fmt.Fprintf(formatter.Writer(), "Analyzed %d files, %d elements, %d at or above confidence %.2f\n",
			len(files), len(elements), len(selected), minConfidence)
	}
	return nil
}

// confidenceCell renders a confidence score, colored by severity when the
// output is an interactive text table.
func confidenceCell(confidence float64, colored bool) string {
	s := fmt.Sprintf("%.0f%%", confidence*100)
	if !colored {
		return s
	}
	switch {
	case confidence >= 0.8:
		return color.RedString(s)
	case confidence >= 0.5:
		return color.YellowString(s)
	default:
		return s
	}
}
