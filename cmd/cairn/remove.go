package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/internal/analyzer"
	"github.com/cairnhq/cairn/internal/remover"
	"github.com/cairnhq/cairn/internal/scanner"
	"github.com/cairnhq/cairn/pkg/tombstone"
)

var removeCmd = &cobra.Command{
	Use:   "remove [path]",
	Short: "Delete confirmed-dead functions from the source tree",
	Long: `Remove deletes function declarations named in a findings file (the JSON
output of "cairn check") or given directly with --functions. Each file
is rewritten atomically; ambiguous targets are skipped with a warning.

Successfully removed tombstones are marked removed in the store when
credentials are configured.

Examples:
  cairn remove --input findings.json
  cairn remove --functions internal/auth/legacy.go:oldTokenCheck
  cairn remove --functions oldTokenCheck        # searches every file`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRemove,
}

func init() {
	removeCmd.Flags().String("input", "", "Findings file from \"cairn check --format json\"")
	removeCmd.Flags().StringSlice("functions", nil, "Functions to remove, as name or file.go:name")
	removeCmd.Flags().Bool("dry-run", false, "Report planned removals without writing")

	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	path := getPath(args)
	input, _ := cmd.Flags().GetString("input")
	functions, _ := cmd.Flags().GetStringSlice("functions")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if input == "" && len(functions) == 0 {
		return fmt.Errorf("nothing to remove: provide --input or --functions")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var records []tombstone.Record
	var targets []remover.Target

	if input != "" {
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read findings file: %w", err)
		}
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("failed to parse findings file %q: %w", input, err)
		}
		for _, rec := range records {
			targets = append(targets, remover.Target{
				FunctionName: rec.FunctionName,
				FilePath:     rec.FilePath,
			})
		}
	}

	for _, fn := range functions {
		t := remover.Target{FunctionName: fn}
		if idx := strings.LastIndexByte(fn, ':'); idx >= 0 {
			t.FilePath = fn[:idx]
			t.FunctionName = fn[idx+1:]
		}
		targets = append(targets, t)
	}

	files, err := analyzer.New(path, analyzer.WithConfig(cfg)).Files()
	if err != nil {
		return err
	}
	relFiles := make([]string, len(files))
	for i, f := range files {
		relFiles[i] = scanner.Rel(path, f)
	}

	var opts []remover.Option
	if dryRun {
		opts = append(opts, remover.WithDryRun())
	}
	result := remover.New(path, opts...).Run(targets, relFiles)

	if dryRun {
		color.Yellow("Dry run: %d functions across %d files would be removed", result.TotalRemoved(), len(result.Removals))
	} else {
		color.Green("Removed %d functions across %d files", result.TotalRemoved(), len(result.Removals))
	}
	if len(result.Warnings) > 0 {
		color.Yellow("%d targets skipped (see warnings above)", len(result.Warnings))
	}

	if !dryRun && len(records) > 0 {
		if store := newStore(cfg); store != nil {
			markRemoved(store, records, result)
		}
	}

	if len(result.Failed) > 0 {
		return fmt.Errorf("removal failed for %d files", len(result.Failed))
	}
	return nil
}

// markRemoved transitions the store records for successfully removed
// functions to the removed status. Store failures are warnings: the
// source edit already happened and is the authoritative outcome.
func markRemoved(store tombstone.Store, records []tombstone.Record, result *remover.Result) {
	removed := make(map[string]bool)
	for _, rm := range result.Removals {
		for _, name := range rm.Removed {
			removed[rm.File+":"+name] = true
		}
	}

	ctx := context.Background()
	for _, rec := range records {
		name := rec.FunctionName
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			name = name[idx+1:]
		}
		if !removed[rec.FilePath+":"+name] {
			continue
		}
		rec.Status = tombstone.StatusRemoved
		if err := store.UpsertTombstone(ctx, rec); err != nil {
			color.Yellow("warning: failed to mark %s removed in store: %v", rec.FunctionName, err)
		}
	}
}
