package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cairn",
	Short: "Dead code confirmation for Go codebases",
	Long: `Cairn finds likely-dead functions with static analysis, plants runtime
tombstones in them, and confirms which ones were never invoked over a
monitoring window before removing them.

Workflow: analyze -> mark -> (deploy, wait) -> check -> remove`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (TOML, YAML, or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, json, csv")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Write output to a file instead of stdout")
}
