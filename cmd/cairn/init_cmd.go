package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new cairn configuration file",
	Long: `Creates a new cairn.toml configuration file in the current directory
with sensible defaults.

Examples:
  cairn init                      # Creates cairn.toml in current directory
  cairn init -o .cairn/cairn.toml # Creates config in .cairn directory
  cairn init --force              # Overwrite existing config file`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing config file")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	outputPath := getOutputFile(cmd)
	if outputPath == "" {
		outputPath = "cairn.toml"
	}
	force, _ := cmd.Flags().GetBool("force")

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	color.Green("Created %s", outputPath)
	fmt.Println("Set store.url and store.key (or CAIRN_STORE_URL / CAIRN_STORE_KEY) to enable tombstone tracking.")
	return nil
}

func generateDefaultConfig() (string, error) {
	cfg := config.DefaultConfig()

	content, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# Cairn configuration\n")
	buf.WriteString("# Documentation: https://github.com/cairnhq/cairn\n\n")
	buf.Write(content)

	return buf.String(), nil
}
