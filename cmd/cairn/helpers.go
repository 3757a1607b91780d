package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cairnhq/cairn/pkg/config"
	"github.com/cairnhq/cairn/pkg/tombstone"
	"github.com/cairnhq/cairn/pkg/tombstone/resthook"
)

// getPath returns the analysis root from positional args, defaulting to "."
func getPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// getFormat returns the persistent --format flag value.
func getFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("format")
	return f
}

// getOutputFile returns the persistent --output flag value.
func getOutputFile(cmd *cobra.Command) string {
	o, _ := cmd.Flags().GetString("output")
	return o
}

// validateDays validates the --days flag and returns an error if invalid.
func validateDays(days int) error {
	if days <= 0 {
		return fmt.Errorf("--days must be a positive integer (got %d)", days)
	}
	return nil
}

// loadConfig loads the config file from --config or standard locations.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %q: %w", cfgFile, err)
		}
		return cfg, nil
	}
	return config.LoadOrDefault(), nil
}

// newStore builds the external tombstone store from config, or nil when no
// credentials are configured.
func newStore(cfg *config.Config) tombstone.Store {
	if !cfg.HasStore() {
		return nil
	}
	timeout := time.Duration(cfg.Store.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = tombstone.DefaultTimeout
	}
	return resthook.New(cfg.Store.URL, cfg.Store.Key, resthook.WithTimeout(timeout))
}

// resolveProject prefers the flag value over the configured project name.
func resolveProject(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	return cfg.Project
}

// storeCredentialsHint is shared by commands that need the external store.
const storeCredentialsHint = "store credentials not configured: set store.url and store.key in cairn.toml, or CAIRN_STORE_URL and CAIRN_STORE_KEY"
