// Package commands implements the orchestrator CLI.
package commands

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/chainsafe/anchor-orchestrator/pkg/config"
)

var (
	configPath string
	envFile    string
)

// Execute runs the root command.
func Execute() error {
	return NewRoot().Execute()
}

// NewRoot builds the command tree.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "orchestrator",
		Short:         "Multi-party anchored value transfer orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnv(envFile)
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")

	root.AddCommand(runCmd(), serveCmd(), relayCmd(), migrateCmd(), keysCmd(), tokenCmd())
	return root
}

// loadEnv loads path into the environment without overriding existing
// variables. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading configuration: %w", err)
	}
	return cfg, nil
}
