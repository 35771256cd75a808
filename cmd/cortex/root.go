package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/cortex/internal/cli"
	"github.com/aretw0/cortex/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex is a tool-using agent runtime",
	Long: `Cortex runs a perceive-plan-act loop over a language model and a set of
tool backends (local processes or HTTP services), gated by an optional
workflow of required steps.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the cortex config file (YAML)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: 'text' or 'json'")
}

// loadConfig reads the config file named by --config and applies the
// logging flags on top of it. The flags are validated again since they
// bypass Load.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Level = "debug"
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// buildApp loads the config and wires the agent.
func buildApp(ctx context.Context, cmd *cobra.Command, opts ...cli.BuildOption) (*config.Config, *cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	app, err := cli.Build(ctx, cfg, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("error initializing cortex: %w", err)
	}
	return cfg, app, nil
}
