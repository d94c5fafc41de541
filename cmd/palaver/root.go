package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/palaver/internal/cli"
	"github.com/aretw0/palaver/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "palaver",
	Short: "Palaver runs dialog based chat bots",
	Long: `Palaver hosts a bot built from waterfall dialogs and prompts. The bot can
be served over HTTP, exposed to MCP clients or chatted with in the terminal.
Conversation state is kept in memory, on disk, in Redis or in SQLite.`,
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
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a palaver.yaml config file")
	rootCmd.PersistentFlags().String("storage", "", "Storage driver override (memory, file, redis, sql)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
}

// loadRuntime reads the config, applies flag overrides and builds the runtime.
func loadRuntime(cmd *cobra.Command) (*cli.Runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("storage"); v != "" {
		cfg.Storage.Driver = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cli.NewRuntime(cfg, os.Stderr)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
