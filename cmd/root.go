package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/agentic-research/notesmd/api"
)

var (
	configPath string
	verbose    bool
	logger     = slog.Default()
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to an HCL config file (default ./"+api.DefaultConfigFile+" if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")
}

var rootCmd = &cobra.Command{
	Use:           "notesmd",
	Short:         "Export Apple Notes to Markdown",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// loadConfig resolves the configuration file: the --config path if given,
// else notesmd.hcl in the working directory if it exists, else defaults.
func loadConfig() (api.Config, error) {
	if configPath != "" {
		return api.LoadConfig(configPath)
	}
	if _, err := os.Stat(api.DefaultConfigFile); err == nil {
		return api.LoadConfig(api.DefaultConfigFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return api.Config{}, fmt.Errorf("stat %s: %w", api.DefaultConfigFile, err)
	}
	return api.DefaultConfig(), nil
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
