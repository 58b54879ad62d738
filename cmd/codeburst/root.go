package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "codeburst",
	Short: "Interactive JavaScript tutorial",
	Long: `CodeBurst walks learners through short JavaScript steps. Snippets run in
an isolated runtime and are checked against each step's expected output.

The daemon (codeburstd) serves the web front end; this command talks to the
same storage directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("user", "", "Learner email for progress commands (overrides CODEBURST_USER)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, logsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig prepares ~/.codeburst and reads the configuration
func loadConfig(cmd *cobra.Command) (*config.LocalConfig, error) {
	level := slog.LevelWarn
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if _, err := config.EnsureCodeBurstDir(); err != nil {
		return nil, fmt.Errorf("setup codeburst directory: %w", err)
	}
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp builds the service context for one command. The caller must
// close it so pending progress updates are flushed.
func openApp(cmd *cobra.Command, opts ...app.Option) (*app.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}

func closeApp(a *app.Context) {
	if err := a.Close(context.Background()); err != nil {
		slog.Warn("close failed", "error", err)
	}
}

// resolveUser returns the learner email using --user (highest priority),
// then the CODEBURST_USER env var.
func resolveUser(cmd *cobra.Command) string {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u
	}
	return os.Getenv("CODEBURST_USER")
}
