package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/content"
	"github.com/felixgeelhaar/codeburst/internal/domain"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List, show and seed tutorial steps",
}

var stepsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tutorial steps in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		steps, notices := a.Content.LoadStepsWithFallback(cmd.Context())
		printNotices(cmd, notices)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tID\tTITLE\tCHECKED")
		for i, step := range steps {
			checked := "-"
			if step.HasExpectedOutput() {
				checked = "yes"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, step.ID, step.Title, checked)
		}
		return tw.Flush()
	},
}

var stepsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		step, err := a.Content.GetStep(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("step %q: %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n\n", step.Title, step.ID)
		if step.Description != "" {
			fmt.Fprintf(out, "%s\n\n", step.Description)
		}
		if step.Content != "" {
			fmt.Fprintf(out, "%s\n\n", step.Content)
		}
		code := step.CodeExample
		if code == "" {
			code = domain.DefaultStarterCode
		}
		fmt.Fprintf(out, "Starter code:\n%s\n", code)
		if step.ExpectedOutput != nil {
			fmt.Fprintf(out, "\nExpected output:\n%s\n", *step.ExpectedOutput)
		}
		return nil
	},
}

var stepsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write the step packs into the configured storage",
	Long: `Load every pack under the packs directory and upsert its steps into the
configured storage driver. The remote driver is read-only and cannot be seeded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		if a.Storage.Seeder == nil {
			return fmt.Errorf("storage driver %q cannot be seeded", a.Storage.Driver)
		}

		path, _ := cmd.Flags().GetString("packs")
		if path == "" {
			if path, err = a.Config.Content.ResolvedPacksPath(); err != nil {
				return err
			}
		}

		n, err := content.Seed(cmd.Context(), content.NewPackLoader(path), a.Storage.Seeder)
		if err != nil {
			return fmt.Errorf("seed steps: %w", err)
		}
		a.Content.Invalidate()
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d steps from %s into %s\n", n, path, a.Storage.Driver)
		return nil
	},
}

func init() {
	stepsSeedCmd.Flags().String("packs", "", "Packs directory (defaults to content.packs_path)")

	stepsCmd.AddCommand(stepsListCmd, stepsShowCmd, stepsSeedCmd)
}

func printNotices(cmd *cobra.Command, notices []string) {
	for _, n := range notices {
		fmt.Fprintf(cmd.ErrOrStderr(), "! %s\n", n)
	}
}
