package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/domain"
)

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Run a JavaScript snippet",
	Long: `Run a JavaScript snippet in the isolated runtime and print what it logged.

With --step the output is checked against the step's expected output. A match
completes the step for the learner given by --user.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnippet,
}

func init() {
	runCmd.Flags().String("step", "", "Step ID to check the output against")
}

func runSnippet(cmd *cobra.Command, args []string) error {
	source, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a)

	ctx := cmd.Context()
	var step *domain.TutorialStep
	if id, _ := cmd.Flags().GetString("step"); id != "" {
		if step, err = a.Content.GetStep(ctx, id); err != nil {
			return fmt.Errorf("step %q: %w", id, err)
		}
	}

	result, err := a.Runner.Execute(ctx, source, step)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.OutputText)

	if result.MatchedExpected == nil {
		return nil
	}
	if !*result.MatchedExpected {
		fmt.Fprintf(out, "\n✗ Output does not match. Expected:\n%s\n", *step.ExpectedOutput)
		return nil
	}

	fmt.Fprintln(out, "\n✓ Output matches the expected output")
	if email := resolveUser(cmd); email != "" {
		if err := completeForLearner(cmd, a, email, step.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Step %q completed for %s\n", step.ID, email)
	}
	return nil
}

func completeForLearner(cmd *cobra.Command, a *app.Context, email, stepID string) error {
	ctx := cmd.Context()
	user, err := a.Auth.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("learner %q: %w", email, err)
	}
	steps, _ := a.Content.LoadStepsWithFallback(ctx)
	rec, err := a.Progress.LoadProgress(ctx, user.UserID, steps)
	if rec == nil {
		return fmt.Errorf("load progress: %w", err)
	}
	return a.Progress.MarkComplete(rec.RecordID, stepID)
}

// readSource reads the snippet from path, or from stdin for "-"
func readSource(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	return string(data), nil
}
