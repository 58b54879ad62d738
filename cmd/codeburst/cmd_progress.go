package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/domain"
	"github.com/felixgeelhaar/codeburst/internal/view"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show a learner's tutorial progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := resolveUser(cmd)
		if email == "" {
			return errors.New("learner required: pass --user or set CODEBURST_USER")
		}

		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		ctx := cmd.Context()
		user, err := a.Auth.UserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("learner %q: %w", email, err)
		}

		steps, notices := a.Content.LoadStepsWithFallback(ctx)
		rec, err := a.Progress.LoadProgress(ctx, user.UserID, steps)
		if rec == nil {
			return fmt.Errorf("load progress: %w", err)
		}
		if err != nil {
			notices = append(notices, domain.Notice(err))
		}
		printNotices(cmd, notices)

		printDashboard(cmd, view.BuildDashboard(user, steps, rec, nil), a.Theme.Dark())
		return nil
	},
}

func printDashboard(cmd *cobra.Command, d view.Dashboard, dark bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "%s's Tutorial Progress\n", d.UserName)
	fmt.Fprintf(out, "%s %d/%d (%s)\n\n", renderProgressBar(d.Percent/100, 30, dark), d.CompletedCount, d.Total, d.PercentLabel())

	for _, entry := range d.Steps {
		fmt.Fprintf(out, " %s %2d. %s\n", markerGlyph(entry.Marker), entry.Number, entry.Title)
	}

	if d.Finished {
		fmt.Fprintln(out, "\nAll steps done.")
	}
	if d.LastAccessed != "" {
		fmt.Fprintf(out, "\nLast accessed %s\n", d.LastAccessed)
	}
}

func markerGlyph(m view.Marker) string {
	switch m {
	case view.MarkerCurrent:
		return "▶"
	case view.MarkerCompleted:
		return "✓"
	default:
		return " "
	}
}

// renderProgressBar creates a visual progress bar. Dark terminals get a
// solid fill, light ones a shaded fill that stays readable on white.
func renderProgressBar(value float64, width int, dark bool) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	fill := "█"
	if !dark {
		fill = "▓"
	}
	return "[" + strings.Repeat(fill, filled) + strings.Repeat("░", empty) + "]"
}
