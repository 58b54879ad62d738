package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/codeburst/internal/app"
	"github.com/felixgeelhaar/codeburst/internal/theme"
)

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show or toggle the dark mode preference",
}

var themeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective theme",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		stored, err := a.Theme.Stored()
		if err != nil {
			return err
		}
		source := "terminal"
		if stored != nil {
			source = "saved"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", theme.ModeOf(a.Theme.Dark()), source)
		return nil
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between light and dark mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, app.WithoutRunner())
		if err != nil {
			return err
		}
		defer closeApp(a)

		dark, err := a.Theme.Toggle()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Theme set to %s\n", theme.ModeOf(dark))
		return nil
	},
}

func init() {
	themeCmd.AddCommand(themeShowCmd, themeToggleCmd)
}
