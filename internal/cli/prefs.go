package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan/domain"
)

type prefsView struct {
	Selected *appView `yaml:"selected"`
	Haptic   bool     `yaml:"haptic_feedback"`
}

func newPrefsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prefs",
		Short: "Show the saved preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			store := scanner.Preferences()
			view := prefsView{Haptic: store.HapticEnabled()}
			if app, ok := store.Selected(); ok {
				view.Selected = &toAppViews([]domain.PaymentApplication{app})[0]
			}
			return writeYAML(cmd.OutOrStdout(), view)
		},
	}
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <app-id>",
		Short: "Select the payment app scans are opened in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			if err := scanner.Preferences().Select(args[0]); err != nil {
				return err
			}
			app, _ := scanner.Preferences().Selected()
			fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", app.DisplayName)
			return nil
		},
	}
}

func newClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the selected payment app",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			scanner.Preferences().ClearSelection()
			fmt.Fprintln(cmd.OutOrStdout(), "Selection cleared")
			return nil
		},
	}
}

func newHapticCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "haptic on|off",
		Short:     "Toggle haptic feedback",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			enabled := args[0] == "on"
			scanner.Preferences().SetHaptic(enabled)
			fmt.Fprintf(cmd.OutOrStdout(), "Haptic feedback %s\n", args[0])
			return nil
		},
	}
}
