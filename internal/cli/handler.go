package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan"
)

func newHandlerCmd(opts *rootOptions) *cobra.Command {
	var goos string

	cmd := &cobra.Command{
		Use:   "handler",
		Short: "Manage the commands that open app URL schemes",
	}
	cmd.PersistentFlags().StringVar(&goos, "os", runtime.GOOS, "Operating system the handler applies to")

	addCmd := &cobra.Command{
		Use:   "add <scheme> <command>",
		Short: "Register a command for a URL scheme",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := upiscan.LoadConfig(opts.configDir)
			if err != nil {
				return err
			}
			if err := cfg.AddHandler(args[0], args[1], goos); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s handler for %s\n", args[0], goos)
			return nil
		},
	}

	removeCmd := &cobra.Command{
		Use:     "rm <scheme>",
		Aliases: []string{"remove"},
		Short:   "Remove the command registered for a URL scheme",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := upiscan.LoadConfig(opts.configDir)
			if err != nil {
				return err
			}
			if err := cfg.DeleteHandler(args[0], goos); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s handler for %s\n", args[0], goos)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "ls",
		Short: "List registered handlers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := upiscan.LoadConfig(opts.configDir)
			if err != nil {
				return err
			}
			return writeYAML(cmd.OutOrStdout(), cfg.HandlersFor(goos))
		},
	}

	cmd.AddCommand(addCmd, removeCmd, listCmd)
	return cmd
}
