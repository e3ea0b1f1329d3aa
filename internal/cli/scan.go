package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan"
)

func printEvent(w io.Writer, event upiscan.Event) {
	switch event.Kind {
	case upiscan.EventOpened:
		fmt.Fprintf(w, "%s: %s\n", event.Kind, event.DeepLink)
	case upiscan.EventLaunchSettled:
		return
	default:
		fmt.Fprintf(w, "%s: %s\n", event.Kind, event.Message)
	}
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Open decoded codes read from stdin, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			capture := newLineCapture(cmd.InOrStdin())
			out := cmd.OutOrStdout()

			scanner, err := opts.openScanner(cmd,
				upiscan.WithCapture(capture),
				upiscan.WithEventHandler(func(event upiscan.Event) error {
					printEvent(out, event)
					return nil
				}),
			)
			if err != nil {
				return err
			}
			defer scanner.Close()

			if settle <= 0 {
				settle = scanner.Config.LaunchFlagDelay
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			go func() {
				select {
				case <-capture.Done():
				case <-ctx.Done():
					return
				}
				// give pending launches time to report back
				time.Sleep(settle)
				cancel()
			}()

			if err := scanner.StartCapture(); err != nil {
				return err
			}
			defer scanner.StopCapture()

			if err := scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 0, "How long to wait for launch results after the last code (default launch_flag_delay)")
	return cmd
}
