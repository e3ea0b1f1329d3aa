package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan"
)

type logView struct {
	Timestamp   time.Time      `yaml:"timestamp"`
	Level       string         `yaml:"level"`
	Message     string         `yaml:"message"`
	ScanID      string         `yaml:"scan_id,omitempty"`
	Application string         `yaml:"application,omitempty"`
	Context     map[string]any `yaml:"context,omitempty"`
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the activity log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			logs, err := scanner.Repo.GetLogs()
			if err != nil {
				return fmt.Errorf("getting logs: %w", err)
			}
			if limit > 0 && len(logs) > limit {
				logs = logs[len(logs)-limit:]
			}

			views := make([]logView, len(logs))
			for i, log := range logs {
				views[i] = logView{
					Timestamp:   log.Timestamp,
					Level:       log.Level,
					Message:     log.Message,
					Application: log.ApplicationID,
					Context:     log.Context,
				}
				if log.ScanID != nil {
					views[i].ScanID = log.ScanID.String()
				}
			}
			return writeYAML(cmd.OutOrStdout(), views)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Only show the last n entries")
	return cmd
}

type statsView struct {
	Total  int            `yaml:"total"`
	Events map[string]int `yaml:"events"`
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count activity log entries by event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner, err := opts.openScanner(cmd)
			if err != nil {
				return err
			}
			defer scanner.Close()

			total, err := scanner.Repo.CountLogs()
			if err != nil {
				return err
			}

			view := statsView{Total: total, Events: make(map[string]int)}
			kinds := []upiscan.EventKind{
				upiscan.EventNoAppSelected,
				upiscan.EventParseFailed,
				upiscan.EventOpened,
				upiscan.EventLaunchFailed,
				upiscan.EventLaunchSettled,
			}
			for _, kind := range kinds {
				count, err := scanner.Repo.CountByEvent(kind.String())
				if err != nil {
					return err
				}
				view.Events[kind.String()] = count
			}
			return writeYAML(cmd.OutOrStdout(), view)
		},
	}
}
