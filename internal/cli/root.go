// Package cli implements the upiscan command line, a desktop front end for the scanner library.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tfkr-ae/upiscan"
	"github.com/tfkr-ae/upiscan/db"
	"gopkg.in/yaml.v3"
)

type rootOptions struct {
	configDir string
	verbose   bool
}

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "upiscan",
		Short: "Route UPI QR codes into a payment app",
		Long: `upiscan reads decoded UPI QR codes and opens them in the selected payment app.

Codes are read one per line from stdin by the scan command; the selected app,
haptic flag and activity log are kept in a SQLite database in the config dir.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", defaultConfigDir(), "Configuration directory")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(newAppsCmd(opts))
	rootCmd.AddCommand(newSelectCmd(opts))
	rootCmd.AddCommand(newClearCmd(opts))
	rootCmd.AddCommand(newHapticCmd(opts))
	rootCmd.AddCommand(newPrefsCmd(opts))
	rootCmd.AddCommand(newIconsCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newLogsCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newHandlerCmd(opts))

	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func defaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".upiscan"
	}
	return filepath.Join(dir, "upiscan")
}

func (opts *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openScanner loads the configuration, opens the database and creates a scanner.
// The caller closes the scanner, which closes the database.
func (opts *rootOptions) openScanner(cmd *cobra.Command, options ...func(*upiscan.Scanner) error) (*upiscan.Scanner, error) {
	cfg, err := upiscan.LoadConfig(opts.configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	conn, err := db.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	base := []func(*upiscan.Scanner) error{
		upiscan.WithConfig(cfg),
		upiscan.WithRepo(db.NewRepo(conn)),
		upiscan.WithLogger(opts.logger(cmd.ErrOrStderr())),
	}
	scanner, err := upiscan.New(append(base, options...)...)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating scanner: %w", err)
	}
	return scanner, nil
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = w.Write(data)
	return err
}
