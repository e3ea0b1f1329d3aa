package upiscan

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tfkr-ae/upiscan/catalog"
	"github.com/tfkr-ae/upiscan/clock"
	"github.com/tfkr-ae/upiscan/domain"
)

// WithOptions applies a series of configuration functions to the scanner instance.
// Each option function can modify the scanner configuration and return an error if it fails.
//
// Options applied after New only change the scanner fields; the pipeline components
// keep the collaborators they were assembled with.
func (scanner *Scanner) WithOptions(options ...func(*Scanner) error) error {
	for _, option := range options {
		err := option(scanner)
		if err != nil {
			return fmt.Errorf("applying option on scanner : %w", err)
		}
	}
	return nil
}

// WithConfigDir loads config.yaml from appConfigDir, creating the directory and the
// file with default values if needed.
func WithConfigDir(appConfigDir string) func(*Scanner) error {
	return func(scanner *Scanner) error {
		cfg, err := LoadConfig(appConfigDir)
		if err != nil {
			return err
		}
		scanner.ConfigDir = appConfigDir
		scanner.Config = cfg
		return nil
	}
}

// WithConfig sets an already loaded configuration.
func WithConfig(cfg *Config) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		scanner.ConfigDir = cfg.ConfigDir
		scanner.Config = cfg
		return nil
	}
}

// WithLogger sets the structured logger. A nil logger keeps the default, which discards output.
func WithLogger(logger *slog.Logger) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if logger != nil {
			scanner.Logger = logger
		}
		return nil
	}
}

// WithRepo sets the repository used for preferences and the activity log, closing the previous one.
// The scanner owns the repository and closes it in Close.
func WithRepo(repo Repository) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if scanner.Repo != nil {
			if err := scanner.Repo.Close(); err != nil {
				return err
			}
			scanner.Repo = nil
		}
		scanner.Repo = repo
		return nil
	}
}

// WithCatalog replaces the built-in application catalog.
func WithCatalog(cat *catalog.Catalog) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if cat == nil {
			return errors.New("catalog is nil")
		}
		scanner.Catalog = cat
		return nil
	}
}

// WithKeyValueStore sets the preference store, taking precedence over the repository.
func WithKeyValueStore(kv domain.KeyValueStore) func(*Scanner) error {
	return func(scanner *Scanner) error {
		scanner.kv = kv
		return nil
	}
}

// WithOpener sets the OS launcher. Without it, a DesktopOpener is built from the Config.
func WithOpener(opener domain.Opener) func(*Scanner) error {
	return func(scanner *Scanner) error {
		scanner.opener = opener
		return nil
	}
}

// WithCapture sets the capture collaborator started by StartCapture.
func WithCapture(capture domain.Capture) func(*Scanner) error {
	return func(scanner *Scanner) error {
		scanner.capture = capture
		return nil
	}
}

// WithHaptics sets the vibration collaborator.
func WithHaptics(haptics domain.Haptics) func(*Scanner) error {
	return func(scanner *Scanner) error {
		scanner.haptics = haptics
		return nil
	}
}

// WithHTTPClient sets the client used for icon lookups.
func WithHTTPClient(client *http.Client) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		scanner.client = client
		return nil
	}
}

// WithEventHandler takes a handler function that will be executed on each event
func WithEventHandler(handler func(event Event) error) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if scanner.OnEvent != nil {
			return errors.New("scanner already has an event handler defined")
		}
		scanner.OnEvent = handler
		return nil
	}
}

// WithClock sets the clock used for capture timestamps and timers.
func WithClock(c clock.Clock) func(*Scanner) error {
	return func(scanner *Scanner) error {
		if c == nil {
			return errors.New("clock is nil")
		}
		scanner.clock = c
		return nil
	}
}
