package upiscan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"time"

	"github.com/spf13/viper"
	"github.com/tfkr-ae/upiscan/dispatch"
	"github.com/tfkr-ae/upiscan/icons"
	"github.com/tfkr-ae/upiscan/launcher"
)

// ErrInvalidOS is returned when a handler is registered for an unsupported operating system.
var ErrInvalidOS = errors.New("invalid os string")

// HandlerConfig maps a URL scheme to the command that opens it on a given OS.
type HandlerConfig struct {
	OS      string `mapstructure:"os"`      // OS for the given handler
	Scheme  string `mapstructure:"scheme"`  // URL scheme handled by the command
	Command string `mapstructure:"command"` // Command line, the URL is appended as the last argument
}

// Config is the scanner configuration stored as config.yaml in the config directory.
type Config struct {
	viper           *viper.Viper
	ConfigDir       string          `mapstructure:"config_dir"`        // Current config dir
	DesktopOS       string          `mapstructure:"desktop_os"`        // Operating system identifier
	ScanCooldown    time.Duration   `mapstructure:"scan_cooldown"`     // Minimum time between accepted scans
	LaunchFlagDelay time.Duration   `mapstructure:"launch_flag_delay"` // How long a launch is reported as in progress
	IconLookupURL   string          `mapstructure:"icon_lookup_url"`   // Icon lookup endpoint
	IconCountry     string          `mapstructure:"icon_country"`      // Store country for icon lookups
	IconTimeout     time.Duration   `mapstructure:"icon_timeout"`      // Timeout of a single icon lookup
	Database        string          `mapstructure:"database"`          // Database file name, relative to the config dir
	Handlers        []HandlerConfig `mapstructure:"handlers"`
}

// LoadConfig reads config.yaml from appConfigDir, creating the directory and a file
// with the default values when they do not exist.
func LoadConfig(appConfigDir string) (*Config, error) {
	_, err := os.ReadDir(appConfigDir)
	if err != nil {
		if os.IsNotExist(err) {
			err := os.MkdirAll(appConfigDir, 0700)
			if err != nil {
				return nil, fmt.Errorf("creating config dir %s: %w", appConfigDir, err)
			}
		} else {
			return nil, fmt.Errorf("checking if directory exists %s: %w", appConfigDir, err)
		}
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(appConfigDir)
	v.SetDefault("scan_cooldown", dispatch.DefaultCooldown.String())
	v.SetDefault("launch_flag_delay", launcher.DefaultFlagDelay.String())
	v.SetDefault("icon_lookup_url", icons.DefaultEndpoint)
	v.SetDefault("icon_country", icons.DefaultCountry)
	v.SetDefault("icon_timeout", "10s")
	v.SetDefault("database", "upiscan.db")
	v.SetDefault("handlers", []HandlerConfig{})

	err = v.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			err = v.SafeWriteConfig()
			if err != nil {
				return nil, fmt.Errorf("writing config file : %w", err)
			}
		} else {
			return nil, fmt.Errorf("reading config file : %w", err)
		}
	}

	v.Set("config_dir", appConfigDir)
	v.Set("desktop_os", runtime.GOOS)

	cfg := &Config{viper: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config to struct : %w", err)
	}

	// Rewrite entire file from struct
	if err := v.WriteConfig(); err != nil {
		return nil, fmt.Errorf("writing config after unmarshalling : %w", err)
	}
	return cfg, nil
}

// DatabasePath returns the database file path. Relative names are resolved against the config dir.
func (cfg *Config) DatabasePath() string {
	if filepath.IsAbs(cfg.Database) {
		return cfg.Database
	}
	return filepath.Join(cfg.ConfigDir, cfg.Database)
}

// HandlersFor returns the handlers registered for the given OS.
func (cfg *Config) HandlersFor(goos string) []HandlerConfig {
	var handlers []HandlerConfig
	for _, handler := range cfg.Handlers {
		if handler.OS == goos {
			handlers = append(handlers, handler)
		}
	}
	return handlers
}

// AddHandler registers command as the handler of scheme on os and saves the configuration.
func (cfg *Config) AddHandler(scheme, command, os string) error {
	switch os {
	case "darwin", "linux", "windows":
	default:
		return ErrInvalidOS
	}
	if scheme == "" || command == "" {
		return errors.New("scheme and command are required")
	}

	cfg.Handlers = slices.DeleteFunc(cfg.Handlers, func(h HandlerConfig) bool {
		return h.OS == os && h.Scheme == scheme
	})
	cfg.Handlers = append(cfg.Handlers, HandlerConfig{OS: os, Scheme: scheme, Command: command})
	return cfg.save()
}

// DeleteHandler removes the handler of scheme on os and saves the configuration.
func (cfg *Config) DeleteHandler(scheme, os string) error {
	cfg.Handlers = slices.DeleteFunc(cfg.Handlers, func(h HandlerConfig) bool {
		return h.OS == os && h.Scheme == scheme
	})
	return cfg.save()
}

func (cfg *Config) save() error {
	if cfg.viper == nil {
		return errors.New("config was not loaded from a config dir")
	}
	cfg.viper.Set("handlers", cfg.Handlers)
	if err := cfg.viper.WriteConfig(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	if err := cfg.viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshalling config to struct : %w", err)
	}
	return nil
}
