// Package prefs persists the user's selected payment application and haptic feedback flag.
//
// The Store loads its value once from a domain.KeyValueStore when it is created and writes the
// full value back synchronously after every change. Persistence is best-effort: failures are
// logged and never returned to the caller.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/tfkr-ae/upiscan/catalog"
	"github.com/tfkr-ae/upiscan/domain"
)

const (
	// SelectedApplicationKey stores the JSON encoded selected domain.PaymentApplication.
	SelectedApplicationKey = "selectedPaymentApp"
	// HapticFeedbackKey stores the haptic flag as "true" or "false".
	HapticFeedbackKey = "hapticFeedbackEnabled"
)

// ErrUnknownApplication is returned when selecting an identifier that is not in the catalog.
var ErrUnknownApplication = errors.New("application is not in the catalog")

// Store holds the current domain.Preference.
type Store struct {
	kv      domain.KeyValueStore
	catalog *catalog.Catalog
	logger  *slog.Logger

	mu        sync.RWMutex
	pref      domain.Preference
	listeners []func(domain.Preference)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New loads the preference from kv. Missing or corrupt data is treated as no selection,
// and the haptic flag defaults to true. A nil kv keeps the preference in memory only.
func New(kv domain.KeyValueStore, cat *catalog.Catalog, options ...Option) *Store {
	if cat == nil {
		cat = catalog.Default()
	}
	s := &Store{
		kv:      kv,
		catalog: cat,
		logger:  slog.New(slog.DiscardHandler),
		pref:    domain.Preference{HapticEnabled: true},
	}
	for _, option := range options {
		option(s)
	}

	s.load()
	s.listeners = append(s.listeners, s.persist)
	return s
}

// Get returns the current preference.
func (s *Store) Get() domain.Preference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pref
}

// Selected returns the selected catalog entry.
func (s *Store) Selected() (domain.PaymentApplication, bool) {
	pref := s.Get()
	if !pref.HasSelection() {
		return domain.PaymentApplication{}, false
	}
	return s.catalog.Lookup(pref.SelectedApplicationID)
}

// HapticEnabled reports whether haptic feedback is enabled.
func (s *Store) HapticEnabled() bool {
	return s.Get().HapticEnabled
}

// Set replaces the whole preference. An empty selectedID clears the selection.
func (s *Store) Set(selectedID string, hapticEnabled bool) error {
	if selectedID != "" {
		if _, ok := s.catalog.Lookup(selectedID); !ok {
			return fmt.Errorf("%w : %s", ErrUnknownApplication, selectedID)
		}
	}
	s.update(domain.Preference{SelectedApplicationID: selectedID, HapticEnabled: hapticEnabled})
	return nil
}

// Select changes the selected application and keeps the haptic flag.
func (s *Store) Select(id string) error {
	return s.Set(id, s.HapticEnabled())
}

// ClearSelection removes the selected application.
func (s *Store) ClearSelection() {
	s.update(domain.Preference{HapticEnabled: s.HapticEnabled()})
}

// SetHaptic toggles haptic feedback and keeps the selection.
func (s *Store) SetHaptic(enabled bool) {
	s.update(domain.Preference{SelectedApplicationID: s.Get().SelectedApplicationID, HapticEnabled: enabled})
}

// Subscribe registers a listener invoked synchronously after every change,
// after the value has been persisted.
func (s *Store) Subscribe(listener func(domain.Preference)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Store) update(pref domain.Preference) {
	s.mu.Lock()
	s.pref = pref
	listeners := make([]func(domain.Preference), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, listener := range listeners {
		listener(pref)
	}
}

func (s *Store) load() {
	if s.kv == nil {
		return
	}

	if raw, ok, err := s.kv.Get(HapticFeedbackKey); err != nil {
		s.logger.Warn("loading haptic preference", "error", err)
	} else if ok {
		if enabled, err := strconv.ParseBool(string(raw)); err == nil {
			s.pref.HapticEnabled = enabled
		}
	}

	raw, ok, err := s.kv.Get(SelectedApplicationKey)
	if err != nil {
		s.logger.Warn("loading selected application", "error", err)
		return
	}
	if !ok {
		return
	}

	var app domain.PaymentApplication
	if err := json.Unmarshal(raw, &app); err != nil {
		s.logger.Warn("decoding selected application", "error", err)
		return
	}
	if _, ok := s.catalog.Lookup(app.ID); !ok {
		s.logger.Warn("selected application is no longer in the catalog", "application", app.ID)
		return
	}
	s.pref.SelectedApplicationID = app.ID
}

func (s *Store) persist(pref domain.Preference) {
	if s.kv == nil {
		return
	}

	if err := s.kv.Set(HapticFeedbackKey, []byte(strconv.FormatBool(pref.HapticEnabled))); err != nil {
		s.logger.Warn("saving haptic preference", "error", err)
	}

	app, ok := s.catalog.Lookup(pref.SelectedApplicationID)
	if !ok {
		if err := s.kv.Remove(SelectedApplicationKey); err != nil {
			s.logger.Warn("removing selected application", "error", err)
		}
		return
	}

	encoded, err := json.Marshal(app)
	if err != nil {
		s.logger.Warn("encoding selected application", "error", err)
		return
	}
	if err := s.kv.Set(SelectedApplicationKey, encoded); err != nil {
		s.logger.Warn("saving selected application", "error", err)
	}
}
