package domain

// Preference is the persisted user preference.
type Preference struct {
	SelectedApplicationID string // Empty when no application is selected.
	HapticEnabled         bool   // Vibrate when a code is delivered.
}

// HasSelection reports whether an application has been selected.
func (p Preference) HasSelection() bool {
	return p.SelectedApplicationID != ""
}

// KeyValueStore is the persistent key-value collaborator backing the preference store.
type KeyValueStore interface {
	// Get returns the value stored for key. The boolean is false when the key is absent.
	Get(key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(key string) error
}
