package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScanEvent is a single decoded code delivered by the capture collaborator.
// It is never persisted and is consumed exactly once by the dispatcher.
type ScanEvent struct {
	ID         uuid.UUID // Identifier used to correlate log entries for this scan.
	Text       string    // Raw decoded text.
	CapturedAt time.Time // Time at which the code was captured.
}

// Capture is the camera / capture collaborator. It delivers decoded text
// to a single handler; Start must not deliver events before it returns.
type Capture interface {
	// Start begins the capture stream and registers the handler that receives decoded codes.
	Start(handler func(code string)) error
	// Stop ends the capture stream.
	Stop() error
}

// Haptics triggers a short vibration when a code is delivered.
type Haptics interface {
	Vibrate()
}
