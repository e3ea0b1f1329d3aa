package upiscan

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tfkr-ae/upiscan/domain"
)

// EventKind identifies what happened to an accepted scan.
type EventKind int

const (
	// EventNoAppSelected is raised when a scan is accepted but no application is selected.
	EventNoAppSelected EventKind = iota
	// EventParseFailed is raised when the scanned text is not a UPI URI.
	EventParseFailed
	// EventOpened is raised once the launch request has been issued.
	EventOpened
	// EventLaunchFailed is raised when the link is malformed, the application is
	// unavailable, or the OS reports that the open failed.
	EventLaunchFailed
	// EventLaunchSettled is raised when the in-progress launch flag clears.
	EventLaunchSettled
)

// String returns the name recorded in the activity log.
func (k EventKind) String() string {
	switch k {
	case EventNoAppSelected:
		return "no_app_selected"
	case EventParseFailed:
		return "parse_failed"
	case EventOpened:
		return "opened"
	case EventLaunchFailed:
		return "launch_failed"
	case EventLaunchSettled:
		return "launch_settled"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is delivered to the event handler on the scanner's main loop.
type Event struct {
	Kind        EventKind
	ScanID      uuid.UUID                 // Zero for EventLaunchSettled.
	Application domain.PaymentApplication // Zero when no application was selected.
	DeepLink    string
	Message     string // User-facing text.
	Err         error
}
