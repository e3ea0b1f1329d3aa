// Package dispatch turns raw scan events into launch requests.
//
// The Dispatcher applies a cooldown window measured from the last accepted scan,
// resolves the user's selected payment application and rewrites the scanned UPI URI
// into that application's deep link. It holds no locks: it must only be driven from
// a single goroutine.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/tfkr-ae/upiscan/clock"
	"github.com/tfkr-ae/upiscan/domain"
	"github.com/tfkr-ae/upiscan/upi"
)

// DefaultCooldown is the minimum time between two accepted scans.
const DefaultCooldown = 3 * time.Second

// ErrNoAppSelected is returned in an Outcome when no payment application has been selected.
var ErrNoAppSelected = errors.New("no payment application selected")

// PreferenceSource resolves the currently selected payment application.
type PreferenceSource interface {
	Selected() (domain.PaymentApplication, bool)
}

// Kind is the result category of an accepted scan.
type Kind int

const (
	// NoAppSelected means the scan was accepted but there is no application to route it to.
	NoAppSelected Kind = iota
	// ParseFailed means the scanned text is not a usable UPI URI.
	ParseFailed
	// ReadyToLaunch means a deep link was produced for the selected application.
	ReadyToLaunch
)

func (k Kind) String() string {
	switch k {
	case NoAppSelected:
		return "no_app_selected"
	case ParseFailed:
		return "parse_failed"
	case ReadyToLaunch:
		return "ready_to_launch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of an accepted scan.
type Outcome struct {
	Kind        Kind
	Event       domain.ScanEvent
	Application domain.PaymentApplication // Zero for NoAppSelected.
	DeepLink    string                    // Set for ReadyToLaunch.
	Err         error                     // ErrNoAppSelected, or the parse error for ParseFailed.
}

// NeedsSelection reports whether the user should be prompted to select an application.
func (o Outcome) NeedsSelection() bool {
	return o.Kind == NoAppSelected
}

// Message returns the text shown to the user for failed outcomes, or an empty string.
func (o Outcome) Message() string {
	switch o.Kind {
	case NoAppSelected:
		return "Please select a payment app in settings"
	case ParseFailed:
		return "Not a valid UPI QR code"
	default:
		return ""
	}
}

// Dispatcher is the scan debounce state machine.
type Dispatcher struct {
	source       PreferenceSource
	clock        clock.Clock
	cooldown     time.Duration
	lastAccepted *time.Time
	onReset      func()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithCooldown overrides the cooldown window. Non-positive values are ignored.
func WithCooldown(cooldown time.Duration) Option {
	return func(d *Dispatcher) {
		if cooldown > 0 {
			d.cooldown = cooldown
		}
	}
}

// WithClock sets the clock used to schedule the post-scan reset.
func WithClock(c clock.Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithResetHandler registers the function called once the cooldown of an accepted scan has elapsed.
// The handler runs on the clock's timer goroutine.
func WithResetHandler(handler func()) Option {
	return func(d *Dispatcher) {
		d.onReset = handler
	}
}

// New creates a Dispatcher resolving the selected application through source.
func New(source PreferenceSource, options ...Option) *Dispatcher {
	d := &Dispatcher{
		source:   source,
		clock:    clock.System(),
		cooldown: DefaultCooldown,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Cooldown returns the configured cooldown window.
func (d *Dispatcher) Cooldown() time.Duration {
	return d.cooldown
}

// LastAccepted returns the capture time of the last accepted scan.
func (d *Dispatcher) LastAccepted() (time.Time, bool) {
	if d.lastAccepted == nil {
		return time.Time{}, false
	}
	return *d.lastAccepted, true
}

// Submit processes a scan event. The boolean is false when the event falls inside the
// cooldown window; in that case nothing changes and the Outcome is empty.
func (d *Dispatcher) Submit(event domain.ScanEvent) (Outcome, bool) {
	if !d.accepts(event.CapturedAt) {
		return Outcome{}, false
	}

	accepted := event.CapturedAt
	d.lastAccepted = &accepted

	outcome := d.resolve(event)
	d.scheduleReset()
	return outcome, true
}

func (d *Dispatcher) accepts(at time.Time) bool {
	if d.lastAccepted == nil {
		return true
	}
	return at.Sub(*d.lastAccepted) >= d.cooldown
}

func (d *Dispatcher) resolve(event domain.ScanEvent) Outcome {
	var app domain.PaymentApplication
	ok := false
	if d.source != nil {
		app, ok = d.source.Selected()
	}
	if !ok {
		return Outcome{Kind: NoAppSelected, Event: event, Err: ErrNoAppSelected}
	}

	deepLink, err := upi.Transform(event.Text, app.URLScheme)
	if err != nil {
		return Outcome{Kind: ParseFailed, Event: event, Application: app, Err: err}
	}

	return Outcome{Kind: ReadyToLaunch, Event: event, Application: app, DeepLink: deepLink}
}

func (d *Dispatcher) scheduleReset() {
	if d.onReset == nil {
		return
	}
	d.clock.AfterFunc(d.cooldown, d.onReset)
}
