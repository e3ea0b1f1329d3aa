// Package launcher opens payment application deep links through the OS.
package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tfkr-ae/upiscan/clock"
	"github.com/tfkr-ae/upiscan/domain"
)

// DefaultFlagDelay is how long the in-progress flag stays set after a launch request is issued.
const DefaultFlagDelay = 1500 * time.Millisecond

var (
	// ErrMalformedLink is returned when the deep link cannot be parsed as a URL.
	ErrMalformedLink = errors.New("malformed deep link")
	// ErrAppUnavailable is returned when no installed application can handle the deep link.
	ErrAppUnavailable = errors.New("application unavailable")
	// ErrLaunchFailed is reported when the OS could not complete the launch request.
	ErrLaunchFailed = errors.New("launch failed")
)

// LaunchError ties a launch failure to the application it was meant for.
type LaunchError struct {
	Kind        error // One of ErrMalformedLink, ErrAppUnavailable or ErrLaunchFailed.
	Application domain.PaymentApplication
	DeepLink    string
	Err         error // Underlying cause, if any.
}

func (e *LaunchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s : %s : %v", e.Kind, e.Application.DisplayName, e.Err)
	}
	return fmt.Sprintf("%s : %s", e.Kind, e.Application.DisplayName)
}

// Is matches the error against its Kind.
func (e *LaunchError) Is(target error) bool {
	return e.Kind == target
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Message returns the text shown to the user.
func (e *LaunchError) Message() string {
	switch e.Kind {
	case ErrMalformedLink:
		return "Failed to create payment link"
	case ErrAppUnavailable:
		return fmt.Sprintf("%s is not installed or cannot handle this payment", e.Application.DisplayName)
	default:
		return fmt.Sprintf("Failed to open %s", e.Application.DisplayName)
	}
}

// Launcher validates deep links and hands them to the OS opener.
type Launcher struct {
	opener    domain.Opener
	clock     clock.Clock
	flagDelay time.Duration
	logger    *slog.Logger

	inProgress atomic.Bool
	mu         sync.Mutex
	onSettled  func()
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithFlagDelay overrides the in-progress flag delay. Non-positive values are ignored.
func WithFlagDelay(delay time.Duration) Option {
	return func(l *Launcher) {
		if delay > 0 {
			l.flagDelay = delay
		}
	}
}

// WithClock sets the clock used for the in-progress flag timer.
func WithClock(c clock.Clock) Option {
	return func(l *Launcher) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Launcher that opens links through opener.
func New(opener domain.Opener, options ...Option) *Launcher {
	l := &Launcher{
		opener:    opener,
		clock:     clock.System(),
		flagDelay: DefaultFlagDelay,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

// OnSettled registers the function called each time the in-progress flag is cleared.
func (l *Launcher) OnSettled(handler func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onSettled = handler
}

// InProgress reports whether a launch was issued within the last flag delay.
func (l *Launcher) InProgress() bool {
	return l.inProgress.Load()
}

// Launch opens deepLink for app.
//
// A nil return means the request was issued and the launch is optimistically reported as opened.
// The outcome reported by the OS arrives later through done: nil on success, or a
// *LaunchError matching ErrLaunchFailed. done may be nil.
func (l *Launcher) Launch(deepLink string, app domain.PaymentApplication, done func(error)) error {
	target, err := url.Parse(deepLink)
	if err != nil {
		return &LaunchError{Kind: ErrMalformedLink, Application: app, DeepLink: deepLink, Err: err}
	}
	if target.Scheme == "" {
		return &LaunchError{Kind: ErrMalformedLink, Application: app, DeepLink: deepLink}
	}

	if l.opener == nil || !l.opener.CanOpen(target) {
		return &LaunchError{Kind: ErrAppUnavailable, Application: app, DeepLink: deepLink}
	}

	l.inProgress.Store(true)
	l.clock.AfterFunc(l.flagDelay, l.settle)

	l.logger.Debug("issuing launch request", "application", app.ID, "scheme", target.Scheme)
	l.opener.Open(target, func(success bool) {
		if done == nil {
			return
		}
		if !success {
			done(&LaunchError{Kind: ErrLaunchFailed, Application: app, DeepLink: deepLink})
			return
		}
		done(nil)
	})
	return nil
}

func (l *Launcher) settle() {
	l.inProgress.Store(false)

	l.mu.Lock()
	handler := l.onSettled
	l.mu.Unlock()

	if handler != nil {
		handler()
	}
}
