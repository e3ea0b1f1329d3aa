// Package upiscan routes scanned UPI QR codes into the user's chosen payment application.
// It is designed to be decoupled from any UI: the camera, the OS launcher, persistence and
// haptics are collaborators supplied through options, and outcomes are reported as Events.
//
// The core functionality includes:
//   - Debounced scan dispatch with a cooldown window
//   - Rewriting of upi:// URIs into application deep links
//   - Launching the selected application through the OS
//   - Icon lookup with a process-wide cache
//   - Preference and activity log storage in SQLite
package upiscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/upiscan/catalog"
	"github.com/tfkr-ae/upiscan/clock"
	"github.com/tfkr-ae/upiscan/core"
	"github.com/tfkr-ae/upiscan/dispatch"
	"github.com/tfkr-ae/upiscan/domain"
	"github.com/tfkr-ae/upiscan/icons"
	"github.com/tfkr-ae/upiscan/launcher"
	"github.com/tfkr-ae/upiscan/prefs"
)

var (
	// ErrClosed is returned once the scanner has been closed.
	ErrClosed = errors.New("scanner is closed")
	// ErrNoCapture is returned when capture is started without a capture collaborator.
	ErrNoCapture = errors.New("no capture configured")
)

// Repository is the storage consumed by the scanner: the preference key-value store,
// the activity log and its statistics.
type Repository interface {
	domain.KeyValueStore
	domain.LogRepository
	domain.StatsRepository
	Close() error
}

// Scanner is the main struct that wires the pipeline together. All dispatch state is
// owned by the goroutine running Run; other goroutines hand work to it.
type Scanner struct {
	ConfigDir      string            // The configuration directory
	Config         *Config           // The scanner configuration
	Logger         *slog.Logger      // Structured logger, never nil
	Repo           Repository        // DB Repository Interface
	Catalog        *catalog.Catalog  // Supported payment applications
	DBWriteChannel chan *domain.Log  // Activity log write channel
	OnEvent        func(Event) error // Function to be ran on each event, on the main loop

	kv      domain.KeyValueStore
	opener  domain.Opener
	capture domain.Capture
	haptics domain.Haptics
	client  *http.Client
	clock   clock.Clock

	prefs      *prefs.Store
	resolver   *icons.Resolver
	dispatcher *dispatch.Dispatcher
	launcher   *launcher.Launcher

	scans    chan domain.ScanEvent
	posted   chan func()
	lastCode *string

	done       chan struct{}
	closeOnce  sync.Once
	logMu      sync.RWMutex
	logClosed  bool
	writerDone chan struct{}
}

// New creates a new Scanner with the default catalog and applies any provided options.
// The pipeline components are assembled after the options, so they observe the
// configured collaborators, clock and Config.
func New(options ...func(*Scanner) error) (*Scanner, error) {
	scanner := &Scanner{
		Logger:         slog.New(slog.DiscardHandler),
		Catalog:        catalog.Default(),
		DBWriteChannel: make(chan *domain.Log, 10),
		clock:          clock.System(),
		scans:          make(chan domain.ScanEvent, 1),
		posted:         make(chan func(), 16),
		done:           make(chan struct{}),
		writerDone:     make(chan struct{}),
	}
	err := scanner.WithOptions(options...)
	if err != nil {
		return nil, err
	}
	scanner.assemble()
	return scanner, nil
}

func (s *Scanner) assemble() {
	cooldown := dispatch.DefaultCooldown
	flagDelay := launcher.DefaultFlagDelay
	endpoint, country := icons.DefaultEndpoint, icons.DefaultCountry
	timeout := 10 * time.Second
	if s.Config != nil {
		cooldown = s.Config.ScanCooldown
		flagDelay = s.Config.LaunchFlagDelay
		endpoint, country = s.Config.IconLookupURL, s.Config.IconCountry
		if s.Config.IconTimeout > 0 {
			timeout = s.Config.IconTimeout
		}
		if s.opener == nil {
			s.opener = NewDesktopOpener(s.Config)
		}
	}

	kv := s.kv
	if kv == nil && s.Repo != nil {
		kv = s.Repo
	}
	if s.client == nil {
		s.client = &http.Client{Transport: newLookupTransport(), Timeout: timeout}
	}

	s.prefs = prefs.New(kv, s.Catalog, prefs.WithLogger(s.Logger))
	s.prefs.Subscribe(s.preferenceChanged)

	s.dispatcher = dispatch.New(s.prefs,
		dispatch.WithCooldown(cooldown),
		dispatch.WithClock(s.clock),
		dispatch.WithResetHandler(func() {
			s.post(s.resetCode)
		}),
	)

	s.launcher = launcher.New(s.opener,
		launcher.WithFlagDelay(flagDelay),
		launcher.WithClock(s.clock),
		launcher.WithLogger(s.Logger),
	)
	s.launcher.OnSettled(func() {
		s.post(func() {
			s.emit(Event{Kind: EventLaunchSettled})
		})
	})

	s.resolver = icons.NewResolver(
		icons.WithHTTPClient(s.client),
		icons.WithEndpoint(endpoint),
		icons.WithCountry(country),
		icons.WithLogger(s.Logger),
		icons.WithUpdateHandler(func(packageID, iconURL string) {
			s.Logger.Debug("icon resolved", "package", packageID, "url", iconURL)
		}),
	)

	go s.WriteToDB()
}

// Run is the main loop. It consumes scans handed off by Deliver and callbacks posted by
// timers and launch completions until ctx is done or the scanner is closed.
func (s *Scanner) Run(ctx context.Context) error {
	for {
		// posted callbacks go first so a reset is observed before the next scan
		select {
		case fn := <-s.posted:
			fn()
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return ErrClosed
		case fn := <-s.posted:
			fn()
		case event := <-s.scans:
			s.handle(event)
		}
	}
}

// Deliver is the capture handler. It may be called from any goroutine and blocks until
// the main loop has room for the scan.
func (s *Scanner) Deliver(text string) {
	if s.haptics != nil && s.prefs.HapticEnabled() {
		s.haptics.Vibrate()
	}

	id, err := uuid.NewV7()
	if err != nil {
		s.Logger.Error("generating scan id", "error", err)
		return
	}
	event := domain.ScanEvent{ID: id, Text: text, CapturedAt: s.clock.Now()}

	select {
	case s.scans <- event:
	case <-s.done:
	}
}

func (s *Scanner) post(fn func()) {
	select {
	case s.posted <- fn:
	case <-s.done:
	}
}

func (s *Scanner) resetCode() {
	s.lastCode = nil
}

func (s *Scanner) handle(event domain.ScanEvent) {
	if s.repeated(event) {
		return
	}

	outcome, accepted := s.dispatcher.Submit(event)
	if !accepted {
		s.Logger.Debug("scan suppressed", "scan_id", event.ID)
		return
	}
	code := event.Text
	s.lastCode = &code

	switch outcome.Kind {
	case dispatch.NoAppSelected:
		s.emit(Event{Kind: EventNoAppSelected, ScanID: event.ID, Message: outcome.Message(), Err: outcome.Err})
	case dispatch.ParseFailed:
		s.emit(Event{Kind: EventParseFailed, ScanID: event.ID, Application: outcome.Application, Message: outcome.Message(), Err: outcome.Err})
	case dispatch.ReadyToLaunch:
		s.launch(outcome)
	}
}

// repeated reports whether event carries the last accepted code while that scan's
// cooldown is still running.
func (s *Scanner) repeated(event domain.ScanEvent) bool {
	if s.lastCode == nil || *s.lastCode != event.Text {
		return false
	}
	last, ok := s.dispatcher.LastAccepted()
	return ok && event.CapturedAt.Sub(last) < s.dispatcher.Cooldown()
}

func (s *Scanner) launch(outcome dispatch.Outcome) {
	app, scanID := outcome.Application, outcome.Event.ID

	err := s.launcher.Launch(outcome.DeepLink, app, func(err error) {
		s.post(func() {
			if err == nil {
				s.Logger.Debug("launch completed", "application", app.ID, "scan_id", scanID)
				return
			}
			s.emit(Event{Kind: EventLaunchFailed, ScanID: scanID, Application: app, DeepLink: outcome.DeepLink, Message: launchMessage(err), Err: err})
		})
	})
	if err != nil {
		s.emit(Event{Kind: EventLaunchFailed, ScanID: scanID, Application: app, DeepLink: outcome.DeepLink, Message: launchMessage(err), Err: err})
		return
	}

	s.emit(Event{Kind: EventOpened, ScanID: scanID, Application: app, DeepLink: outcome.DeepLink, Message: fmt.Sprintf("Opening %s", app.DisplayName)})
}

func launchMessage(err error) string {
	var launchErr *launcher.LaunchError
	if errors.As(err, &launchErr) {
		return launchErr.Message()
	}
	return err.Error()
}

func (s *Scanner) emit(event Event) {
	level := "INFO"
	switch event.Kind {
	case EventNoAppSelected, EventParseFailed:
		level = "WARN"
	case EventLaunchFailed:
		level = "ERROR"
	}

	logContext := map[string]any{"event": event.Kind.String()}
	if event.Err != nil {
		logContext["error"] = event.Err.Error()
	}
	options := []func(*domain.Log) error{core.LogWithContext(logContext)}
	if event.ScanID != uuid.Nil {
		options = append(options, core.LogWithScanID(event.ScanID))
	}
	if event.Application.ID != "" {
		options = append(options, core.LogWithApplicationID(event.Application.ID))
	}

	message := event.Message
	if message == "" {
		message = event.Kind.String()
	}
	if err := s.WriteLog(level, message, options...); err != nil && !errors.Is(err, ErrClosed) {
		s.Logger.Warn("writing activity log", "error", err)
	}

	if s.OnEvent != nil {
		if err := s.OnEvent(event); err != nil {
			s.Logger.Warn("event handler", "event", event.Kind.String(), "error", err)
		}
	}
}

func (s *Scanner) preferenceChanged(pref domain.Preference) {
	logContext := map[string]any{
		"event":          "preference_changed",
		"haptic_enabled": pref.HapticEnabled,
	}
	options := []func(*domain.Log) error{core.LogWithContext(logContext)}
	if pref.HasSelection() {
		options = append(options, core.LogWithApplicationID(pref.SelectedApplicationID))
	}
	if err := s.WriteLog("INFO", "preference changed", options...); err != nil && !errors.Is(err, ErrClosed) {
		s.Logger.Warn("writing activity log", "error", err)
	}
}

// WriteToDB drains DBWriteChannel into the repository until the scanner is closed.
func (s *Scanner) WriteToDB() {
	defer close(s.writerDone)
	for entry := range s.DBWriteChannel {
		if s.Repo == nil {
			continue
		}
		if err := s.Repo.InsertLog(entry); err != nil {
			s.Logger.Error("inserting log", "error", err)
		}
	}
}

// WriteLog records an activity log entry. The entry is logged through Logger and
// queued for the repository.
func (s *Scanner) WriteLog(level string, message string, options ...func(log *domain.Log) error) error {
	var slogLevel slog.Level
	switch level {
	case "DEBUG":
		slogLevel = slog.LevelDebug
	case "INFO":
		slogLevel = slog.LevelInfo
	case "WARN":
		slogLevel = slog.LevelWarn
	case "ERROR":
		slogLevel = slog.LevelError
	default:
		return fmt.Errorf("level should be either: DEBUG, INFO, WARN, ERROR")
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating new uuid : %w", err)
	}
	log := &domain.Log{
		ID:        id,
		Level:     level,
		Message:   message,
		Timestamp: s.clock.Now(),
	}
	for _, option := range options {
		err := option(log)
		if err != nil {
			return fmt.Errorf("applying log option : %w", err)
		}
	}

	attrs := make([]any, 0, 2*len(log.Context)+4)
	for key, value := range log.Context {
		attrs = append(attrs, key, value)
	}
	if log.ScanID != nil {
		attrs = append(attrs, "scan_id", log.ScanID.String())
	}
	if log.ApplicationID != "" {
		attrs = append(attrs, "application", log.ApplicationID)
	}
	s.Logger.Log(context.Background(), slogLevel, message, attrs...)

	s.logMu.RLock()
	defer s.logMu.RUnlock()
	if s.logClosed {
		return ErrClosed
	}
	s.DBWriteChannel <- log
	return nil
}

// StartCapture starts the capture collaborator on a background goroutine with Deliver
// as its handler.
func (s *Scanner) StartCapture() error {
	if s.capture == nil {
		return ErrNoCapture
	}
	go func() {
		if err := s.capture.Start(s.Deliver); err != nil {
			s.Logger.Error("starting capture", "error", err)
		}
	}()
	return nil
}

// StopCapture stops the capture collaborator on a background goroutine.
func (s *Scanner) StopCapture() error {
	if s.capture == nil {
		return ErrNoCapture
	}
	go func() {
		if err := s.capture.Stop(); err != nil {
			s.Logger.Error("stopping capture", "error", err)
		}
	}()
	return nil
}

// Installed returns the catalog entries the opener reports as launchable, in catalog order.
func (s *Scanner) Installed() []domain.PaymentApplication {
	return s.Catalog.Installed(s.opener)
}

// PreloadIcons starts icon lookups for every installed application.
func (s *Scanner) PreloadIcons() {
	s.resolver.Preload(s.Installed())
}

// Preferences returns the preference store.
func (s *Scanner) Preferences() *prefs.Store {
	return s.prefs
}

// Icons returns the icon resolver.
func (s *Scanner) Icons() *icons.Resolver {
	return s.resolver
}

// LaunchInProgress reports whether a launch was issued within the last flag delay.
func (s *Scanner) LaunchInProgress() bool {
	return s.launcher.InProgress()
}

// Close stops the main loop, flushes the activity log and closes the repository.
func (s *Scanner) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)

		s.logMu.Lock()
		s.logClosed = true
		close(s.DBWriteChannel)
		s.logMu.Unlock()
		<-s.writerDone

		if s.Repo != nil {
			if closeErr := s.Repo.Close(); closeErr != nil {
				err = fmt.Errorf("closing repo : %w", closeErr)
			}
		}
	})
	return err
}
