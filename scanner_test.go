package upiscan

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/upiscan/clock"
	"github.com/tfkr-ae/upiscan/dispatch"
	"github.com/tfkr-ae/upiscan/domain"
	"github.com/tfkr-ae/upiscan/launcher"
	"github.com/tfkr-ae/upiscan/upi"
)

type scannerFixture struct {
	s      *Scanner
	clock  *clock.Manual
	opener *fakeOpener
	repo   *memoryRepo
	events []Event
}

// setupScanner builds a scanner driven directly from the test goroutine:
// scans go through handle and posted callbacks are drained after each step.
func setupScanner(t *testing.T, options ...func(*Scanner) error) *scannerFixture {
	t.Helper()

	f := &scannerFixture{
		clock: clock.NewManual(time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC)),
		opener: &fakeOpener{installed: map[string]bool{
			"gpay":    true,
			"phonepe": true,
			"upi":     true,
		}},
		repo: newMemoryRepo(),
	}

	base := []func(*Scanner) error{
		WithClock(f.clock),
		WithOpener(f.opener),
		WithRepo(f.repo),
		WithEventHandler(func(event Event) error {
			f.events = append(f.events, event)
			return nil
		}),
	}

	s, err := New(append(base, options...)...)
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	t.Cleanup(func() { s.Close() })

	f.s = s
	return f
}

func (f *scannerFixture) scan(text string) {
	f.s.handle(domain.ScanEvent{ID: uuid.Must(uuid.NewV7()), Text: text, CapturedAt: f.clock.Now()})
	f.drain()
}

func (f *scannerFixture) drain() {
	for {
		select {
		case fn := <-f.s.posted:
			fn()
		default:
			return
		}
	}
}

func (f *scannerFixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.drain()
}

func (f *scannerFixture) kinds() []EventKind {
	kinds := make([]EventKind, len(f.events))
	for i, event := range f.events {
		kinds[i] = event.Kind
	}
	return kinds
}

func (f *scannerFixture) selectApp(t *testing.T, id string) {
	t.Helper()
	if err := f.s.Preferences().Select(id); err != nil {
		t.Fatalf("selecting %s: %v", id, err)
	}
}

func TestScanner_Handle(t *testing.T) {
	t.Run("should ask for a selection when no app is selected", func(t *testing.T) {
		f := setupScanner(t)

		f.scan("upi://pay?pa=merchant@okaxis")

		if len(f.events) != 1 || f.events[0].Kind != EventNoAppSelected {
			t.Fatalf("\nwanted:\n[no_app_selected]\ngot:\n%v", f.kinds())
		}
		if want := "Please select a payment app in settings"; f.events[0].Message != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, f.events[0].Message)
		}
		if !errors.Is(f.events[0].Err, dispatch.ErrNoAppSelected) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", dispatch.ErrNoAppSelected, f.events[0].Err)
		}
		if len(f.opener.Opened()) != 0 {
			t.Fatalf("\nwanted:\nno launch\ngot:\n%v", f.opener.Opened())
		}
	})

	t.Run("should open the selected app with the rewritten link", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "gpay")

		f.scan("upi://pay?pa=merchant@okaxis&am=10")

		want := "gpay://upi/pay?pa=merchant@okaxis&am=10"
		if got := f.opener.Opened(); len(got) != 1 || got[0] != want {
			t.Fatalf("\nwanted:\n[%s]\ngot:\n%v", want, got)
		}
		if len(f.events) != 1 || f.events[0].Kind != EventOpened {
			t.Fatalf("\nwanted:\n[opened]\ngot:\n%v", f.kinds())
		}
		if f.events[0].DeepLink != want || f.events[0].Application.ID != "gpay" {
			t.Fatalf("\nwanted:\n%s gpay\ngot:\n%+v", want, f.events[0])
		}
		if !f.s.LaunchInProgress() {
			t.Fatalf("wanted the launch to be in progress")
		}

		f.advance(launcher.DefaultFlagDelay)

		if f.s.LaunchInProgress() {
			t.Fatalf("wanted the launch flag to be cleared")
		}
		if len(f.events) != 2 || f.events[1].Kind != EventLaunchSettled {
			t.Fatalf("\nwanted:\n[opened launch_settled]\ngot:\n%v", f.kinds())
		}
	})

	t.Run("should report codes that are not upi uris", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "phonepe")

		f.scan("https://example.com/pay")

		if len(f.events) != 1 || f.events[0].Kind != EventParseFailed {
			t.Fatalf("\nwanted:\n[parse_failed]\ngot:\n%v", f.kinds())
		}
		if want := "Not a valid UPI QR code"; f.events[0].Message != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, f.events[0].Message)
		}
		if !errors.Is(f.events[0].Err, upi.ErrInvalidScheme) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", upi.ErrInvalidScheme, f.events[0].Err)
		}
	})

	t.Run("should report apps that cannot be opened", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "whatsapp")

		f.scan("upi://pay?pa=x@y")

		if len(f.events) != 1 || f.events[0].Kind != EventLaunchFailed {
			t.Fatalf("\nwanted:\n[launch_failed]\ngot:\n%v", f.kinds())
		}
		if !errors.Is(f.events[0].Err, launcher.ErrAppUnavailable) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", launcher.ErrAppUnavailable, f.events[0].Err)
		}
		want := "WhatsApp Pay is not installed or cannot handle this payment"
		if f.events[0].Message != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, f.events[0].Message)
		}
		if f.s.LaunchInProgress() {
			t.Fatalf("wanted no launch in progress")
		}
	})

	t.Run("should report a failed open after the optimistic success", func(t *testing.T) {
		f := setupScanner(t)
		f.opener.fail = true
		f.selectApp(t, "gpay")

		f.scan("upi://pay?pa=x@y")

		got := f.kinds()
		if len(got) != 2 || got[0] != EventOpened || got[1] != EventLaunchFailed {
			t.Fatalf("\nwanted:\n[opened launch_failed]\ngot:\n%v", got)
		}
		if !errors.Is(f.events[1].Err, launcher.ErrLaunchFailed) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", launcher.ErrLaunchFailed, f.events[1].Err)
		}
		if want := "Failed to open Google Pay"; f.events[1].Message != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, f.events[1].Message)
		}
	})

	t.Run("should suppress scans inside the cooldown", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "gpay")

		f.scan("upi://pay?pa=first@y")
		f.advance(time.Second)
		f.scan("upi://pay?pa=second@y")

		if got := f.opener.Opened(); len(got) != 1 {
			t.Fatalf("\nwanted:\n1 launch\ngot:\n%v", got)
		}

		f.advance(dispatch.DefaultCooldown - time.Second)
		f.scan("upi://pay?pa=second@y")

		got := f.opener.Opened()
		if len(got) != 2 || got[1] != "gpay://upi/pay?pa=second@y" {
			t.Fatalf("\nwanted:\n2 launches\ngot:\n%v", got)
		}
	})

	t.Run("should accept the same code again after the reset", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "phonepe")

		f.scan("upi://pay?pa=x@y")
		f.advance(dispatch.DefaultCooldown)
		f.scan("upi://pay?pa=x@y")

		got := f.opener.Opened()
		if len(got) != 2 || got[0] != "phonepe://pay?pa=x@y" || got[1] != got[0] {
			t.Fatalf("\nwanted:\n2 launches of phonepe://pay?pa=x@y\ngot:\n%v", got)
		}
	})

	t.Run("should drop a repeated code inside the cooldown", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "gpay")

		f.scan("upi://pay?pa=x@y")
		first, _ := f.s.dispatcher.LastAccepted()

		f.advance(time.Second)
		f.scan("upi://pay?pa=x@y")

		last, _ := f.s.dispatcher.LastAccepted()
		if !last.Equal(first) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", first, last)
		}
		if got := f.opener.Opened(); len(got) != 1 {
			t.Fatalf("\nwanted:\n1 launch\ngot:\n%v", got)
		}
	})

	t.Run("should accept a repeated code at the end of the cooldown before the reset runs", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "gpay")

		f.scan("upi://pay?pa=x@y")

		// the reset is posted but not drained yet
		f.clock.Advance(dispatch.DefaultCooldown)
		f.s.handle(domain.ScanEvent{ID: uuid.Must(uuid.NewV7()), Text: "upi://pay?pa=x@y", CapturedAt: f.clock.Now()})

		last, _ := f.s.dispatcher.LastAccepted()
		if !last.Equal(f.clock.Now()) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", f.clock.Now(), last)
		}
		if got := f.opener.Opened(); len(got) != 2 {
			t.Fatalf("\nwanted:\n2 launches\ngot:\n%v", got)
		}
	})

	t.Run("should not open an app selected after the scan", func(t *testing.T) {
		f := setupScanner(t)

		f.scan("upi://pay?pa=x@y")
		f.selectApp(t, "gpay")

		if len(f.opener.Opened()) != 0 {
			t.Fatalf("\nwanted:\nno launch\ngot:\n%v", f.opener.Opened())
		}
	})
}

func TestScanner_Deliver(t *testing.T) {
	t.Run("should stamp the scan and vibrate when enabled", func(t *testing.T) {
		haptics := &fakeHaptics{}
		f := setupScanner(t, WithHaptics(haptics))

		f.s.Deliver("upi://pay?pa=x@y")
		event := <-f.s.scans

		if haptics.count.Load() != 1 {
			t.Fatalf("\nwanted:\n1\ngot:\n%d", haptics.count.Load())
		}
		if !event.CapturedAt.Equal(f.clock.Now()) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", f.clock.Now(), event.CapturedAt)
		}
		if event.ID.Version() != 7 {
			t.Fatalf("\nwanted:\n7\ngot:\n%d", event.ID.Version())
		}
		if event.Text != "upi://pay?pa=x@y" {
			t.Fatalf("\nwanted:\nupi://pay?pa=x@y\ngot:\n%s", event.Text)
		}
	})

	t.Run("should not vibrate when disabled", func(t *testing.T) {
		haptics := &fakeHaptics{}
		f := setupScanner(t, WithHaptics(haptics))
		f.s.Preferences().SetHaptic(false)

		f.s.Deliver("upi://pay?pa=x@y")
		<-f.s.scans

		if haptics.count.Load() != 0 {
			t.Fatalf("\nwanted:\n0\ngot:\n%d", haptics.count.Load())
		}
	})

	t.Run("should return once the scanner is closed", func(t *testing.T) {
		f := setupScanner(t)
		f.s.Deliver("first")
		f.s.Close()

		done := make(chan struct{})
		go func() {
			f.s.Deliver("second")
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Deliver blocked after Close")
		}
	})
}

func TestScanner_Run(t *testing.T) {
	t.Run("should route captured codes through the main loop", func(t *testing.T) {
		capture := newFakeCapture()
		events := make(chan Event, 10)
		opener := &fakeOpener{installed: map[string]bool{"paytmmp": true}}
		repo := newMemoryRepo()

		s, err := New(
			WithOpener(opener),
			WithRepo(repo),
			WithCapture(capture),
			WithEventHandler(func(event Event) error {
				events <- event
				return nil
			}),
		)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer s.Close()

		if err := s.Preferences().Select("paytm"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		result := make(chan error, 1)
		go func() {
			result <- s.Run(ctx)
		}()

		if err := s.StartCapture(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		<-capture.started
		capture.emit("UPI://pay?pa=x@y&am=1")

		select {
		case event := <-events:
			if event.Kind != EventOpened {
				t.Fatalf("\nwanted:\nopened\ngot:\n%v", event.Kind)
			}
			if want := "paytmmp://upi/pay?pa=x@y&am=1"; event.DeepLink != want {
				t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, event.DeepLink)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no event was delivered")
		}

		if err := s.StopCapture(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		<-capture.stopped

		cancel()
		if err := <-result; !errors.Is(err, context.Canceled) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", context.Canceled, err)
		}
	})

	t.Run("should accept a code whose suppressed frame was queued across the reset", func(t *testing.T) {
		manual := clock.NewManual(time.Date(2025, 11, 9, 12, 0, 0, 0, time.UTC))
		opener := &fakeOpener{installed: map[string]bool{"phonepe": true}}
		events := make(chan Event, 16)

		s, err := New(
			WithClock(manual),
			WithOpener(opener),
			WithRepo(newMemoryRepo()),
			WithEventHandler(func(event Event) error {
				events <- event
				return nil
			}),
		)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer s.Close()
		if err := s.Preferences().Select("phonepe"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		run := func() (context.CancelFunc, chan error) {
			ctx, cancel := context.WithCancel(context.Background())
			result := make(chan error, 1)
			go func() {
				result <- s.Run(ctx)
			}()
			return cancel, result
		}
		waitOpened := func(link string) {
			t.Helper()
			timeout := time.After(5 * time.Second)
			for {
				select {
				case event := <-events:
					if event.Kind == EventOpened && event.DeepLink == link {
						return
					}
				case <-timeout:
					t.Fatalf("\nwanted:\nopened %s\ngot:\nnothing", link)
				}
			}
		}

		cancel, result := run()
		s.Deliver("upi://pay?pa=a@b")
		waitOpened("phonepe://pay?pa=a@b")
		cancel()
		<-result

		// a frame captured just before the cooldown ends waits in the hand-off
		// while the reset is posted
		manual.Advance(2900 * time.Millisecond)
		s.Deliver("upi://pay?pa=c@d")
		manual.Advance(100 * time.Millisecond)

		cancel, result = run()
		defer func() {
			cancel()
			<-result
		}()

		manual.Advance(time.Second)
		s.Deliver("upi://pay?pa=c@d")
		waitOpened("phonepe://pay?pa=c@d")

		if got := opener.Opened(); len(got) != 2 {
			t.Fatalf("\nwanted:\n2 launches\ngot:\n%v", got)
		}
	})

	t.Run("should stop when the scanner is closed", func(t *testing.T) {
		s, err := New()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		result := make(chan error, 1)
		go func() {
			result <- s.Run(context.Background())
		}()
		s.Close()

		if err := <-result; !errors.Is(err, ErrClosed) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrClosed, err)
		}
	})

	t.Run("should fail to start capture without a collaborator", func(t *testing.T) {
		s, err := New()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		defer s.Close()

		if err := s.StartCapture(); !errors.Is(err, ErrNoCapture) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrNoCapture, err)
		}
		if err := s.StopCapture(); !errors.Is(err, ErrNoCapture) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrNoCapture, err)
		}
	})
}

func TestScanner_WriteLog(t *testing.T) {
	t.Run("should persist events with their scan and application", func(t *testing.T) {
		f := setupScanner(t)
		f.selectApp(t, "gpay")
		f.scan("upi://pay?pa=x@y")

		f.s.Close()

		opened, _ := f.repo.CountByEvent("opened")
		if opened != 1 {
			t.Fatalf("\nwanted:\n1\ngot:\n%d", opened)
		}
		changed, _ := f.repo.CountByEvent("preference_changed")
		if changed != 1 {
			t.Fatalf("\nwanted:\n1\ngot:\n%d", changed)
		}

		logs, _ := f.repo.GetLogs()
		var openedLog *domain.Log
		for _, log := range logs {
			if log.Context["event"] == "opened" {
				openedLog = log
			}
		}
		if openedLog.ScanID == nil || *openedLog.ScanID != f.events[0].ScanID {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", f.events[0].ScanID, openedLog.ScanID)
		}
		if openedLog.ApplicationID != "gpay" || openedLog.Level != "INFO" {
			t.Fatalf("\nwanted:\ngpay INFO\ngot:\n%s %s", openedLog.ApplicationID, openedLog.Level)
		}
		if !f.repo.isClosed() {
			t.Fatalf("wanted the repository to be closed")
		}
	})

	t.Run("should reject unknown levels", func(t *testing.T) {
		f := setupScanner(t)
		if err := f.s.WriteLog("TRACE", "nope"); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should refuse writes after close", func(t *testing.T) {
		f := setupScanner(t)
		f.s.Close()
		if err := f.s.WriteLog("INFO", "late"); !errors.Is(err, ErrClosed) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrClosed, err)
		}
	})
}

func TestScanner_Installed(t *testing.T) {
	t.Run("should list launchable apps in catalog order", func(t *testing.T) {
		f := setupScanner(t)

		got := f.s.Installed()
		want := []string{"gpay", "phonepe", "bhim"}
		if len(got) != len(want) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", want, got)
		}
		for i, app := range got {
			if app.ID != want[i] {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", want, got)
			}
		}
	})
}

func TestScanner_PreloadIcons(t *testing.T) {
	t.Run("should resolve icons for installed apps once", func(t *testing.T) {
		var hits atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"resultCount":1,"results":[{"artworkUrl512":"https://icons.test/%s.png"}]}`, r.URL.Query().Get("bundleId"))
		}))
		defer server.Close()

		f := setupScanner(t,
			WithConfig(&Config{IconLookupURL: server.URL, IconCountry: "in"}),
			WithHTTPClient(server.Client()),
		)

		f.s.PreloadIcons()
		f.s.PreloadIcons()
		f.s.Icons().Wait()

		if got := hits.Load(); got != 3 {
			t.Fatalf("\nwanted:\n3\ngot:\n%d", got)
		}
		want := "https://icons.test/com.google.paisa.png"
		if got, ok := f.s.Icons().Icon("com.google.paisa"); !ok || got != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, got)
		}
	})
}
