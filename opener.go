package upiscan

import (
	"context"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/tfkr-ae/upiscan/domain"
)

var _ domain.Opener = (*DesktopOpener)(nil)

// DesktopOpener opens deep links by running the handler command configured for the
// link's scheme. On linux, schemes without a configured handler fall back to the
// desktop's registered x-scheme-handler through xdg-open.
type DesktopOpener struct {
	goos     string
	handlers []HandlerConfig
	lookPath func(file string) (string, error)
	command  func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewDesktopOpener creates an opener for the running OS using the handlers in cfg.
func NewDesktopOpener(cfg *Config) *DesktopOpener {
	opener := &DesktopOpener{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		command:  exec.CommandContext,
	}
	if cfg != nil {
		opener.handlers = cfg.Handlers
	}
	return opener
}

// handlerCommand returns the command line that opens scheme, or nil.
func (o *DesktopOpener) handlerCommand(scheme string) []string {
	for _, handler := range o.handlers {
		if handler.OS != o.goos || !strings.EqualFold(handler.Scheme, scheme) {
			continue
		}
		fields := strings.Fields(handler.Command)
		if len(fields) == 0 {
			continue
		}
		if _, err := o.lookPath(fields[0]); err == nil {
			return fields
		}
	}

	if o.goos == "linux" && o.systemHandler(scheme) {
		return []string{"xdg-open"}
	}
	return nil
}

// systemHandler asks xdg-mime whether a desktop entry is registered for scheme.
func (o *DesktopOpener) systemHandler(scheme string) bool {
	if _, err := o.lookPath("xdg-mime"); err != nil {
		return false
	}
	if _, err := o.lookPath("xdg-open"); err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := o.command(ctx, "xdg-mime", "query", "default", "x-scheme-handler/"+strings.ToLower(scheme)).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(out)) != ""
}

// CanOpen reports whether a handler is available for the URL's scheme.
func (o *DesktopOpener) CanOpen(u *url.URL) bool {
	if u == nil || u.Scheme == "" {
		return false
	}
	return o.handlerCommand(u.Scheme) != nil
}

// Open starts the handler for u and reports whether it exited successfully.
// The completion runs on a separate goroutine.
func (o *DesktopOpener) Open(u *url.URL, completion func(success bool)) {
	fields := o.handlerCommand(u.Scheme)
	if fields == nil {
		go completion(false)
		return
	}

	args := append(fields[1:len(fields):len(fields)], u.String())
	cmd := o.command(context.Background(), fields[0], args...)
	if err := cmd.Start(); err != nil {
		go completion(false)
		return
	}

	go func() {
		completion(cmd.Wait() == nil)
	}()
}
