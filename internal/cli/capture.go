package cli

import (
	"bufio"
	"io"
	"strings"
	"sync"

	"github.com/tfkr-ae/upiscan/domain"
)

var _ domain.Capture = (*lineCapture)(nil)

// lineCapture treats each non-empty line of a reader as a decoded code.
type lineCapture struct {
	r        io.Reader
	started  chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newLineCapture(r io.Reader) *lineCapture {
	return &lineCapture{
		r:       r,
		started: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start reads lines on a new goroutine. No line is delivered before Start returns.
func (c *lineCapture) Start(handler func(code string)) error {
	go func() {
		defer close(c.done)
		<-c.started

		lines := bufio.NewScanner(c.r)
		for lines.Scan() {
			select {
			case <-c.stop:
				return
			default:
			}
			line := strings.TrimSpace(lines.Text())
			if line == "" {
				continue
			}
			handler(line)
		}
	}()
	close(c.started)
	return nil
}

// Stop ends delivery after the current line.
func (c *lineCapture) Stop() error {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	return nil
}

// Done is closed once the reader is exhausted or the capture is stopped.
func (c *lineCapture) Done() <-chan struct{} {
	return c.done
}
