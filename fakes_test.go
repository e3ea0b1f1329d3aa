package upiscan

import (
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/tfkr-ae/upiscan/domain"
)

type fakeOpener struct {
	mu        sync.Mutex
	installed map[string]bool
	fail      bool
	opened    []string
}

func (f *fakeOpener) CanOpen(u *url.URL) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed[u.Scheme]
}

func (f *fakeOpener) Open(u *url.URL, completion func(success bool)) {
	f.mu.Lock()
	f.opened = append(f.opened, u.String())
	fail := f.fail
	f.mu.Unlock()
	completion(!fail)
}

func (f *fakeOpener) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

type fakeHaptics struct {
	count atomic.Int32
}

func (f *fakeHaptics) Vibrate() {
	f.count.Add(1)
}

type fakeCapture struct {
	mu      sync.Mutex
	handler func(code string)
	started chan struct{}
	stopped chan struct{}
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{started: make(chan struct{}), stopped: make(chan struct{})}
}

func (f *fakeCapture) Start(handler func(code string)) error {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	close(f.started)
	return nil
}

func (f *fakeCapture) Stop() error {
	close(f.stopped)
	return nil
}

func (f *fakeCapture) emit(code string) {
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(code)
}

type memoryRepo struct {
	mu       sync.Mutex
	values   map[string][]byte
	logs     []*domain.Log
	closed   bool
	closeErr error
}

var _ Repository = (*memoryRepo)(nil)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{values: make(map[string][]byte)}
}

func (m *memoryRepo) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	return value, ok, nil
}

func (m *memoryRepo) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memoryRepo) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *memoryRepo) InsertLog(log *domain.Log) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryRepo) GetLogs() ([]*domain.Log, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Log(nil), m.logs...), nil
}

func (m *memoryRepo) CountLogs() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logs), nil
}

func (m *memoryRepo) CountByEvent(event string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, log := range m.logs {
		if log.Context["event"] == event {
			count++
		}
	}
	return count, nil
}

func (m *memoryRepo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closeErr != nil {
		return m.closeErr
	}
	m.closed = true
	return nil
}

func (m *memoryRepo) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
