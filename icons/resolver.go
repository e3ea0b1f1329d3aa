// Package icons resolves payment application icon URLs from the icon lookup endpoint.
//
// The Resolver caches resolved URLs for the lifetime of the process and coalesces
// concurrent requests: at most one lookup is in flight per package identifier. Failed
// lookups are remembered and never retried; callers fall back to the catalog icon
// whenever Icon reports no entry.
package icons

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/tfkr-ae/upiscan/domain"
)

const (
	// DefaultEndpoint is the icon lookup endpoint.
	DefaultEndpoint = "https://itunes.apple.com/lookup"
	// DefaultCountry is the store country the lookup is made against.
	DefaultCountry = "in"
)

// Resolver fetches and caches icon URLs keyed by package identifier.
type Resolver struct {
	client   *http.Client
	endpoint string
	country  string
	logger   *slog.Logger
	onUpdate func(packageID, iconURL string)

	mu       sync.Mutex
	cache    map[string]string
	inflight map[string]struct{}
	failed   map[string]struct{}
	fetches  int
	wg       sync.WaitGroup
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHTTPClient sets the client used for lookups.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithEndpoint overrides the lookup endpoint.
func WithEndpoint(endpoint string) Option {
	return func(r *Resolver) {
		if endpoint != "" {
			r.endpoint = endpoint
		}
	}
}

// WithCountry overrides the store country.
func WithCountry(country string) Option {
	return func(r *Resolver) {
		if country != "" {
			r.country = country
		}
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithUpdateHandler registers a function called after an icon URL is cached.
func WithUpdateHandler(handler func(packageID, iconURL string)) Option {
	return func(r *Resolver) {
		r.onUpdate = handler
	}
}

// NewResolver creates a Resolver with an empty cache.
func NewResolver(options ...Option) *Resolver {
	r := &Resolver{
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: DefaultEndpoint,
		country:  DefaultCountry,
		logger:   slog.New(slog.DiscardHandler),
		cache:    make(map[string]string),
		inflight: make(map[string]struct{}),
		failed:   make(map[string]struct{}),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Resolve starts a lookup for packageID unless it is already cached, in flight,
// or has failed before. It does not wait for the lookup to finish.
func (r *Resolver) Resolve(packageID string) {
	r.mu.Lock()
	if _, ok := r.cache[packageID]; ok {
		r.mu.Unlock()
		return
	}
	if _, ok := r.inflight[packageID]; ok {
		r.mu.Unlock()
		return
	}
	if _, ok := r.failed[packageID]; ok {
		r.mu.Unlock()
		return
	}
	r.inflight[packageID] = struct{}{}
	r.fetches++
	r.wg.Add(1)
	r.mu.Unlock()

	go r.fetch(packageID)
}

// Preload calls Resolve for every application's package identifier.
func (r *Resolver) Preload(apps []domain.PaymentApplication) {
	for _, app := range apps {
		r.Resolve(app.PackageID)
	}
}

// Icon returns the cached icon URL for packageID.
func (r *Resolver) Icon(packageID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	iconURL, ok := r.cache[packageID]
	return iconURL, ok
}

// Snapshot returns a copy of the cache.
func (r *Resolver) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[string]string, len(r.cache))
	for packageID, iconURL := range r.cache {
		snapshot[packageID] = iconURL
	}
	return snapshot
}

// Fetches returns the number of lookups started since the Resolver was created.
func (r *Resolver) Fetches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

// Wait blocks until every in-flight lookup has completed.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

func (r *Resolver) fetch(packageID string) {
	defer r.wg.Done()

	iconURL, err := r.lookup(context.Background(), packageID)

	r.mu.Lock()
	delete(r.inflight, packageID)
	if err != nil {
		r.failed[packageID] = struct{}{}
	} else {
		r.cache[packageID] = iconURL
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Debug("icon lookup failed, using fallback", "package", packageID, "error", err)
		return
	}
	if r.onUpdate != nil {
		r.onUpdate(packageID, iconURL)
	}
}

func (r *Resolver) lookup(ctx context.Context, packageID string) (string, error) {
	lookupURL, err := url.Parse(r.endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing lookup endpoint %s : %w", r.endpoint, err)
	}
	query := lookupURL.Query()
	query.Set("bundleId", packageID)
	query.Set("country", r.country)
	lookupURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request : %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")

	res, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("looking up %s : %w", packageID, err)
	}
	defer res.Body.Close()

	lookup, err := decodeLookup(res)
	if err != nil {
		return "", fmt.Errorf("decoding lookup for %s : %w", packageID, err)
	}
	return lookup.Artwork()
}
