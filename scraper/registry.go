package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"priceradar/config"
)

// ErrUnsupportedRetailer is the soft failure for retailer ids or domains the
// registry doesn't know; the orchestrator records it and keeps going.
var ErrUnsupportedRetailer = errors.New("unsupported retailer")

// Registry hands out one memoized adapter per retailer id. Adapters are
// constructed lazily on first use and shared afterwards so rotation state and
// the browser session carry across calls. Built once at process start and
// passed into the orchestrator.
type Registry struct {
	fetcher    *Fetcher
	renderer   *Renderer
	maxResults int

	mu       sync.Mutex
	adapters map[string]SourceAdapter
}

// RegistryOptions configures adapter construction.
type RegistryOptions struct {
	FetchTimeout  time.Duration
	MaxResults    int
	RenderEnabled bool
}

// NewRegistry builds an empty registry; adapters appear on demand.
func NewRegistry(opts RegistryOptions) *Registry {
	var renderer *Renderer
	if opts.RenderEnabled {
		renderer = NewRenderer()
	}
	return &Registry{
		fetcher:    NewFetcher(opts.FetchTimeout),
		renderer:   renderer,
		maxResults: opts.MaxResults,
		adapters:   make(map[string]SourceAdapter),
	}
}

// Adapter returns the adapter for a retailer id, constructing it on first
// use. Unknown ids return ErrUnsupportedRetailer.
func (r *Registry) Adapter(retailerID string) (SourceAdapter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if adapter, ok := r.adapters[retailerID]; ok {
		return adapter, nil
	}

	retailer, ok := config.RetailerByID(retailerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRetailer, retailerID)
	}

	adapter := newRulesAdapter(retailer, r.fetcher, r.renderer, r.maxResults)
	r.adapters[retailerID] = adapter
	return adapter, nil
}

// ResolveURL maps a direct product URL to its owning retailer. Hosts outside
// the retailer allow-list fail closed before any network call; this is the
// SSRF boundary for caller-supplied URLs.
func (r *Registry) ResolveURL(rawURL string) (config.Retailer, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return config.Retailer{}, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return config.Retailer{}, fmt.Errorf("%w: unsupported scheme %q", ErrUnsupportedRetailer, u.Scheme)
	}

	retailer, ok := config.RetailerByDomain(u.Hostname())
	if !ok {
		return config.Retailer{}, fmt.Errorf("%w: domain %s", ErrUnsupportedRetailer, u.Hostname())
	}
	return retailer, nil
}

// Close releases shared adapter resources (the headless browser).
func (r *Registry) Close() {
	if r.renderer != nil {
		r.renderer.Close()
	}
}
