// Package ratelimit spaces out homepage fetches per host with a token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/bequiet-tracker/internal/metrics"
	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// Limiter manages per-host rate limits.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the spacing enforced between fetches of one host once
	// the burst is used up. Zero disables limiting.
	MinInterval time.Duration
	Burst       int
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	every := rate.Inf
	if cfg.MinInterval > 0 {
		every = rate.Every(cfg.MinInterval)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
		burst:    burst,
	}
}

// Wait blocks until a token is available for the host of rawURL.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.every, l.burst)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveFetchThrottle(host, delay)
	}
	return nil
}

// Fetcher gates another tracker.Fetcher behind a Limiter.
type Fetcher struct {
	next    tracker.Fetcher
	limiter *Limiter
}

// NewFetcher wraps next.
func NewFetcher(next tracker.Fetcher, limiter *Limiter) *Fetcher {
	return &Fetcher{next: next, limiter: limiter}
}

// Fetch waits for the host's token, then delegates.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (tracker.Page, error) {
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return tracker.Page{}, err
	}
	return f.next.Fetch(ctx, rawURL)
}
