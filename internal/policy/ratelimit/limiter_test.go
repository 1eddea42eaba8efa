package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

type countingFetcher struct {
	calls int
}

func (c *countingFetcher) Fetch(_ context.Context, url string) (tracker.Page, error) {
	c.calls++
	return tracker.Page{URL: url, StatusCode: 200}, nil
}

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 100ms spacing, burst 1.
	l := New(Config{MinInterval: 100 * time.Millisecond, Burst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/foo"))
	if time.Since(start) > 50*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://example.com/bar"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "second call on same host should be delayed")

	start = time.Now()
	require.NoError(t, l.Wait(ctx, "https://other.example/"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "hosts have independent buckets")
}

func TestLimiter_ContextCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{MinInterval: time.Hour})
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://example.com")
	require.Error(t, err)
}

func TestLimiter_DisabledNeverWaits(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	start := time.Now()
	for range 50 {
		require.NoError(t, l.Wait(context.Background(), "https://example.com"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestFetcher_DelegatesAfterToken(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{}
	f := NewFetcher(next, New(Config{MinInterval: time.Hour}))

	page, err := f.Fetch(context.Background(), "https://example.com/website/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/website/", page.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Fetch(ctx, "https://example.com/website/")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, next.calls)
}
