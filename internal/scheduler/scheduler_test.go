package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noop(context.Context) error { return nil }

func TestValidate(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, zap.NewNop())
	for _, ok := range []string{"0 * * * *", "@hourly", "@every 55m", "CRON_TZ=Europe/Berlin 30 23 * * *"} {
		assert.NoError(t, s.Validate(ok), ok)
	}
	for _, bad := range []string{"", "61 * * * *", "* * * *", "0 0 * * * *"} {
		assert.Error(t, s.Validate(bad), bad)
	}
}

func TestAddRejectsDuplicatesAndIncompleteJobs(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)
	require.NoError(t, s.Add(Job{Name: "hourly", Spec: "0 * * * *", Run: noop}))
	require.Error(t, s.Add(Job{Name: "hourly", Spec: "5 * * * *", Run: noop}))
	require.Error(t, s.Add(Job{Name: "", Spec: "0 * * * *", Run: noop}))
	require.Error(t, s.Add(Job{Name: "x", Spec: "0 * * * *"}))
	require.Error(t, s.Add(Job{Name: "bad", Spec: "whenever", Run: noop}))
}

func TestNextActivation(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)
	require.NoError(t, s.Add(Job{Name: "hourly", Spec: "0 * * * *", Run: noop}))
	s.Start()
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	require.Eventually(t, func() bool {
		_, ok := s.Next("hourly")
		return ok
	}, time.Second, 10*time.Millisecond)

	next, _ := s.Next("hourly")
	assert.Equal(t, 0, next.Minute())
	assert.Equal(t, 0, next.Second())
	assert.True(t, next.After(time.Now()))

	_, ok := s.Next("missing")
	assert.False(t, ok)
}

func TestJobsRunAndFailuresAreLogged(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)
	ran := make(chan struct{}, 4)
	require.NoError(t, s.Add(Job{Name: "fast", Spec: "@every 1s", Run: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("scrape failed")
	}}))
	s.Start()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("expected job to run")
	}
	require.NoError(t, s.Stop(context.Background()))
}

func TestStopCancelsRunningJobs(t *testing.T) {
	t.Parallel()

	s := New(time.UTC, nil)
	started := make(chan struct{})
	finished := make(chan error, 1)
	require.NoError(t, s.Add(Job{Name: "slow", Spec: "@every 1s", Run: func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
			return nil
		}
		<-ctx.Done()
		finished <- ctx.Err()
		return ctx.Err()
	}}))
	s.Start()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("expected job to start")
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.ErrorIs(t, <-finished, context.Canceled)
}
