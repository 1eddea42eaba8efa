package tracker

import (
	"context"
	"time"
)

// Fetcher downloads the homepage.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// StateStore persists the tracking state between passes.
type StateStore interface {
	LoadState(ctx context.Context) (State, error)
	SaveState(ctx context.Context, state State) error
}

// MemberStore persists the roster of known guild members.
type MemberStore interface {
	LoadMembers(ctx context.Context) ([]string, error)
	SaveMembers(ctx context.Context, names []string) error
}

// Notifier delivers messages to the chat channel.
type Notifier interface {
	Post(ctx context.Context, content string) error
	PostLong(ctx context.Context, content string) error
}

// HistoryStore records per-pass observations. Optional.
type HistoryStore interface {
	RecordObservations(ctx context.Context, observations []Observation) error
}

// SnapshotStore archives fetched pages. Optional.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, page Page) (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
