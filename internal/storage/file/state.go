package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// StateStore keeps tracker.State in a JSON file.
type StateStore struct {
	path   string
	logger *zap.Logger
}

// NewStateStore returns a store backed by path.
func NewStateStore(path string, logger *zap.Logger) (*StateStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateStore{path: path, logger: logger}, nil
}

// LoadState reads the state file. A missing or unreadable file yields an
// empty state; a broken file is logged and then ignored.
func (s *StateStore) LoadState(ctx context.Context) (tracker.State, error) {
	if err := ctx.Err(); err != nil {
		return tracker.State{}, fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("State file unreadable; starting fresh", zap.String("path", s.path), zap.Error(err))
		}
		return tracker.NewState(), nil
	}
	var state tracker.State
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("State file corrupt; starting fresh", zap.String("path", s.path), zap.Error(err))
		return tracker.NewState(), nil
	}
	state.Normalize()
	return state, nil
}

// SaveState writes the state as indented JSON.
func (s *StateStore) SaveState(ctx context.Context, state tracker.State) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	state.Normalize()
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := writeAtomic(s.path, payload); err != nil {
		return fmt.Errorf("write state %s: %w", s.path, err)
	}
	return nil
}
