package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/bequiet-tracker/internal/tracker"
)

// MemberStore keeps the roster as one name per line.
type MemberStore struct {
	path string
}

// NewMemberStore returns a store backed by path.
func NewMemberStore(path string) (*MemberStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("members file path is required")
	}
	return &MemberStore{path: path}, nil
}

// LoadMembers returns the trimmed, non-empty names in file order, keeping the
// first occurrence of duplicates. A missing file is an empty roster.
func (s *MemberStore) LoadMembers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context canceled: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read members %s: %w", s.path, err)
	}
	seen := map[string]struct{}{}
	var names []string
	for _, line := range strings.Split(string(raw), "\n") {
		name := strings.TrimSpace(line)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// SaveMembers writes the deduplicated roster sorted ignoring case, with a
// trailing newline unless the roster is empty.
func (s *MemberStore) SaveMembers(ctx context.Context, names []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		uniq = append(uniq, n)
	}
	tracker.SortFold(uniq)

	content := strings.Join(uniq, "\n")
	if len(uniq) > 0 {
		content += "\n"
	}
	if err := writeAtomic(s.path, []byte(content)); err != nil {
		return fmt.Errorf("write members %s: %w", s.path, err)
	}
	return nil
}
