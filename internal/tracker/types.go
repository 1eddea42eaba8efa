package tracker

import (
	"fmt"
	"strings"
	"time"
)

// Status is the last observed presence of a member.
type Status string

// Presence values persisted in the state file.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Mode selects what a pass does.
type Mode string

// Supported pass modes.
const (
	ModeAuto   Mode = "auto"
	ModeHourly Mode = "hourly"
	ModeDaily  Mode = "daily"
)

// ParseMode normalizes a mode string. Empty input means ModeAuto.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeHourly, ModeDaily:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, hourly or daily)", raw)
	}
}

// State is the persisted tracking state. The JSON layout is shared with
// earlier versions of the tracker so existing state files keep working.
type State struct {
	LastSeen      map[string]int64  `json:"last_seen"`
	LastStatus    map[string]Status `json:"last_status"`
	LastDailyDate string            `json:"last_daily_date"`
}

// NewState returns an empty state with initialized maps.
func NewState() State {
	return State{
		LastSeen:   map[string]int64{},
		LastStatus: map[string]Status{},
	}
}

// Normalize replaces nil maps so callers can write into them.
func (s *State) Normalize() {
	if s.LastSeen == nil {
		s.LastSeen = map[string]int64{}
	}
	if s.LastStatus == nil {
		s.LastStatus = map[string]Status{}
	}
}

// Observe folds one scrape into the state. Every member gets defaults
// (never seen, offline); online names are stamped with nowUnix; members not
// online are marked offline.
func (s *State) Observe(members []string, online map[string]struct{}, nowUnix int64) {
	s.Normalize()
	for _, name := range members {
		if _, ok := s.LastSeen[name]; !ok {
			s.LastSeen[name] = 0
		}
		if _, ok := s.LastStatus[name]; !ok {
			s.LastStatus[name] = StatusOffline
		}
	}
	for name := range online {
		s.LastSeen[name] = nowUnix
		s.LastStatus[name] = StatusOnline
	}
	for _, name := range members {
		if _, ok := online[name]; !ok {
			s.LastStatus[name] = StatusOffline
		}
	}
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	out := State{
		LastSeen:      make(map[string]int64, len(s.LastSeen)),
		LastStatus:    make(map[string]Status, len(s.LastStatus)),
		LastDailyDate: s.LastDailyDate,
	}
	for k, v := range s.LastSeen {
		out.LastSeen[k] = v
	}
	for k, v := range s.LastStatus {
		out.LastStatus[k] = v
	}
	return out
}

// Page is a fetched homepage.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Duration   time.Duration
}

// Observation is one member's status as recorded by a single pass.
type Observation struct {
	RunID      string
	Name       string
	Status     Status
	LastSeen   int64
	ObservedAt time.Time
}

// MemberView is a read model of one tracked member.
type MemberView struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// RunResult summarizes a completed pass.
type RunResult struct {
	RunID       string   `json:"run_id"`
	Requested   Mode     `json:"requested_mode"`
	Mode        Mode     `json:"mode"`
	TableFound  bool     `json:"table_found"`
	Online      []string `json:"online"`
	NewMembers  []string `json:"new_members,omitempty"`
	Tracked     int      `json:"tracked"`
	SummarySent bool     `json:"summary_sent"`
}
