package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bequiet-tracker/internal/metrics"
)

// Config holds the knobs that shape a pass.
type Config struct {
	URL               string
	GuildName         string
	ServerLabel       string
	Location          *time.Location
	Window            DailyWindow
	NotifyTransitions bool
}

// Dependencies bundles the collaborators of a Tracker. History and Snapshots
// may be nil.
type Dependencies struct {
	Fetcher   Fetcher
	State     StateStore
	Members   MemberStore
	Notifier  Notifier
	History   HistoryStore
	Snapshots SnapshotStore
	Clock     Clock
	IDs       IDGenerator
}

// Tracker runs scrape passes.
type Tracker struct {
	cfg    Config
	deps   Dependencies
	logger *zap.Logger
}

// New validates the configuration and returns a Tracker.
func New(cfg Config, deps Dependencies, logger *zap.Logger) (*Tracker, error) {
	switch {
	case cfg.URL == "":
		return nil, errors.New("tracker url is required")
	case cfg.GuildName == "":
		return nil, errors.New("guild name is required")
	case cfg.ServerLabel == "":
		return nil, errors.New("server label is required")
	case deps.Fetcher == nil || deps.State == nil || deps.Members == nil:
		return nil, errors.New("fetcher, state store and member store are required")
	case deps.Notifier == nil || deps.Clock == nil || deps.IDs == nil:
		return nil, errors.New("notifier, clock and id generator are required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Window == (DailyWindow{}) {
		cfg.Window = DefaultDailyWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, deps: deps, logger: logger}, nil
}

// Run executes one pass in the requested mode.
func (t *Tracker) Run(ctx context.Context, requested Mode) (RunResult, error) {
	start := time.Now()
	result, err := t.run(ctx, requested)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case !result.TableFound:
		outcome = "table_missing"
	}
	mode := result.Mode
	if mode == "" {
		mode = requested
	}
	metrics.ObserveRun(string(mode), outcome, time.Since(start))
	return result, err
}

func (t *Tracker) run(ctx context.Context, requested Mode) (RunResult, error) {
	runID, err := t.deps.IDs.NewID()
	if err != nil {
		return RunResult{}, fmt.Errorf("generate run id: %w", err)
	}
	result := RunResult{RunID: runID, Requested: requested}
	logger := t.logger.With(zap.String("run_id", runID))

	now := t.deps.Clock.Now()
	local := now.In(t.cfg.Location)

	state, err := t.deps.State.LoadState(ctx)
	if err != nil {
		return result, fmt.Errorf("load state: %w", err)
	}
	state.Normalize()
	result.Mode = ResolveMode(requested, local, state.LastDailyDate, t.cfg.Window)
	logger = logger.With(zap.String("mode", string(result.Mode)))

	page, err := t.deps.Fetcher.Fetch(ctx, t.cfg.URL)
	if err != nil {
		metrics.ObserveFetch("error", 0)
		return result, fmt.Errorf("fetch %s: %w", t.cfg.URL, err)
	}
	metrics.ObserveFetch("ok", page.Duration)
	t.archive(ctx, logger, page)

	online, err := ParseOnline(page.Body, t.cfg.ServerLabel, t.cfg.GuildName)
	if errors.Is(err, ErrTableNotFound) {
		logger.Warn("Server table not found on homepage", zap.String("server", t.cfg.ServerLabel))
		return result, nil
	}
	if err != nil {
		return result, err
	}
	result.TableFound = true
	onlineSet := toSet(online)
	result.Online = setToSortedSlice(onlineSet)

	members, added, err := t.mergeMembers(ctx, onlineSet)
	if err != nil {
		return result, err
	}
	if len(added) > 0 {
		result.NewMembers = added
		logger.Info("Added to members list", zap.Strings("names", added))
	}

	previous := state.Clone()
	state.Observe(members, onlineSet, now.Unix())
	if err := t.deps.State.SaveState(ctx, state); err != nil {
		return result, fmt.Errorf("save state: %w", err)
	}
	result.Tracked = len(members)
	metrics.SetMembers(len(onlineSet), len(members))
	t.record(ctx, logger, runID, now, members, state)

	switch result.Mode {
	case ModeDaily:
		sent, err := t.sendSummary(ctx, logger, &state, onlineSet, members, now)
		if err != nil {
			return result, err
		}
		result.SummarySent = sent
	default:
		if t.cfg.NotifyTransitions {
			t.sendTransitions(ctx, logger, previous, state, members)
		}
	}

	logger.Info("Pass finished",
		zap.Int("online", len(onlineSet)),
		zap.Int("tracked", result.Tracked),
		zap.Bool("summary_sent", result.SummarySent),
	)
	return result, nil
}

// mergeMembers adds newly seen online names to the roster and returns the
// full roster plus the names that were added, both sorted ignoring case. The
// roster is written on every call so the members file exists after the first
// pass that found the server table, even while it is empty.
func (t *Tracker) mergeMembers(ctx context.Context, online map[string]struct{}) ([]string, []string, error) {
	known, err := t.deps.Members.LoadMembers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load members: %w", err)
	}
	knownSet := toSet(known)
	var added []string
	for name := range online {
		if _, ok := knownSet[name]; !ok {
			added = append(added, name)
			knownSet[name] = struct{}{}
		}
	}
	SortFold(added)
	roster := setToSortedSlice(knownSet)
	if err := t.deps.Members.SaveMembers(ctx, roster); err != nil {
		return nil, nil, fmt.Errorf("save members: %w", err)
	}
	return roster, added, nil
}

func (t *Tracker) sendSummary(
	ctx context.Context,
	logger *zap.Logger,
	state *State,
	online map[string]struct{},
	members []string,
	now time.Time,
) (bool, error) {
	all := toSet(members)
	for name := range state.LastSeen {
		all[name] = struct{}{}
	}
	for name := range online {
		all[name] = struct{}{}
	}

	var postErr error
	if len(all) == 0 {
		postErr = t.deps.Notifier.Post(ctx, EmptySummary(t.cfg.ServerLabel, t.cfg.GuildName))
	} else {
		names := make([]string, 0, len(all))
		for name := range all {
			names = append(names, name)
		}
		SortMembers(names, online, state.LastSeen)
		summary := BuildSummary(t.cfg.ServerLabel, t.cfg.GuildName, names, online, state.LastSeen, now, t.cfg.Location)
		postErr = t.deps.Notifier.PostLong(ctx, summary)
	}
	if postErr != nil {
		metrics.ObserveNotification("summary", "error")
		logger.Warn("Daily summary not delivered", zap.Error(postErr))
		return false, nil
	}
	metrics.ObserveNotification("summary", "sent")

	state.LastDailyDate = now.In(t.cfg.Location).Format(dateLayout)
	if err := t.deps.State.SaveState(ctx, *state); err != nil {
		return true, fmt.Errorf("save state after summary: %w", err)
	}
	return true, nil
}

func (t *Tracker) sendTransitions(ctx context.Context, logger *zap.Logger, before, after State, members []string) {
	var cameOnline, wentOffline []string
	for _, name := range members {
		prev, next := before.LastStatus[name], after.LastStatus[name]
		switch {
		case next == StatusOnline && prev != StatusOnline:
			cameOnline = append(cameOnline, name)
		case next == StatusOffline && prev == StatusOnline:
			wentOffline = append(wentOffline, name)
		}
	}
	msg := BuildTransitions(t.cfg.ServerLabel, t.cfg.GuildName, cameOnline, wentOffline)
	if msg == "" {
		return
	}
	if err := t.deps.Notifier.PostLong(ctx, msg); err != nil {
		metrics.ObserveNotification("transitions", "error")
		logger.Warn("Presence changes not delivered", zap.Error(err))
		return
	}
	metrics.ObserveNotification("transitions", "sent")
}

func (t *Tracker) archive(ctx context.Context, logger *zap.Logger, page Page) {
	if t.deps.Snapshots == nil {
		return
	}
	uri, err := t.deps.Snapshots.SaveSnapshot(ctx, page)
	if err != nil {
		logger.Warn("Failed to archive homepage snapshot", zap.Error(err))
		return
	}
	logger.Debug("Archived homepage snapshot", zap.String("uri", uri))
}

func (t *Tracker) record(ctx context.Context, logger *zap.Logger, runID string, now time.Time, members []string, state State) {
	if t.deps.History == nil || len(members) == 0 {
		return
	}
	observations := make([]Observation, 0, len(members))
	for _, name := range members {
		observations = append(observations, Observation{
			RunID:      runID,
			Name:       name,
			Status:     state.LastStatus[name],
			LastSeen:   state.LastSeen[name],
			ObservedAt: now,
		})
	}
	if err := t.deps.History.RecordObservations(ctx, observations); err != nil {
		logger.Warn("Failed to record observations", zap.Error(err))
	}
}

// Members returns the tracked roster in summary order.
func (t *Tracker) Members(ctx context.Context) ([]MemberView, error) {
	state, err := t.deps.State.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	state.Normalize()
	roster, err := t.deps.Members.LoadMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	all := toSet(roster)
	for name := range state.LastSeen {
		all[name] = struct{}{}
	}
	online := map[string]struct{}{}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
		if state.LastStatus[name] == StatusOnline {
			online[name] = struct{}{}
		}
	}
	SortMembers(names, online, state.LastSeen)

	views := make([]MemberView, 0, len(names))
	for _, name := range names {
		status := state.LastStatus[name]
		if status == "" {
			status = StatusOffline
		}
		views = append(views, MemberView{Name: name, Status: status, LastSeen: state.LastSeen[name]})
	}
	return views, nil
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func setToSortedSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	SortFold(out)
	return out
}
