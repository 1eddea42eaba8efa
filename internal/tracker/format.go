package tracker

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HumanDelta renders an elapsed duration in seconds using its two most
// significant units, e.g. "2d 3h", "4h 10m", "12m" or "45s".
func HumanDelta(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	m, s := seconds/60, seconds%60
	h, m := m/60, m%60
	d, h := h/24, h%24
	switch {
	case d > 0:
		return fmt.Sprintf("%dd %dh", d, h)
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm", m)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatTimestamp renders unix seconds as "YYYY-MM-DD HH:MM" in loc.
func FormatTimestamp(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04")
}

// SortMembers orders names online first, then by most recent sighting, then
// alphabetically ignoring case.
func SortMembers(names []string, online map[string]struct{}, lastSeen map[string]int64) {
	sort.SliceStable(names, func(i, j int) bool {
		a, b := names[i], names[j]
		_, aOnline := online[a]
		_, bOnline := online[b]
		if aOnline != bOnline {
			return aOnline
		}
		if lastSeen[a] != lastSeen[b] {
			return lastSeen[a] > lastSeen[b]
		}
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la != lb {
			return la < lb
		}
		return a < b
	})
}

// SortFold sorts names alphabetically ignoring case.
func SortFold(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		la, lb := strings.ToLower(names[i]), strings.ToLower(names[j])
		if la != lb {
			return la < lb
		}
		return names[i] < names[j]
	})
}

func summaryTitle(serverLabel, guild string) string {
	return fmt.Sprintf("**%s – %s last seen**", serverLabel, guild)
}

// EmptySummary is posted when no member has ever been tracked.
func EmptySummary(serverLabel, guild string) string {
	return summaryTitle(serverLabel, guild) + "\nNo members tracked yet."
}

// BuildSummary renders the daily report. names must already be sorted.
func BuildSummary(
	serverLabel, guild string,
	names []string,
	online map[string]struct{},
	lastSeen map[string]int64,
	now time.Time,
	loc *time.Location,
) string {
	var b strings.Builder
	b.WriteString(summaryTitle(serverLabel, guild))
	fmt.Fprintf(&b, " (%s)\n", now.In(loc).Format(dateLayout))
	onlineCount := 0
	for _, name := range names {
		if _, ok := online[name]; ok {
			onlineCount++
		}
	}
	fmt.Fprintf(&b, "Online now: %d/%d\n\n", onlineCount, len(names))
	for _, name := range names {
		b.WriteString(summaryLine(name, online, lastSeen[name], now, loc))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func summaryLine(name string, online map[string]struct{}, seen int64, now time.Time, loc *time.Location) string {
	if _, ok := online[name]; ok {
		return fmt.Sprintf("🟢 %s – online", name)
	}
	if seen <= 0 {
		return fmt.Sprintf("⚫ %s – never seen", name)
	}
	return fmt.Sprintf("⚫ %s – %s (%s ago)", name, FormatTimestamp(seen, loc), HumanDelta(now.Unix()-seen))
}

// BuildTransitions renders the hourly presence changes, or "" if none.
func BuildTransitions(serverLabel, guild string, cameOnline, wentOffline []string) string {
	if len(cameOnline) == 0 && len(wentOffline) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s – %s presence**", serverLabel, guild)
	if len(cameOnline) > 0 {
		fmt.Fprintf(&b, "\n🟢 online: %s", strings.Join(cameOnline, ", "))
	}
	if len(wentOffline) > 0 {
		fmt.Fprintf(&b, "\n⚫ offline: %s", strings.Join(wentOffline, ", "))
	}
	return b.String()
}
