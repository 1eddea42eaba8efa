package tracker

import "time"

// DailyWindow is the local time span in which auto mode sends the summary.
type DailyWindow struct {
	Hour        int
	StartMinute int
	EndMinute   int
}

// DefaultDailyWindow is 23:20-23:59.
var DefaultDailyWindow = DailyWindow{Hour: 23, StartMinute: 20, EndMinute: 59}

// Contains reports whether t (already in local time) falls inside the window.
func (w DailyWindow) Contains(t time.Time) bool {
	return t.Hour() == w.Hour && t.Minute() >= w.StartMinute && t.Minute() <= w.EndMinute
}

// ResolveMode turns ModeAuto into a concrete mode. Auto yields ModeDaily when
// local is inside the window and no summary was sent for that local date.
func ResolveMode(requested Mode, local time.Time, lastDailyDate string, window DailyWindow) Mode {
	if requested != ModeAuto {
		return requested
	}
	if window.Contains(local) && lastDailyDate != local.Format(dateLayout) {
		return ModeDaily
	}
	return ModeHourly
}

const dateLayout = "2006-01-02"
