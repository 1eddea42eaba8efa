package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if trackerRunsTotal == nil || trackerMembersOnline == nil ||
		httpRequestsTotal == nil || trackerDiscordMessages == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveRun(t *testing.T) {
	before := testutil.ToFloat64(trackerRunsTotalFor("daily", "success"))
	ObserveRun("daily", "success", 1500*time.Millisecond)
	after := testutil.ToFloat64(trackerRunsTotalFor("daily", "success"))
	if after-before != 1 {
		t.Errorf("expected tracker_runs_total to grow by 1, grew by %f", after-before)
	}
	if n := testutil.CollectAndCount(trackerRunDurationSeconds); n == 0 {
		t.Error("expected run duration histogram to be observed")
	}
}

func TestSetMembers(t *testing.T) {
	SetMembers(3, 11)
	if got := testutil.ToFloat64(trackerMembersOnline); got != 3 {
		t.Errorf("tracker_members_online = %f; want 3", got)
	}
	if got := testutil.ToFloat64(trackerMembersTracked); got != 11 {
		t.Errorf("tracker_members_tracked = %f; want 11", got)
	}
}

func TestObserveFetchSkipsDurationOnFailure(t *testing.T) {
	Init()
	countBefore := testutil.CollectAndCount(trackerFetchDuration)
	ObserveFetch("error", 0)
	if got := testutil.ToFloat64(trackerFetchesTotal.WithLabelValues("error")); got < 1 {
		t.Errorf("expected error fetch to be counted, got %f", got)
	}
	if got := testutil.CollectAndCount(trackerFetchDuration); got != countBefore {
		t.Errorf("expected histogram series count to stay %d, got %d", countBefore, got)
	}
}

func TestObserveNotificationAndDiscord(t *testing.T) {
	ObserveNotification("summary", "sent")
	ObserveDiscordMessage("blocked")
	if got := testutil.ToFloat64(trackerNotificationsTotal.WithLabelValues("summary", "sent")); got < 1 {
		t.Errorf("expected summary notification counted, got %f", got)
	}
	if got := testutil.ToFloat64(trackerDiscordMessages.WithLabelValues("blocked")); got < 1 {
		t.Errorf("expected blocked discord message counted, got %f", got)
	}
}

func TestObserveFetchThrottle(t *testing.T) {
	ObserveFetchThrottle("pr-underworld.com", 2*time.Second)
	if n := testutil.CollectAndCount(trackerFetchThrottle); n == 0 {
		t.Error("expected throttle histogram to be observed")
	}
}

func trackerRunsTotalFor(mode, outcome string) prometheus.Counter {
	Init()
	return trackerRunsTotal.WithLabelValues(mode, outcome)
}
