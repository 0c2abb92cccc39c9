package metrics

import (
	"testing"
	"time"
)

func TestSessionTrackerAddRemove(t *testing.T) {
	st := NewSessionTracker()
	st.Add("s1", "10.0.0.1:1234", "alice")
	st.Add("s2", "10.0.0.2:1234", "bob")

	if got := st.ActiveCount(); got != 2 {
		t.Fatalf("expected 2 active sessions, got %d", got)
	}

	st.Remove("s1")
	if got := st.ActiveCount(); got != 1 {
		t.Fatalf("expected 1 active session after remove, got %d", got)
	}

	summary := st.Summary()
	if summary["total"].(uint64) != 2 {
		t.Fatalf("expected total to remain 2 after a removal, got %v", summary["total"])
	}
	if summary["peak"].(int) != 2 {
		t.Fatalf("expected peak of 2, got %v", summary["peak"])
	}
}

func TestSessionTrackerRecordRequestAndFrame(t *testing.T) {
	st := NewSessionTracker()
	st.Add("s1", "10.0.0.1:1234", "alice")
	st.RecordRequest("s1")
	st.RecordRequest("s1")
	st.RecordFrameSent("s1")

	snap := st.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 session in snapshot, got %d", len(snap))
	}
	if snap[0].RequestsRecv != 2 {
		t.Fatalf("expected 2 requests recorded, got %d", snap[0].RequestsRecv)
	}
	if snap[0].FramesSent != 1 {
		t.Fatalf("expected 1 frame recorded, got %d", snap[0].FramesSent)
	}
}

func TestLineRateTrackerComputesRate(t *testing.T) {
	lrt := &LineRateTracker{lastTime: time.Now().Add(-time.Second)}
	lrt.Update(100)
	if rate := lrt.GetRate(); rate <= 0 {
		t.Fatalf("expected a positive rate after advancing the counter, got %v", rate)
	}
}
