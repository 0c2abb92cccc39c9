package metrics

import (
	"sync"
	"time"
)

// SessionInfo holds per-session bookkeeping for the /health endpoint.
type SessionInfo struct {
	ID            string
	RemoteAddr    string
	Label         string
	ConnectedAt   time.Time
	LastMessageAt time.Time
	RequestsRecv  uint64
	FramesSent    uint64
}

// SessionTracker keeps an exact, queryable record of connected sessions,
// independent of the Prometheus counters (which are write-only).
type SessionTracker struct {
	mu       sync.RWMutex
	sessions map[string]*SessionInfo
	total    uint64
	peak     int
}

func NewSessionTracker() *SessionTracker {
	return &SessionTracker{sessions: make(map[string]*SessionInfo)}
}

func (st *SessionTracker) Add(id, remoteAddr, label string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.sessions[id] = &SessionInfo{
		ID:          id,
		RemoteAddr:  remoteAddr,
		Label:       label,
		ConnectedAt: time.Now(),
	}
	st.total++
	if n := len(st.sessions); n > st.peak {
		st.peak = n
	}
}

func (st *SessionTracker) Remove(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

func (st *SessionTracker) RecordRequest(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.LastMessageAt = time.Now()
		s.RequestsRecv++
	}
}

func (st *SessionTracker) RecordFrameSent(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok {
		s.FramesSent++
	}
}

func (st *SessionTracker) ActiveCount() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Snapshot returns the current sessions, sorted by connect time is not
// guaranteed; callers that need a stable order should sort the result.
func (st *SessionTracker) Snapshot() []SessionInfo {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]SessionInfo, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, *s)
	}
	return out
}

// SessionScoped adapts a Metrics/SessionTracker pair to the Interface
// seam for one session, so the aggregate Prometheus counters and the
// exact per-session record update together from the same call site.
type SessionScoped struct {
	*Metrics
	Sessions *SessionTracker
	ID       string
}

func (s *SessionScoped) IncrementRequestsReceived() {
	s.Metrics.IncrementRequestsReceived()
	s.Sessions.RecordRequest(s.ID)
}

func (s *SessionScoped) RecordFrameSent(size int) {
	s.Metrics.RecordFrameSent(size)
	s.Sessions.RecordFrameSent(s.ID)
}

var _ Interface = (*SessionScoped)(nil)

func (st *SessionTracker) Summary() map[string]interface{} {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return map[string]interface{}{
		"active": len(st.sessions),
		"total":  st.total,
		"peak":   st.peak,
	}
}
