package metrics

import "time"

// Interface is the seam wsfront and session code depend on, so that a
// no-op implementation can stand in for tests that don't care about
// instrumentation.
type Interface interface {
	SessionOpened()
	SessionClosed(duration time.Duration)
	RecordSessionError()

	IncrementRequestsReceived()
	RecordFrameSent(size int)

	RecordLineDelivered()
	RecordLagged(dropped int)

	RecordControlGrant()
	RecordControlRelease()
	RecordControlQueued()
	SetWaitersPending(n int)

	RecordError(kind string)

	UpdateGoroutinesCount(count int)
	UpdateMemoryUsage(bytes uint64)
	UpdateCPUUsage(percent float64)

	SetEventBusConnected(connected bool)
	IncrementEventBusReconnects()
	IncrementEventBusPublished()

	GetActiveSessions() int64
	GetUptime() time.Duration
}

var _ Interface = (*Metrics)(nil)
