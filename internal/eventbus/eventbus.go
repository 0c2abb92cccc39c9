// Package eventbus publishes Session lifecycle events onto NATS subjects
// for an external monitor to consume. It is pure output: nothing in the
// control plane depends on a publish succeeding, or on NATS being
// reachable at all. Adapted from the teacher's pkg/nats client, trimmed
// to the publish-only role this domain needs (no Subscribe/Request side,
// since nothing here consumes commands from NATS).
package eventbus

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"serialkeel/internal/metrics"
)

// Config mirrors the teacher's NATS client configuration.
type Config struct {
	URL             string
	MaxReconnects   int
	ReconnectWait   time.Duration
	ReconnectJitter time.Duration
}

// Publisher is a best-effort, optional sink for lifecycle events. stats
// may be nil, in which case connection status and publish counts are
// simply not recorded.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *log.Logger
	stats  metrics.Interface
}

// Connect dials NATS and returns a Publisher. A dial failure is returned
// to the caller, who is expected to log it and continue without one —
// see NewOrNil.
func Connect(cfg Config, subjectPrefix string, logger *log.Logger, stats metrics.Interface) (*Publisher, error) {
	p := &Publisher{prefix: subjectPrefix, logger: logger, stats: stats}
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(cfg.ReconnectJitter, cfg.ReconnectJitter),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Printf("eventbus: disconnected: %v", err)
			}
			if stats != nil {
				stats.SetEventBusConnected(false)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Printf("eventbus: reconnected to %s", c.ConnectedUrl())
			if stats != nil {
				stats.SetEventBusConnected(true)
				stats.IncrementEventBusReconnects()
			}
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Printf("eventbus: error: %v", err)
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}
	p.conn = conn
	if stats != nil {
		stats.SetEventBusConnected(true)
	}
	return p, nil
}

// NewOrNil is the ambient-enrichment entry point: it tries to connect and
// logs+returns nil on failure instead of propagating an error, since the
// event bus is never load-bearing for the control plane.
func NewOrNil(cfg Config, subjectPrefix string, logger *log.Logger, stats metrics.Interface) *Publisher {
	p, err := Connect(cfg, subjectPrefix, logger, stats)
	if err != nil {
		logger.Printf("eventbus: disabled, connect failed: %v", err)
		return nil
	}
	return p
}

type lifecycleEvent struct {
	Session string      `json:"session"`
	Unit    string      `json:"unit,omitempty"`
	Dropped int         `json:"dropped,omitempty"`
	At      time.Time   `json:"at"`
	Extra   interface{} `json:"extra,omitempty"`
}

func (p *Publisher) publish(subject string, ev lifecycleEvent) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Printf("eventbus: marshal failure for %s: %v", subject, err)
		return
	}
	if err := p.conn.Publish(p.prefix+"."+subject, data); err != nil {
		p.logger.Printf("eventbus: publish failure for %s: %v", subject, err)
		return
	}
	if p.stats != nil {
		p.stats.IncrementEventBusPublished()
	}
}

// ControlGranted reports that session was granted exclusive control of unit.
func (p *Publisher) ControlGranted(session, unit string) {
	p.publish("control_granted", lifecycleEvent{Session: session, Unit: unit, At: time.Now()})
}

// ControlReleased reports that session relinquished control of unit.
func (p *Publisher) ControlReleased(session, unit string) {
	p.publish("control_released", lifecycleEvent{Session: session, Unit: unit, At: time.Now()})
}

// Lagged reports that a subscriber fell behind and dropped lines.
func (p *Publisher) Lagged(session, unit string, dropped int) {
	p.publish("lagged", lifecycleEvent{Session: session, Unit: unit, Dropped: dropped, At: time.Now()})
}

// Close disconnects, if connected.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
	if p.stats != nil {
		p.stats.SetEventBusConnected(false)
	}
}
