// Package observer manages per-session subscriptions onto endpoint Line
// Pipes, translating each pipe Event into an outbound wire frame via a
// caller-supplied send function.
package observer

import (
	"context"
	"sync"

	"serialkeel/internal/endpoint"
	"serialkeel/internal/linepipe"
	"serialkeel/internal/metrics"
	"serialkeel/internal/wire"
)

// Send is how a Registry hands an encoded frame back to its owning
// session's outbound path.
type Send func([]byte)

// Registry tracks one session's active subscriptions, keyed by endpoint,
// so a repeated Observe is a no-op and Unobserve/Close can find and
// cancel the right forwarder goroutine.
type Registry struct {
	mu    sync.Mutex
	send  Send
	stats metrics.Interface
	subs  map[endpoint.ID]*entry
}

type entry struct {
	sub    *linepipe.Subscription
	cancel context.CancelFunc
}

// NewRegistry builds a Registry that forwards pipe events through send.
// stats may be nil, in which case forwarded events are simply not
// counted.
func NewRegistry(send Send, stats metrics.Interface) *Registry {
	return &Registry{send: send, stats: stats, subs: make(map[endpoint.ID]*entry)}
}

// Observe subscribes to pipe for id, starting a forwarder goroutine. A
// repeated Observe of an id already being observed is a no-op, matching
// the idempotent contract the Session layer expects.
func (r *Registry) Observe(id endpoint.ID, pipe *linepipe.Pipe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; ok {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := pipe.Subscribe()
	r.subs[id] = &entry{sub: sub, cancel: cancel}
	go r.forward(ctx, id, sub)
}

// Unobserve cancels an active subscription. Returns false if id was not
// being observed.
func (r *Registry) Unobserve(id endpoint.ID) bool {
	r.mu.Lock()
	e, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	e.cancel()
	e.sub.Cancel()
	return true
}

// IsObserving reports whether id currently has an active subscription.
func (r *Registry) IsObserving(id endpoint.ID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.subs[id]
	return ok
}

// CloseAll cancels every active subscription, for session teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.subs
	r.subs = make(map[endpoint.ID]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		e.cancel()
		e.sub.Cancel()
	}
}

func (r *Registry) forward(ctx context.Context, id endpoint.ID, sub *linepipe.Subscription) {
	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			return
		}
		switch ev.Kind {
		case linepipe.EventLine:
			if r.stats != nil {
				r.stats.RecordLineDelivered()
			}
			r.send(wire.EncodeAsyncMessage(id, ev.Line.Text))
		case linepipe.EventLag:
			if r.stats != nil {
				r.stats.RecordLagged(ev.Dropped)
			}
			r.send(wire.EncodeLagged(id, ev.Dropped))
		}
	}
}
