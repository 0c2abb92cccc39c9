// Package session implements the per-connection state machine: it
// decodes one request at a time, drives the allocator/observer/directory
// layers, and writes exactly one response frame per request, with async
// frames (subscription messages, lag notices, deferred control grants)
// interleaved onto the same outbound channel by independent goroutines.
package session

import (
	"context"
	"sync"

	"serialkeel/internal/allocator"
	"serialkeel/internal/directory"
	"serialkeel/internal/endpoint"
	"serialkeel/internal/eventbus"
	"serialkeel/internal/groupregistry"
	"serialkeel/internal/metrics"
	"serialkeel/internal/observer"
	"serialkeel/internal/wire"
)

// Session is one client connection's worth of state: its leases, its
// active observations, and its still-pending control requests.
type Session struct {
	id    allocator.SessionID
	dir   *directory.Directory
	alloc *allocator.Allocator

	observers *observer.Registry
	outbound  chan []byte
	events    *eventbus.Publisher
	stats     metrics.Interface

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	leases  map[groupregistry.UnitID][]endpoint.ID
	pending map[*allocator.Waiter]struct{}
}

// New builds a Session. outboundCapacity bounds how many frames can be
// queued before a write blocks the goroutine trying to enqueue one
// (normally the transport's write pump keeps this drained). events and
// stats may both be nil, in which case lifecycle events are simply not
// published or counted.
func New(id string, dir *directory.Directory, alloc *allocator.Allocator, outboundCapacity int, events *eventbus.Publisher, stats metrics.Interface) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       allocator.SessionID(id),
		dir:      dir,
		alloc:    alloc,
		outbound: make(chan []byte, outboundCapacity),
		events:   events,
		stats:    stats,
		ctx:      ctx,
		cancel:   cancel,
		leases:   make(map[groupregistry.UnitID][]endpoint.ID),
		pending:  make(map[*allocator.Waiter]struct{}),
	}
	s.observers = observer.NewRegistry(s.enqueue, stats)
	return s
}

// ID returns the session's identity as seen by the allocator/directory.
func (s *Session) ID() string { return string(s.id) }

// Outbound is the channel a transport's write pump should drain.
func (s *Session) Outbound() <-chan []byte { return s.outbound }

func (s *Session) enqueue(frame []byte) {
	select {
	case s.outbound <- frame:
		if s.stats != nil {
			s.stats.RecordFrameSent(len(frame))
		}
	case <-s.ctx.Done():
	}
}

// Handle decodes and processes exactly one inbound request, always
// producing exactly one response frame on the outbound channel before it
// returns (async frames from subscriptions or deferred grants may also
// appear on the same channel, but never in place of this response).
func (s *Session) Handle(raw []byte) {
	if s.stats != nil {
		s.stats.IncrementRequestsReceived()
	}
	req, err := wire.DecodeRequest(raw)
	if err != nil {
		s.enqueue(wire.EncodeError(wire.ErrorMalformedRequest, err.Error()))
		return
	}
	switch {
	case req.Control != nil:
		s.handleControl(req.Control)
	case req.ControlAny != nil:
		s.handleControlAny(req.ControlAny)
	case req.Observe != nil:
		s.handleObserve(*req.Observe)
	case req.Unobserve != nil:
		s.handleUnobserve(*req.Unobserve)
	case req.Write != nil:
		s.handleWrite(*req.Write)
	case req.ListEndpoints:
		s.handleListEndpoints()
	default:
		s.enqueue(wire.EncodeError(wire.ErrorMalformedRequest, "request carried no recognized key"))
	}
}

func (s *Session) handleControl(target *wire.Target) {
	var unitID groupregistry.UnitID
	var endpoints []endpoint.ID

	if target.Group != nil {
		id, ok := s.dir.ResolveGroupUnit(*target.Group)
		if !ok {
			s.enqueue(wire.EncodeError(wire.ErrorUnknownTarget, *target.Group))
			return
		}
		u, _ := s.dir.Registry().Unit(id)
		unitID, endpoints = id, u.Endpoints
	} else if target.Endpoint != nil {
		eps, id, ok := s.dir.ResolveUnit(string(s.id), *target.Endpoint)
		if !ok {
			s.enqueue(wire.EncodeError(wire.ErrorUnknownTarget, target.Endpoint.String()))
			return
		}
		unitID, endpoints = id, eps
	} else {
		s.enqueue(wire.EncodeError(wire.ErrorMalformedRequest, "empty control target"))
		return
	}

	s.alloc.Register(allocator.UnitID(unitID))
	immediate, pos, waiter, err := s.alloc.Control(s.id, allocator.UnitID(unitID))
	switch {
	case err == allocator.ErrAlreadyControlled:
		s.enqueue(wire.EncodeError(wire.ErrorAlreadyControlled, string(unitID)))
	case err != nil:
		s.enqueue(wire.EncodeError(wire.ErrorInternalFailure, err.Error()))
	case immediate:
		s.recordLease(unitID, endpoints)
		s.statsGrant(unitID)
		s.enqueue(wire.EncodeControlGranted(endpoints))
	default:
		s.trackWaiter(waiter)
		s.statsQueued(unitID)
		s.enqueue(wire.EncodeQueued(pos))
		byUnit := map[groupregistry.UnitID][]endpoint.ID{unitID: endpoints}
		go s.awaitGrant(waiter, byUnit)
	}
}

func (s *Session) handleControlAny(labels []string) {
	units := s.dir.UnitsWithLabels(labels)
	if len(units) == 0 {
		s.enqueue(wire.EncodeError(wire.ErrorNoMatch, "no unit matches the requested labels"))
		return
	}

	candidates := make([]allocator.UnitID, len(units))
	byUnit := make(map[groupregistry.UnitID][]endpoint.ID, len(units))
	for i, u := range units {
		candidates[i] = allocator.UnitID(u.ID)
		byUnit[u.ID] = u.Endpoints
		s.alloc.Register(allocator.UnitID(u.ID))
	}

	immediate, granted, pos, waiter, err := s.alloc.ControlAny(s.id, candidates)
	switch {
	case err != nil:
		s.enqueue(wire.EncodeError(wire.ErrorInternalFailure, err.Error()))
	case immediate:
		unitID := groupregistry.UnitID(granted)
		eps := byUnit[unitID]
		s.recordLease(unitID, eps)
		s.statsGrant(unitID)
		s.enqueue(wire.EncodeControlGranted(eps))
	default:
		s.trackWaiter(waiter)
		s.statsQueued(units[0].ID)
		s.enqueue(wire.EncodeQueued(pos))
		go s.awaitGrant(waiter, byUnit)
	}
}

func (s *Session) awaitGrant(waiter *allocator.Waiter, byUnit map[groupregistry.UnitID][]endpoint.ID) {
	granted, ok := waiter.Result()
	s.untrackWaiter(waiter)
	if !ok {
		return
	}
	unitID := groupregistry.UnitID(granted)
	eps := byUnit[unitID]
	s.recordLease(unitID, eps)
	s.statsGrant(unitID)
	s.enqueue(wire.EncodeAsyncControlGranted(eps))
}

func (s *Session) handleObserve(id endpoint.ID) {
	ep, err := s.dir.Resolve(string(s.id), id)
	if err != nil {
		s.enqueue(wire.EncodeError(wire.ErrorUnknownTarget, id.String()))
		return
	}
	s.observers.Observe(id, ep.Pipe)
	s.enqueue(wire.EncodeObserveOk())
}

func (s *Session) handleUnobserve(id endpoint.ID) {
	if !s.observers.Unobserve(id) {
		s.enqueue(wire.EncodeError(wire.ErrorNotObserving, id.String()))
		return
	}
	s.enqueue(wire.EncodeUnobserveOk())
}

func (s *Session) handleWrite(wr wire.WriteRequest) {
	_, unitID, ok := s.dir.ResolveUnit(string(s.id), wr.Endpoint)
	if !ok {
		s.enqueue(wire.EncodeError(wire.ErrorUnknownTarget, wr.Endpoint.String()))
		return
	}
	if !s.hasLease(unitID) {
		s.enqueue(wire.EncodeError(wire.ErrorNotControlled, wr.Endpoint.String()))
		return
	}
	ep, err := s.dir.Resolve(string(s.id), wr.Endpoint)
	if err != nil {
		s.enqueue(wire.EncodeError(wire.ErrorUnknownTarget, wr.Endpoint.String()))
		return
	}
	if ep.Sink == nil {
		s.enqueue(wire.EncodeError(wire.ErrorInternalFailure, "endpoint is not writable"))
		return
	}
	if _, err := ep.Sink.Write([]byte(wr.Payload)); err != nil {
		s.enqueue(wire.EncodeError(wire.ErrorInternalFailure, err.Error()))
		return
	}
	s.enqueue(wire.EncodeWriteOk())
}

func (s *Session) handleListEndpoints() {
	var infos []wire.EndpointInfo
	for _, u := range s.dir.Registry().Units() {
		for _, id := range u.Endpoints {
			infos = append(infos, wire.EndpointInfo{Endpoint: id, Labels: u.Labels.Slice()})
		}
	}
	s.enqueue(wire.EncodeListEndpoints(infos))
}

func (s *Session) recordLease(unit groupregistry.UnitID, endpoints []endpoint.ID) {
	s.mu.Lock()
	s.leases[unit] = endpoints
	s.mu.Unlock()
	s.events.ControlGranted(string(s.id), string(unit))
}

func (s *Session) hasLease(unit groupregistry.UnitID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.leases[unit]
	return ok
}

func (s *Session) trackWaiter(w *allocator.Waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[w] = struct{}{}
}

func (s *Session) untrackWaiter(w *allocator.Waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, w)
}

func (s *Session) statsGrant(unit groupregistry.UnitID) {
	if s.stats == nil {
		return
	}
	s.stats.RecordControlGrant()
	s.stats.SetWaitersPending(s.alloc.QueueLen(allocator.UnitID(unit)))
}

func (s *Session) statsQueued(unit groupregistry.UnitID) {
	if s.stats == nil {
		return
	}
	s.stats.RecordControlQueued()
	s.stats.SetWaitersPending(s.alloc.QueueLen(allocator.UnitID(unit)))
}

// Close tears the session down: cancels still-pending control requests,
// releases every unit it owns (cascading grants to the next waiter in
// each unit's queue), cancels every active subscription, and frees any
// per-session mocks it created.
func (s *Session) Close() {
	s.mu.Lock()
	pending := make([]*allocator.Waiter, 0, len(s.pending))
	for w := range s.pending {
		pending = append(pending, w)
	}
	s.mu.Unlock()

	for _, w := range pending {
		s.alloc.Cancel(w)
	}

	s.mu.Lock()
	owned := make([]groupregistry.UnitID, 0, len(s.leases))
	for unit := range s.leases {
		owned = append(owned, unit)
	}
	s.mu.Unlock()

	s.alloc.ReleaseAll(s.id)
	for _, unit := range owned {
		s.events.ControlReleased(string(s.id), string(unit))
		if s.stats != nil {
			s.stats.RecordControlRelease()
			s.stats.SetWaitersPending(s.alloc.QueueLen(allocator.UnitID(unit)))
		}
	}

	s.observers.CloseAll()
	s.dir.ReleaseSession(string(s.id))
	s.cancel()
}
