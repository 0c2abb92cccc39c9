// Package linepipe implements the single-producer, many-consumer line
// broadcast at the heart of every endpoint: each published Line is fanned
// out to every current Subscription's bounded queue, with oldest-first
// drop and an explicit Lagged marker when a subscriber falls behind.
//
// The design is grounded in two very different corners of the same
// problem: a lock-free ring buffer sized for raw throughput, and a
// mutex-guarded slice sized for correctness and readability. This package
// takes the second shape (publish rates here top out at serial baud
// rates, not gigabit fan-out) but keeps the first's eviction policy:
// oldest undelivered line dropped first, never the newest.
package linepipe

import (
	"context"
	"sync"
	"time"
)

const defaultSubscriberCapacity = 1024

// Line is one framed, timestamped unit of output from an endpoint.
type Line struct {
	Seq  uint64
	Time time.Time
	Text string
}

// EventKind distinguishes a delivered Line from a synthesized lag notice.
type EventKind int

const (
	EventLine EventKind = iota
	EventLag
)

// Event is what a Subscription actually receives: either a Line, or a
// Lagged marker carrying how many lines were dropped before it.
type Event struct {
	Kind    EventKind
	Line    Line
	Dropped int
}

// Pipe is a single endpoint's line broadcaster.
type Pipe struct {
	mu       sync.Mutex
	seq      uint64
	subs     map[uint64]*subscriber
	nextSub  uint64
	closed   bool
	closeErr error
}

func New() *Pipe {
	return &Pipe{subs: make(map[uint64]*subscriber)}
}

// Publish fans a completed line out to every current subscriber. It never
// blocks: a subscriber whose queue is full has its oldest entry dropped.
func (p *Pipe) Publish(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.seq++
	line := Line{Seq: p.seq, Time: time.Now(), Text: text}
	for _, s := range p.subs {
		s.push(Event{Kind: EventLine, Line: line})
	}
	p.mu.Unlock()
}

// Close marks the pipe closed; subsequent Publish calls are no-ops and
// pending Subscriptions observe io.EOF-shaped termination via Next.
func (p *Pipe) Close(err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.closeErr = err
	subs := make([]*subscriber, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()
	for _, s := range subs {
		s.closePipe()
	}
}

// Subscription is a live cursor into a Pipe's broadcast stream.
type Subscription struct {
	pipe *Pipe
	id   uint64
	sub  *subscriber
}

// Subscribe opens a fresh cursor positioned at "now" — it never replays
// lines published before this call.
func (p *Pipe) Subscribe() *Subscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := newSubscriber(defaultSubscriberCapacity)
	id := p.nextSub
	p.nextSub++
	p.subs[id] = s
	if p.closed {
		s.closePipe()
	}
	return &Subscription{pipe: p, id: id, sub: s}
}

// Next blocks until an Event is available, the Subscription is cancelled,
// the underlying Pipe is closed, or ctx is done. Queued events are always
// handed out first; the second return is false once nothing remains queued
// and the pipe has closed, the Subscription was cancelled, or ctx is done.
func (sub *Subscription) Next(ctx context.Context) (Event, bool) {
	return sub.sub.next(ctx)
}

// Cancel detaches the Subscription from its Pipe. Safe to call more than
// once and safe to call concurrently with Next (Next returns false once
// its queue is drained).
func (sub *Subscription) Cancel() {
	sub.pipe.mu.Lock()
	delete(sub.pipe.subs, sub.id)
	sub.pipe.mu.Unlock()
	sub.sub.closePipe()
}

type subscriber struct {
	mu       sync.Mutex
	queue    []Event
	lag      int
	capacity int
	signal   chan struct{}
	closed   bool
}

func newSubscriber(capacity int) *subscriber {
	return &subscriber{capacity: capacity, signal: make(chan struct{}, 1)}
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		s.queue = s.queue[1:]
		s.lag++
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) closePipe() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *subscriber) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) next(ctx context.Context) (Event, bool) {
	for {
		s.mu.Lock()
		if s.lag > 0 {
			n := s.lag
			s.lag = 0
			s.mu.Unlock()
			return Event{Kind: EventLag, Dropped: n}, true
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return Event{}, false
		}
		select {
		case <-s.signal:
		case <-ctx.Done():
			return Event{}, false
		}
	}
}
