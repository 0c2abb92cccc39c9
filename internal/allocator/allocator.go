// Package allocator implements exclusive control over units: a single
// mutex guards every unit's owner and FIFO waiter queue, and every
// release/grant transition runs as one critical section, so a cascading
// release-then-grant is never observed half-applied.
//
// Multi-unit waiters (control_any across several candidate units) are
// appended, in a single global enqueue sequence, to every candidate's
// queue at once. Because a queue is never reordered, its head is always
// the earliest-sequenced unsettled waiter for that unit, so "resolve
// multi-unit waiters in ascending sequence order" falls directly out of
// always granting the head.
package allocator

import (
	"errors"
	"sync"
)

// ErrAlreadyControlled is returned for a duplicate Control request from
// the session that already owns the unit. This implementation treats a
// duplicate as a distinct, reportable condition rather than a silent
// idempotent re-grant — see DESIGN.md for the reasoning.
var ErrAlreadyControlled = errors.New("unit already controlled by this session")

// ErrUnknownUnit is returned when a target unit id has not been
// registered with the allocator.
var ErrUnknownUnit = errors.New("unknown unit")

// ErrNoCandidates is returned by ControlAny when no unit was offered.
var ErrNoCandidates = errors.New("no candidate units offered")

type SessionID string

// Grant describes a unit a session has been given exclusive control of.
type Grant struct {
	Unit UnitID
}

// UnitID is an allocator-local name for a controllable unit; callers
// (the directory layer) decide what it corresponds to.
type UnitID string

// Waiter is a handle to a still-pending control request. Callers block on
// Result and must call Cancel if they stop waiting before a grant
// arrives, typically because the owning session disconnected.
type Waiter struct {
	seq      uint64
	session  SessionID
	units    []UnitID
	resultCh chan waitResult
}

type waitResult struct {
	cancelled bool
	unit      UnitID
}

// Result blocks until the waiter is granted or cancelled. ok is false on
// cancellation.
func (w *Waiter) Result() (UnitID, bool) {
	r := <-w.resultCh
	if r.cancelled {
		return "", false
	}
	return r.unit, true
}

type unitState struct {
	id     UnitID
	owner  *SessionID
	queue  []*waiter
}

// waiter is the allocator's internal bookkeeping record; Waiter above is
// the handle callers hold.
type waiter struct {
	seq      uint64
	session  SessionID
	units    []UnitID
	settled  bool
	resultCh chan waitResult
}

// Allocator tracks ownership and FIFO queues for a fixed set of units. The
// unit set is declared up front via Register, mirroring the static group
// registry; on-demand (mock) units are declared through the same Register
// call when first referenced.
type Allocator struct {
	mu    sync.Mutex
	seq   uint64
	units map[UnitID]*unitState
}

func New() *Allocator {
	return &Allocator{units: make(map[UnitID]*unitState)}
}

// Register declares a unit id as controllable. Calling it again for the
// same id is a no-op, so on-demand (mock) units can share the same path
// as statically configured ones.
func (a *Allocator) Register(id UnitID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ensureLocked(id)
}

func (a *Allocator) ensureLocked(id UnitID) *unitState {
	u, ok := a.units[id]
	if !ok {
		u = &unitState{id: id}
		a.units[id] = u
	}
	return u
}

// Control requests exclusive ownership of a single unit. If it is free it
// is granted immediately (immediate=true); otherwise the caller is
// enqueued and must wait on the returned Waiter.
func (a *Allocator) Control(session SessionID, target UnitID) (immediate bool, position int, handle *Waiter, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.units[target]
	if !ok {
		return false, 0, nil, ErrUnknownUnit
	}
	if u.owner != nil && *u.owner == session {
		return false, 0, nil, ErrAlreadyControlled
	}
	if u.owner == nil && len(u.queue) == 0 {
		s := session
		u.owner = &s
		return true, 0, nil, nil
	}

	a.seq++
	w := &waiter{seq: a.seq, session: session, units: []UnitID{target}, resultCh: make(chan waitResult, 1)}
	u.queue = append(u.queue, w)
	return false, len(u.queue) - 1, &Waiter{seq: w.seq, session: session, units: w.units, resultCh: w.resultCh}, nil
}

// ControlAny requests exclusive ownership of any one unit among
// candidates, preferring one that is free right now. Candidates are
// considered in the order given by the caller (the directory layer
// passes them in ascending configuration index, the documented
// control_any tie-break).
func (a *Allocator) ControlAny(session SessionID, candidates []UnitID) (immediate bool, granted UnitID, position int, handle *Waiter, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(candidates) == 0 {
		return false, "", 0, nil, ErrNoCandidates
	}
	for _, id := range candidates {
		u, ok := a.units[id]
		if !ok {
			continue
		}
		if u.owner == nil && len(u.queue) == 0 {
			s := session
			u.owner = &s
			return true, id, 0, nil, nil
		}
	}

	a.seq++
	w := &waiter{seq: a.seq, session: session, units: append([]UnitID(nil), candidates...), resultCh: make(chan waitResult, 1)}
	minQueue := -1
	for _, id := range candidates {
		u := a.ensureLocked(id)
		u.queue = append(u.queue, w)
		if pos := len(u.queue) - 1; minQueue == -1 || pos < minQueue {
			minQueue = pos
		}
	}
	return false, "", minQueue, &Waiter{seq: w.seq, session: session, units: w.units, resultCh: w.resultCh}, nil
}

// Cancel withdraws a still-pending waiter, e.g. because its session
// disconnected before being granted. Safe to call even if the waiter has
// already been granted concurrently: the grant wins and Cancel is a no-op.
func (a *Allocator) Cancel(w *Waiter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range w.units {
		u, ok := a.units[id]
		if !ok {
			continue
		}
		for i, qw := range u.queue {
			if qw.seq == w.seq && !qw.settled {
				qw.settled = true
				u.queue = append(u.queue[:i], u.queue[i+1:]...)
				select {
				case qw.resultCh <- waitResult{cancelled: true}:
				default:
				}
				break
			}
		}
	}
}

// Release relinquishes session's ownership of unit, then grants it to the
// earliest-sequenced unsettled waiter in that unit's queue, if any. The
// entire release-then-grant transition happens under one lock
// acquisition.
func (a *Allocator) Release(session SessionID, unit UnitID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u, ok := a.units[unit]
	if !ok || u.owner == nil || *u.owner != session {
		return
	}
	u.owner = nil
	a.resolveLocked(u)
}

// ReleaseAll relinquishes every unit session currently owns.
func (a *Allocator) ReleaseAll(session SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.units {
		if u.owner != nil && *u.owner == session {
			u.owner = nil
			a.resolveLocked(u)
		}
	}
}

// resolveLocked grants u, freshly vacated, to the head of its queue,
// skipping any entries a concurrent grant on a sibling unit already
// settled (possible for multi-unit control_any waiters).
func (a *Allocator) resolveLocked(u *unitState) {
	for u.owner == nil && len(u.queue) > 0 {
		w := u.queue[0]
		u.queue = u.queue[1:]
		if w.settled {
			continue
		}
		w.settled = true
		s := w.session
		u.owner = &s
		a.removeFromSiblingQueues(w, u.id)
		select {
		case w.resultCh <- waitResult{unit: u.id}:
		default:
		}
		return
	}
}

// removeFromSiblingQueues strips a just-granted multi-unit waiter out of
// every other candidate unit's queue so it is never granted twice.
func (a *Allocator) removeFromSiblingQueues(w *waiter, granted UnitID) {
	for _, id := range w.units {
		if id == granted {
			continue
		}
		sibling, ok := a.units[id]
		if !ok {
			continue
		}
		for i, qw := range sibling.queue {
			if qw.seq == w.seq {
				sibling.queue = append(sibling.queue[:i], sibling.queue[i+1:]...)
				break
			}
		}
	}
}

// Owner reports the current owner of a unit, if any.
func (a *Allocator) Owner(unit UnitID) (SessionID, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.units[unit]
	if !ok || u.owner == nil {
		return "", false
	}
	return *u.owner, true
}

// QueueLen reports how many waiters are currently queued on unit.
func (a *Allocator) QueueLen(unit UnitID) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.units[unit]
	if !ok {
		return 0
	}
	return len(u.queue)
}
