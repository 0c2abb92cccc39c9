// Package mockendpoint implements the in-memory stand-in endpoints used
// for tests and demos: no physical device, a Line Pipe fed directly by
// Write calls instead of a serial reader goroutine.
package mockendpoint

import (
	"sync"

	"serialkeel/internal/linepipe"
)

// Visibility controls whether a mock name is a single endpoint shared by
// every session, or privately instantiated per session.
type Visibility int

const (
	Shared Visibility = iota
	PerSession
)

// Mock is one mock endpoint: a Line Pipe fed by Write. Unlike a real
// serial reader it keeps no framing carry state between writes.
type Mock struct {
	Name string
	Pipe *linepipe.Pipe
}

// Write feeds payload through the same line-framing rules a real endpoint
// uses, except a mock never carries a partial line across calls: each
// Write is a self-contained flush, so a payload with no trailing newline
// still produces a final line before Write returns.
func (m *Mock) Write(payload []byte) (int, error) {
	lines, remainder := linepipe.FrameLines(nil, payload)
	for _, line := range lines {
		m.Pipe.Publish(line)
	}
	if line, ok := linepipe.FlushRemainder(remainder); ok {
		m.Pipe.Publish(line)
	}
	return len(payload), nil
}

// Engine owns every mock endpoint's lifecycle, honoring the configured
// visibility mode.
type Engine struct {
	mode Visibility

	mu     sync.Mutex
	shared map[string]*Mock
	owned  map[sessionKey]*Mock
}

type sessionKey struct {
	session string
	name    string
}

func NewEngine(mode Visibility) *Engine {
	return &Engine{
		mode:   mode,
		shared: make(map[string]*Mock),
		owned:  make(map[sessionKey]*Mock),
	}
}

// Resolve returns the Mock a given session should see for name, creating
// it on first reference. In Shared mode every session resolving the same
// name gets the same Mock; in PerSession mode each session gets its own,
// keyed by session id, invisible to every other session.
func (e *Engine) Resolve(session string, name string) *Mock {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == Shared {
		if m, ok := e.shared[name]; ok {
			return m
		}
		m := &Mock{Name: name, Pipe: linepipe.New()}
		e.shared[name] = m
		return m
	}

	key := sessionKey{session: session, name: name}
	if m, ok := e.owned[key]; ok {
		return m
	}
	m := &Mock{Name: name, Pipe: linepipe.New()}
	e.owned[key] = m
	return m
}

// ReleaseSession tears down every mock privately owned by session. A
// no-op in Shared mode, where mocks outlive any one session.
func (e *Engine) ReleaseSession(session string) {
	if e.mode != PerSession {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, m := range e.owned {
		if key.session == session {
			m.Pipe.Close(nil)
			delete(e.owned, key)
		}
	}
}

// Mode reports the engine's configured visibility.
func (e *Engine) Mode() Visibility {
	return e.mode
}
