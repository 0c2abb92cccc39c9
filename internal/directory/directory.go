// Package directory is the single place that knows how an EndpointId or a
// group name turns into a live Line Pipe and, for writable targets, a
// writer. It stitches together the static group registry, the real TTY
// endpoints opened at startup, and the mock engine's on-demand creation.
package directory

import (
	"fmt"
	"io"

	"serialkeel/internal/endpoint"
	"serialkeel/internal/groupregistry"
	"serialkeel/internal/linepipe"
	"serialkeel/internal/mockendpoint"
)

// Endpoint is a resolved, live endpoint: something with a Line Pipe to
// observe and, if writable, a sink to write to.
type Endpoint struct {
	ID   endpoint.ID
	Pipe *linepipe.Pipe
	Sink io.Writer
}

// Directory resolves control/observe/write targets into live Endpoints
// and Units, honoring real-endpoint static wiring and mock on-demand
// creation (shared or per-session, per the configured mock mode).
type Directory struct {
	registry *groupregistry.Registry
	mocks    *mockendpoint.Engine
	real     map[endpoint.ID]*Endpoint
}

func New(registry *groupregistry.Registry, mocks *mockendpoint.Engine, real map[endpoint.ID]*Endpoint) *Directory {
	if real == nil {
		real = make(map[endpoint.ID]*Endpoint)
	}
	return &Directory{registry: registry, mocks: mocks, real: real}
}

// Registry exposes the static group/unit registry for label lookups.
func (d *Directory) Registry() *groupregistry.Registry {
	return d.registry
}

// Resolve returns the live Endpoint for id, creating a mock on first
// reference. session is only consulted for per-session mock mode.
func (d *Directory) Resolve(session string, id endpoint.ID) (*Endpoint, error) {
	if id.Kind == endpoint.KindMock {
		m := d.mocks.Resolve(session, id.Name)
		return &Endpoint{ID: id, Pipe: m.Pipe, Sink: m}, nil
	}
	ep, ok := d.real[id]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %s", id)
	}
	return ep, nil
}

// ResolveUnit returns the endpoints that make up target: for a mock in
// per-session mode this synthesizes a private one-endpoint unit owned
// entirely by session, bypassing the shared allocator namespace (two
// sessions naming the same mock get disjoint mocks and never contend).
func (d *Directory) ResolveUnit(session string, target endpoint.ID) ([]endpoint.ID, groupregistry.UnitID, bool) {
	if target.Kind == endpoint.KindMock && d.mocks.Mode() == mockendpoint.PerSession {
		return []endpoint.ID{target}, groupregistry.UnitID(session + "/" + target.String()), true
	}
	unitID, ok := d.registry.UnitFor(target)
	if !ok {
		if target.Kind == endpoint.KindMock {
			// Shared-mode mock, first reference: synthesize its unit
			// lazily rather than requiring it in static configuration.
			return []endpoint.ID{target}, groupregistry.UnitID(target.String()), true
		}
		return nil, "", false
	}
	u, _ := d.registry.Unit(unitID)
	return u.Endpoints, unitID, true
}

// ResolveGroupUnit resolves a group id directly to its unit.
func (d *Directory) ResolveGroupUnit(groupID string) (groupregistry.UnitID, bool) {
	id := groupregistry.UnitID(groupID)
	_, ok := d.registry.Unit(id)
	return id, ok
}

// UnitsWithLabels mirrors the registry lookup, for control_any resolution.
func (d *Directory) UnitsWithLabels(labels []string) []*groupregistry.Unit {
	return d.registry.UnitsWithLabels(labels)
}

// ReleaseSession tears down any per-session mocks owned by session.
func (d *Directory) ReleaseSession(session string) {
	d.mocks.ReleaseSession(session)
}
