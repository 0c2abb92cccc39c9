// Package groupregistry builds the static set of controllable units
// (single endpoints and configured groups) from a loaded configuration,
// in a deterministic, config-declared order.
package groupregistry

import (
	"fmt"

	"serialkeel/internal/endpoint"
)

// UnitID names a single controllable unit: one endpoint acting alone, or
// one configured group acting as a whole.
type UnitID string

// Unit is one controllable resource: either exactly one endpoint (a
// singleton unit) or an ordered list of endpoints (a group unit).
type Unit struct {
	ID          UnitID
	Endpoints   []endpoint.ID
	Labels      endpoint.LabelSet
	ConfigIndex int
}

// EndpointConfig is one entry in the static endpoint list.
type EndpointConfig struct {
	ID     endpoint.ID
	Labels []string
}

// GroupConfig is one entry in the static group list.
type GroupConfig struct {
	ID      string
	Members []endpoint.ID
	Labels  []string
}

// Registry resolves endpoint ids to the unit that controls them and
// enumerates units in their configured order, the order ControlAny's
// tie-break relies on.
type Registry struct {
	units      []*Unit
	byID       map[UnitID]*Unit
	byEndpoint map[endpoint.ID]UnitID
}

// Build assembles singleton units for every configured endpoint not named
// by any group, then group units in declaration order. An endpoint that
// belongs to a group is only reachable as part of that group's unit —
// spec.md's "endpoints within a group lose independent addressability".
// A group unit's label set is the union of its own declared labels and
// every member endpoint's labels, so UnitsWithLabels can match a group
// through labels its members carry even when the group declares none of
// its own.
func Build(endpoints []EndpointConfig, groups []GroupConfig) (*Registry, error) {
	r := &Registry{
		byID:       make(map[UnitID]*Unit),
		byEndpoint: make(map[endpoint.ID]UnitID),
	}

	grouped := make(map[endpoint.ID]bool)
	for _, g := range groups {
		for _, m := range g.Members {
			grouped[m] = true
		}
	}

	labelsByEndpoint := make(map[endpoint.ID][]string, len(endpoints))
	for _, ec := range endpoints {
		labelsByEndpoint[ec.ID] = ec.Labels
	}

	index := 0
	for _, ec := range endpoints {
		if grouped[ec.ID] {
			continue
		}
		u := &Unit{
			ID:          UnitID(ec.ID.String()),
			Endpoints:   []endpoint.ID{ec.ID},
			Labels:      endpoint.NewLabelSet(ec.Labels...),
			ConfigIndex: index,
		}
		index++
		r.units = append(r.units, u)
		r.byID[u.ID] = u
		r.byEndpoint[ec.ID] = u.ID
	}

	for _, gc := range groups {
		if len(gc.Members) == 0 {
			return nil, fmt.Errorf("group %q has no members", gc.ID)
		}
		allLabels := append([]string(nil), gc.Labels...)
		for _, m := range gc.Members {
			allLabels = append(allLabels, labelsByEndpoint[m]...)
		}
		u := &Unit{
			ID:          UnitID(gc.ID),
			Endpoints:   append([]endpoint.ID(nil), gc.Members...),
			Labels:      endpoint.NewLabelSet(allLabels...),
			ConfigIndex: index,
		}
		index++
		r.units = append(r.units, u)
		r.byID[u.ID] = u
		for _, m := range gc.Members {
			r.byEndpoint[m] = u.ID
		}
	}

	return r, nil
}

// Units returns every unit in ascending configuration order.
func (r *Registry) Units() []*Unit {
	return r.units
}

// Unit looks up a unit by id.
func (r *Registry) Unit(id UnitID) (*Unit, bool) {
	u, ok := r.byID[id]
	return u, ok
}

// UnitFor resolves the unit that controls a given endpoint (its own
// singleton unit, or the group it belongs to).
func (r *Registry) UnitFor(id endpoint.ID) (UnitID, bool) {
	u, ok := r.byEndpoint[id]
	return u, ok
}

// UnitsWithLabels returns, in configuration order, every unit whose label
// set is a superset of want.
func (r *Registry) UnitsWithLabels(want []string) []*Unit {
	var out []*Unit
	for _, u := range r.units {
		if u.Labels.HasAll(want) {
			out = append(out, u)
		}
	}
	return out
}
