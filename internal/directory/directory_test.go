package directory

import (
	"testing"

	"serialkeel/internal/endpoint"
	"serialkeel/internal/groupregistry"
	"serialkeel/internal/mockendpoint"
)

func buildRegistry(t *testing.T) *groupregistry.Registry {
	t.Helper()
	reg, err := groupregistry.Build(
		[]groupregistry.EndpointConfig{
			{ID: endpoint.Tty("ttyACM0"), Labels: []string{"sensor"}},
			{ID: endpoint.Tty("ttyACM1"), Labels: []string{"sensor"}},
		},
		[]groupregistry.GroupConfig{
			{ID: "rig", Members: []endpoint.ID{endpoint.Tty("ttyACM0"), endpoint.Tty("ttyACM1")}, Labels: []string{"rig"}},
		},
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

func TestResolveUnitForMockSharedMode(t *testing.T) {
	reg := buildRegistry(t)
	dir := New(reg, mockendpoint.NewEngine(mockendpoint.Shared), nil)

	eps, unitA, ok := dir.ResolveUnit("session-a", endpoint.Mock("bench1"))
	if !ok || len(eps) != 1 {
		t.Fatalf("expected a synthesized single-endpoint unit, got %v ok=%v", eps, ok)
	}
	_, unitB, _ := dir.ResolveUnit("session-b", endpoint.Mock("bench1"))
	if unitA != unitB {
		t.Fatal("expected the same unit id for the same shared mock name")
	}
}

func TestResolveUnitForMockPerSessionModeIsDisjoint(t *testing.T) {
	reg := buildRegistry(t)
	dir := New(reg, mockendpoint.NewEngine(mockendpoint.PerSession), nil)

	_, unitA, _ := dir.ResolveUnit("session-a", endpoint.Mock("bench1"))
	_, unitB, _ := dir.ResolveUnit("session-b", endpoint.Mock("bench1"))
	if unitA == unitB {
		t.Fatal("expected disjoint units per session in per-session mock mode")
	}
}

func TestResolveUnitForGroupedEndpointReturnsGroup(t *testing.T) {
	reg := buildRegistry(t)
	dir := New(reg, mockendpoint.NewEngine(mockendpoint.Shared), nil)

	eps, unit, ok := dir.ResolveUnit("session-a", endpoint.Tty("ttyACM0"))
	if !ok {
		t.Fatal("expected a unit for a grouped endpoint")
	}
	if unit != groupregistry.UnitID("rig") {
		t.Fatalf("expected the rig group's unit, got %s", unit)
	}
	if len(eps) != 2 {
		t.Fatalf("expected both group members, got %v", eps)
	}
}

func TestUnitsWithLabelsFiltersBySuperset(t *testing.T) {
	reg := buildRegistry(t)
	dir := New(reg, mockendpoint.NewEngine(mockendpoint.Shared), nil)

	units := dir.UnitsWithLabels([]string{"rig"})
	if len(units) != 1 || units[0].ID != groupregistry.UnitID("rig") {
		t.Fatalf("expected only the rig unit, got %v", units)
	}
}

func TestUnitsWithLabelsMatchesGroupThroughMemberLabels(t *testing.T) {
	reg := buildRegistry(t)
	dir := New(reg, mockendpoint.NewEngine(mockendpoint.Shared), nil)

	units := dir.UnitsWithLabels([]string{"sensor"})
	if len(units) != 1 || units[0].ID != groupregistry.UnitID("rig") {
		t.Fatalf("expected the rig unit to match its members' \"sensor\" label, got %v", units)
	}
}
