package mockendpoint

import (
	"context"
	"testing"
	"time"
)

func TestMockWriteRoundTrip(t *testing.T) {
	e := NewEngine(Shared)
	m := e.Resolve("session-a", "bench1")
	sub := m.Pipe.Subscribe()
	defer sub.Cancel()

	if _, err := m.Write([]byte("A\nB\nC")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := []string{"A", "B", "C"}
	for i, w := range want {
		ev, ok := sub.Next(ctx)
		if !ok {
			t.Fatalf("subscription closed early at index %d", i)
		}
		if ev.Line.Text != w {
			t.Fatalf("got %q, want %q", ev.Line.Text, w)
		}
	}
}

func TestMockWriteDoesNotCarryPartialLineAcrossWrites(t *testing.T) {
	e := NewEngine(Shared)
	m := e.Resolve("session-a", "bench1")
	sub := m.Pipe.Subscribe()
	defer sub.Cancel()

	if _, err := m.Write([]byte("partial")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := m.Write([]byte("other")); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	want := []string{"partial", "other"}
	for i, w := range want {
		ev, ok := sub.Next(ctx)
		if !ok {
			t.Fatalf("subscription closed early at index %d", i)
		}
		if ev.Line.Text != w {
			t.Fatalf("got %q, want %q (each write must flush independently)", ev.Line.Text, w)
		}
	}
}

func TestSharedModeIsVisibleAcrossSessions(t *testing.T) {
	e := NewEngine(Shared)
	a := e.Resolve("session-a", "bench1")
	b := e.Resolve("session-b", "bench1")
	if a != b {
		t.Fatal("expected the same mock instance across sessions in shared mode")
	}
}

func TestPerSessionModeIsolatesMocks(t *testing.T) {
	e := NewEngine(PerSession)
	a := e.Resolve("session-a", "bench1")
	b := e.Resolve("session-b", "bench1")
	if a == b {
		t.Fatal("expected disjoint mock instances per session in per-session mode")
	}
}

func TestReleaseSessionTearsDownOwnedMocks(t *testing.T) {
	e := NewEngine(PerSession)
	m := e.Resolve("session-a", "bench1")
	sub := m.Pipe.Subscribe()
	defer sub.Cancel()

	e.ReleaseSession("session-a")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := sub.Next(ctx); ok {
		t.Fatal("expected the subscription to observe pipe closure after session release")
	}

	again := e.Resolve("session-a", "bench1")
	if again == m {
		t.Fatal("expected a fresh mock after release")
	}
}
