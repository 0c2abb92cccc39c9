package linepipe

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestPublishDeliversInOrder(t *testing.T) {
	p := New()
	sub := p.Subscribe()
	defer sub.Cancel()

	go func() {
		p.Publish("one")
		p.Publish("two")
		p.Publish("three")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []string
	for i := 0; i < 3; i++ {
		ev, ok := sub.Next(ctx)
		if !ok {
			t.Fatalf("subscription closed early at index %d", i)
		}
		if ev.Kind != EventLine {
			t.Fatalf("unexpected event kind %v", ev.Kind)
		}
		got = append(got, ev.Line.Text)
	}
	want := []string{"one", "two", "three"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLagMarkerOnOverflow(t *testing.T) {
	p := New()
	sub := p.Subscribe()
	defer sub.Cancel()

	const capacity = defaultSubscriberCapacity
	for i := 0; i < capacity+5; i++ {
		p.Publish("line")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, ok := sub.Next(ctx)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Kind != EventLag {
		t.Fatalf("expected a lag marker first, got %v", ev.Kind)
	}
	if ev.Dropped != 5 {
		t.Fatalf("expected 5 dropped lines, got %d", ev.Dropped)
	}

	ev, ok = sub.Next(ctx)
	if !ok || ev.Kind != EventLine {
		t.Fatalf("expected a line event after the lag marker, got %v ok=%v", ev, ok)
	}
}

func TestPumpFlushesTrailingFragmentOnEOF(t *testing.T) {
	p := New()
	sub := p.Subscribe()
	defer sub.Cancel()

	r := io.NopCloser(strings.NewReader("alpha\nbeta\ngamma"))
	done := make(chan struct{})
	go func() {
		_ = Pump(p, r)
		close(done)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var got []string
	for i := 0; i < 3; i++ {
		ev, ok := sub.Next(ctx)
		if !ok {
			t.Fatalf("subscription closed early at index %d", i)
		}
		got = append(got, ev.Line.Text)
	}
	want := []string{"alpha", "beta", "gamma"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	<-done
}

func TestSubscribeDoesNotReplayHistory(t *testing.T) {
	p := New()
	p.Publish("before")
	sub := p.Subscribe()
	defer sub.Cancel()
	p.Publish("after")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, ok := sub.Next(ctx)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Line.Text != "after" {
		t.Fatalf("expected only post-subscribe lines, got %q", ev.Line.Text)
	}
}
