package observer

import (
	"sync"
	"testing"
	"time"

	"serialkeel/internal/endpoint"
	"serialkeel/internal/linepipe"
)

func TestObserveForwardsLines(t *testing.T) {
	var mu sync.Mutex
	var frames [][]byte
	r := NewRegistry(func(b []byte) {
		mu.Lock()
		defer mu.Unlock()
		frames = append(frames, b)
	}, nil)

	pipe := linepipe.New()
	id := endpoint.Mock("bench1")
	r.Observe(id, pipe)
	defer r.CloseAll()

	pipe.Publish("hello")

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(frames)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 1 {
		t.Fatalf("expected exactly one forwarded frame, got %d", len(frames))
	}
}

func TestRepeatedObserveIsNoop(t *testing.T) {
	r := NewRegistry(func([]byte) {}, nil)
	pipe := linepipe.New()
	id := endpoint.Mock("bench1")
	r.Observe(id, pipe)
	r.Observe(id, pipe)
	defer r.CloseAll()
	if !r.IsObserving(id) {
		t.Fatal("expected id to be observed")
	}
}

func TestUnobserveStopsForwarding(t *testing.T) {
	r := NewRegistry(func([]byte) {}, nil)
	pipe := linepipe.New()
	id := endpoint.Mock("bench1")
	r.Observe(id, pipe)
	if !r.Unobserve(id) {
		t.Fatal("expected Unobserve to report success")
	}
	if r.IsObserving(id) {
		t.Fatal("expected id to no longer be observed")
	}
	if r.Unobserve(id) {
		t.Fatal("expected a second Unobserve to report no-op")
	}
}
