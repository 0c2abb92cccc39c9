package session

import (
	"encoding/json"
	"testing"
	"time"

	"serialkeel/internal/allocator"
	"serialkeel/internal/directory"
	"serialkeel/internal/endpoint"
	"serialkeel/internal/groupregistry"
	"serialkeel/internal/mockendpoint"
)

func newHarness(t *testing.T) (*directory.Directory, *allocator.Allocator) {
	t.Helper()
	reg, err := groupregistry.Build(
		[]groupregistry.EndpointConfig{
			{ID: endpoint.Tty("ttyACM0"), Labels: []string{"sensor"}},
			{ID: endpoint.Tty("ttyACM1"), Labels: []string{"sensor"}},
		},
		nil,
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	dir := directory.New(reg, mockendpoint.NewEngine(mockendpoint.Shared), nil)
	return dir, allocator.New()
}

func decodeFrame(t *testing.T, raw []byte) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode frame %s: %v", raw, err)
	}
	return out
}

func recvFrame(t *testing.T, s *Session) map[string]json.RawMessage {
	t.Helper()
	select {
	case raw := <-s.Outbound():
		return decodeFrame(t, raw)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

func TestControlGrantsImmediatelyWhenFree(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	frame := recvFrame(t, s)
	if _, ok := frame["ControlGranted"]; !ok {
		t.Fatalf("expected ControlGranted, got %v", frame)
	}
}

func TestSecondControlQueuesThenGrantsAsyncOnRelease(t *testing.T) {
	dir, alloc := newHarness(t)
	s1 := New("s1", dir, alloc, 16, nil, nil)
	s2 := New("s2", dir, alloc, 16, nil, nil)
	defer s1.Close()
	defer s2.Close()

	s1.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	recvFrame(t, s1)

	s2.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	queued := recvFrame(t, s2)
	if _, ok := queued["Queued"]; !ok {
		t.Fatalf("expected Queued, got %v", queued)
	}

	s1.Close()

	async := recvFrame(t, s2)
	inner, ok := async["Async"]
	if !ok {
		t.Fatalf("expected an Async frame, got %v", async)
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(inner, &payload); err != nil {
		t.Fatalf("decode async: %v", err)
	}
	if _, ok := payload["ControlGranted"]; !ok {
		t.Fatalf("expected an async ControlGranted, got %v", payload)
	}
}

func TestWriteWithoutControlIsRejected(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"Write":[{"Mock":"bench1"},"hello"]}`))
	frame := recvFrame(t, s)
	errBody, ok := frame["Error"]
	if !ok {
		t.Fatalf("expected an Error frame, got %v", frame)
	}
	var parsed struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(errBody, &parsed); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if parsed.Kind != "NotController" {
		t.Fatalf("expected NotController, got %s", parsed.Kind)
	}
}

func TestObserveDoesNotRequireControl(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"Observe":{"Mock":"bench1"}}`))
	frame := recvFrame(t, s)
	if _, ok := frame["ObserveOk"]; !ok {
		t.Fatalf("expected ObserveOk, got %v", frame)
	}
}

func TestWriteAfterControlSucceedsAndIsObservable(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"Observe":{"Mock":"bench1"}}`))
	recvFrame(t, s)

	s.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	recvFrame(t, s)

	s.Handle([]byte(`{"Write":[{"Mock":"bench1"},"ping"]}`))

	// WriteOk and the async loopback message both land on the outbound
	// channel; the forwarder goroutine races the synchronous response, so
	// only their presence, not their order, is guaranteed.
	sawWriteOk, sawAsync := false, false
	for i := 0; i < 2; i++ {
		frame := recvFrame(t, s)
		if _, ok := frame["WriteOk"]; ok {
			sawWriteOk = true
		}
		if _, ok := frame["Async"]; ok {
			sawAsync = true
		}
	}
	if !sawWriteOk || !sawAsync {
		t.Fatalf("expected both WriteOk and an async loopback message, got writeOk=%v async=%v", sawWriteOk, sawAsync)
	}
}

func TestDuplicateControlFromSameSessionIsAnError(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	recvFrame(t, s)
	s.Handle([]byte(`{"Control":{"Mock":"bench1"}}`))
	frame := recvFrame(t, s)
	if _, ok := frame["Error"]; !ok {
		t.Fatalf("expected an Error frame for duplicate control, got %v", frame)
	}
}

func TestListEndpointsReturnsConfiguredSet(t *testing.T) {
	dir, alloc := newHarness(t)
	s := New("s1", dir, alloc, 16, nil, nil)
	defer s.Close()

	s.Handle([]byte(`{"ListEndpoints":null}`))
	frame := recvFrame(t, s)
	raw, ok := frame["Endpoints"]
	if !ok {
		t.Fatalf("expected an Endpoints frame, got %v", frame)
	}
	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		t.Fatalf("decode endpoints: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 configured endpoints, got %d", len(entries))
	}
}
