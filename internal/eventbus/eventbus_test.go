package eventbus

import (
	"log"
	"os"
	"testing"
	"time"
)

func TestNewOrNilSwallowsConnectFailure(t *testing.T) {
	logger := log.New(os.Stdout, "", 0)
	p := NewOrNil(Config{
		URL:             "nats://127.0.0.1:0",
		MaxReconnects:   0,
		ReconnectWait:   10 * time.Millisecond,
		ReconnectJitter: time.Millisecond,
	}, "serialkeel-test", logger, nil)
	if p != nil {
		t.Fatalf("expected a nil Publisher for an unreachable URL, got %v", p)
	}
}

func TestNilPublisherMethodsAreNoOps(t *testing.T) {
	var p *Publisher
	p.ControlGranted("s1", "unit1")
	p.ControlReleased("s1", "unit1")
	p.Lagged("s1", "unit1", 3)
	p.Close()
}
