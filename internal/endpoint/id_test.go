package endpoint

import (
	"encoding/json"
	"testing"
)

func TestIDRoundTrip(t *testing.T) {
	cases := []ID{Tty("/dev/ttyACM0"), Mock("bench1")}
	for _, id := range cases {
		data, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("marshal %v: %v", id, err)
		}
		var out ID
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if out != id {
			t.Fatalf("round trip mismatch: got %v, want %v", out, id)
		}
	}
}

func TestIDUnmarshalRejectsUnknownTag(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`{"Group":"g1"}`), &id); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestLabelSetHasAll(t *testing.T) {
	s := NewLabelSet("sensor", "calibrated")
	if !s.HasAll([]string{"sensor"}) {
		t.Fatal("expected subset match")
	}
	if s.HasAll([]string{"sensor", "missing"}) {
		t.Fatal("expected mismatch when a label is absent")
	}
	if !s.HasAll(nil) {
		t.Fatal("empty want should always match")
	}
}
