// Package endpoint defines the identity types shared by every other
// package: an EndpointId names either a real TTY or a mock, a GroupId
// names a configured collection of endpoints.
package endpoint

import (
	"encoding/json"
	"fmt"
)

// Kind distinguishes a real serial device from an in-memory mock.
type Kind int

const (
	KindTty Kind = iota
	KindMock
)

func (k Kind) String() string {
	if k == KindMock {
		return "Mock"
	}
	return "Tty"
}

// ID identifies a single endpoint. It round-trips through JSON as a
// single-key object, e.g. {"Tty":"/dev/ttyACM0"} or {"Mock":"bench1"}.
type ID struct {
	Kind Kind
	Name string
}

func Tty(name string) ID  { return ID{Kind: KindTty, Name: name} }
func Mock(name string) ID { return ID{Kind: KindMock, Name: name} }

func (id ID) String() string {
	return fmt.Sprintf("%s(%s)", id.Kind, id.Name)
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch id.Kind {
	case KindMock:
		return json.Marshal(map[string]string{"Mock": id.Name})
	default:
		return json.Marshal(map[string]string{"Tty": id.Name})
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("endpoint id: %w", err)
	}
	if name, ok := raw["Tty"]; ok {
		*id = ID{Kind: KindTty, Name: name}
		return nil
	}
	if name, ok := raw["Mock"]; ok {
		*id = ID{Kind: KindMock, Name: name}
		return nil
	}
	return fmt.Errorf("endpoint id: expected one of Tty, Mock, got %s", string(data))
}

// LabelSet is a small unordered set of string labels attached to an
// endpoint or a group at configuration time.
type LabelSet map[string]struct{}

func NewLabelSet(labels ...string) LabelSet {
	s := make(LabelSet, len(labels))
	for _, l := range labels {
		s[l] = struct{}{}
	}
	return s
}

func (s LabelSet) Has(label string) bool {
	_, ok := s[label]
	return ok
}

// HasAll reports whether every label in want is present in s.
func (s LabelSet) HasAll(want []string) bool {
	for _, l := range want {
		if !s.Has(l) {
			return false
		}
	}
	return true
}

func (s LabelSet) Slice() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}
