// Package wire defines the JSON request/response shapes exchanged over a
// Session's WebSocket connection, and the encode/decode helpers around
// them. The wire format is a tagged union at the top level: every frame
// is a single-key JSON object naming the request or response kind.
package wire

import (
	"encoding/json"
	"fmt"

	"serialkeel/internal/endpoint"
)

// Target names either an endpoint or a configured group as a Control
// destination.
type Target struct {
	Endpoint *endpoint.ID
	Group    *string
}

func (t Target) MarshalJSON() ([]byte, error) {
	if t.Group != nil {
		return json.Marshal(map[string]string{"Group": *t.Group})
	}
	if t.Endpoint != nil {
		return json.Marshal(*t.Endpoint)
	}
	return nil, fmt.Errorf("wire: empty control target")
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("wire: control target: %w", err)
	}
	if raw, ok := probe["Group"]; ok {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return fmt.Errorf("wire: control target group: %w", err)
		}
		t.Group = &name
		return nil
	}
	var id endpoint.ID
	if err := json.Unmarshal(data, &id); err != nil {
		return fmt.Errorf("wire: control target endpoint: %w", err)
	}
	t.Endpoint = &id
	return nil
}

// Request is the decoded form of one inbound client frame. Exactly one
// field is non-nil, mirroring the single-key wire object it came from.
type Request struct {
	Control       *Target
	ControlAny    []string
	Observe       *endpoint.ID
	Unobserve     *endpoint.ID
	Write         *WriteRequest
	ListEndpoints bool
}

// WriteRequest is the decoded [<endpoint id>, "<payload>"] tuple carried
// under the "Write" key, e.g. {"Write": [{"Mock":"bench1"}, "hello"]}.
type WriteRequest struct {
	Endpoint endpoint.ID
	Payload  string
}

func (w WriteRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{w.Endpoint, w.Payload})
}

func (w *WriteRequest) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("wire: write request: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &w.Endpoint); err != nil {
		return fmt.Errorf("wire: write request endpoint: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &w.Payload); err != nil {
		return fmt.Errorf("wire: write request payload: %w", err)
	}
	return nil
}

// DecodeRequest parses one inbound frame into a Request.
func DecodeRequest(data []byte) (Request, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return Request{}, fmt.Errorf("wire: malformed request: %w", err)
	}
	if len(probe) != 1 {
		return Request{}, fmt.Errorf("wire: request must have exactly one key, got %d", len(probe))
	}
	var req Request
	for key, raw := range probe {
		switch key {
		case "Control":
			var target Target
			if err := json.Unmarshal(raw, &target); err != nil {
				return Request{}, fmt.Errorf("wire: Control: %w", err)
			}
			req.Control = &target
		case "ControlAny":
			var labels []string
			if err := json.Unmarshal(raw, &labels); err != nil {
				return Request{}, fmt.Errorf("wire: ControlAny: %w", err)
			}
			req.ControlAny = labels
		case "Observe":
			var id endpoint.ID
			if err := json.Unmarshal(raw, &id); err != nil {
				return Request{}, fmt.Errorf("wire: Observe: %w", err)
			}
			req.Observe = &id
		case "Unobserve":
			var id endpoint.ID
			if err := json.Unmarshal(raw, &id); err != nil {
				return Request{}, fmt.Errorf("wire: Unobserve: %w", err)
			}
			req.Unobserve = &id
		case "Write":
			var wr WriteRequest
			if err := json.Unmarshal(raw, &wr); err != nil {
				return Request{}, fmt.Errorf("wire: Write: %w", err)
			}
			req.Write = &wr
		case "ListEndpoints":
			req.ListEndpoints = true
		default:
			return Request{}, fmt.Errorf("wire: unknown request kind %q", key)
		}
	}
	return req, nil
}

// ErrorKind enumerates the taxonomy every client-facing failure is
// reported under.
type ErrorKind string

const (
	ErrorAlreadyControlled ErrorKind = "AlreadyControlled"
	ErrorNotControlled     ErrorKind = "NotController"
	ErrorUnknownTarget     ErrorKind = "UnknownEndpoint"
	ErrorNoMatch           ErrorKind = "NoMatch"
	ErrorNotObserving      ErrorKind = "NotObserving"
	ErrorMalformedRequest  ErrorKind = "InvalidRequest"
	ErrorInternalFailure   ErrorKind = "InternalFailure"
)

// Error is a typed, client-facing failure.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Detail) }

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// EndpointInfo is one entry in a ListEndpoints response.
type EndpointInfo struct {
	Endpoint endpoint.ID `json:"endpoint"`
	Labels   []string    `json:"labels"`
}

func EncodeControlGranted(endpoints []endpoint.ID) []byte {
	return mustEncode(map[string]interface{}{"ControlGranted": endpoints})
}

func EncodeQueued(position int) []byte {
	return mustEncode(map[string]interface{}{"Queued": position})
}

func EncodeObserveOk() []byte {
	return mustEncode(map[string]interface{}{"ObserveOk": nil})
}

func EncodeUnobserveOk() []byte {
	return mustEncode(map[string]interface{}{"UnobserveOk": nil})
}

func EncodeWriteOk() []byte {
	return mustEncode(map[string]interface{}{"WriteOk": nil})
}

func EncodeListEndpoints(entries []EndpointInfo) []byte {
	return mustEncode(map[string]interface{}{"Endpoints": entries})
}

func EncodeAsyncMessage(id endpoint.ID, line string) []byte {
	return mustEncode(map[string]interface{}{
		"Async": map[string]interface{}{
			"Message": map[string]interface{}{"endpoint": id, "line": line},
		},
	})
}

func EncodeAsyncControlGranted(endpoints []endpoint.ID) []byte {
	return mustEncode(map[string]interface{}{
		"Async": map[string]interface{}{"ControlGranted": endpoints},
	})
}

func EncodeLagged(id endpoint.ID, dropped int) []byte {
	return mustEncode(map[string]interface{}{
		"Async": map[string]interface{}{
			"Lagged": map[string]interface{}{"endpoint": id, "dropped": dropped},
		},
	})
}

func EncodeError(kind ErrorKind, detail string) []byte {
	return mustEncode(map[string]interface{}{
		"Error": map[string]interface{}{"kind": kind, "detail": detail},
	})
}

func mustEncode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Every value passed to this helper is built from this package's
		// own types; a marshal failure here is a programming error, not
		// something a caller can recover from.
		panic(fmt.Sprintf("wire: encode failure: %v", err))
	}
	return data
}
