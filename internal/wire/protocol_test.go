package wire

import (
	"encoding/json"
	"testing"

	"serialkeel/internal/endpoint"
)

func TestDecodeControlRequestEndpoint(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"Control":{"Tty":"/dev/ttyACM0"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Control == nil || req.Control.Endpoint == nil || req.Control.Endpoint.Name != "/dev/ttyACM0" {
		t.Fatalf("unexpected decode result: %+v", req)
	}
}

func TestDecodeControlRequestGroup(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"Control":{"Group":"rig"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Control == nil || req.Control.Group == nil || *req.Control.Group != "rig" {
		t.Fatalf("unexpected decode result: %+v", req)
	}
}

func TestDecodeControlAny(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"ControlAny":["sensor","calibrated"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(req.ControlAny) != 2 || req.ControlAny[0] != "sensor" {
		t.Fatalf("unexpected labels: %v", req.ControlAny)
	}
}

func TestDecodeWriteTuple(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"Write":[{"Mock":"bench1"},"hello"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Write == nil || req.Write.Endpoint.Name != "bench1" || req.Write.Payload != "hello" {
		t.Fatalf("unexpected write request: %+v", req.Write)
	}
}

func TestDecodeRejectsMultiKeyRequest(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"Observe":{"Mock":"bench1"},"Unobserve":{"Mock":"bench1"}}`))
	if err == nil {
		t.Fatal("expected an error for a multi-key request")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"Reboot":null}`))
	if err == nil {
		t.Fatal("expected an error for an unknown request kind")
	}
}

func TestEncodeControlGrantedShape(t *testing.T) {
	data := EncodeControlGranted([]endpoint.ID{endpoint.Tty("a")})
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := out["ControlGranted"]; !ok {
		t.Fatalf("expected a ControlGranted key, got %s", data)
	}
}

func TestEncodeErrorShape(t *testing.T) {
	data := EncodeError(ErrorNotControlled, "unit1")
	var out struct {
		Error struct {
			Kind   string `json:"kind"`
			Detail string `json:"detail"`
		} `json:"Error"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Error.Kind != string(ErrorNotControlled) || out.Error.Detail != "unit1" {
		t.Fatalf("unexpected error frame: %+v", out)
	}
}
