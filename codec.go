package libsession

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Frame is one unit exchanged over a transport: an event name and its JSON payload.
type Frame struct {
	Name    string
	Payload json.RawMessage
}

// FrameCodec hides how a transport frames events on the wire.
type FrameCodec interface {
	Encode(f Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

var ErrInvalidFrame = errors.New("invalid frame")

// TypePayloadCodec frames events as {"type": name, "payload": {...}}. Frames without a
// payload member are treated as flat: the whole object is the payload.
type TypePayloadCodec struct{}

type typePayloadFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (TypePayloadCodec) Encode(f Frame) ([]byte, error) {
	if f.Name == "" {
		return nil, errors.Wrap(ErrInvalidFrame, "empty event name")
	}
	return json.Marshal(typePayloadFrame{Type: f.Name, Payload: f.Payload})
}

func (TypePayloadCodec) Decode(data []byte) (Frame, error) {
	var raw typePayloadFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, errors.Wrap(ErrInvalidFrame, err.Error())
	}
	if raw.Type == "" {
		return Frame{}, errors.Wrap(ErrInvalidFrame, "missing type")
	}

	payload := raw.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(bytes.TrimSpace(data))
	}
	return Frame{Name: raw.Type, Payload: payload}, nil
}

// NamedEventCodec frames events as {"event": name, "data": {...}}.
type NamedEventCodec struct{}

type namedEventFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (NamedEventCodec) Encode(f Frame) ([]byte, error) {
	if f.Name == "" {
		return nil, errors.Wrap(ErrInvalidFrame, "empty event name")
	}
	return json.Marshal(namedEventFrame{Event: f.Name, Data: f.Payload})
}

func (NamedEventCodec) Decode(data []byte) (Frame, error) {
	var raw namedEventFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, errors.Wrap(ErrInvalidFrame, err.Error())
	}
	if raw.Event == "" {
		return Frame{}, errors.Wrap(ErrInvalidFrame, "missing event")
	}
	return Frame{Name: raw.Event, Payload: raw.Data}, nil
}

func newFrame(name string, payload any) (Frame, error) {
	bts, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, errors.Wrapf(err, "encode %s payload", name)
	}
	return Frame{Name: name, Payload: bts}, nil
}
