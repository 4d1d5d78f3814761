package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"dfut/internal/core"

	jsoniter "github.com/json-iterator/go"
)

// ErrZeroLengthFrame is returned by ReadFrame when a frame's length prefix
// is zero — illegal per §6.
var ErrZeroLengthFrame = errors.New("protocol: zero-length frame")

// WriteFrame writes payload as one u32-big-endian-length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return ErrZeroLengthFrame
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("protocol: write frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write frame payload: %w", err)
	}
	return nil
}

// ReadFrame reads exactly one u32-length-prefixed frame: one 4-byte length
// read followed by exactly that many payload bytes — never more than one
// length read per frame, the fix for the re-read bug noted in §9.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, ErrZeroLengthFrame
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("protocol: read frame payload: %w", err)
	}
	return payload, nil
}

type envelope struct {
	Type string              `json:"type"`
	Body jsoniter.RawMessage `json:"body"`
}

type callCommandWire struct {
	Id   core.DFutId         `json:"id"`
	Call jsoniter.RawMessage `json:"call"`
}

// EncodeCommand produces the self-describing payload for one Command,
// suitable for WriteFrame.
func EncodeCommand(cmd Command) ([]byte, error) {
	switch c := cmd.(type) {
	case CallCommand:
		callBody, err := encodeCall(c.Call)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(callCommandWire{Id: c.Id, Call: callBody})
		if err != nil {
			return nil, fmt.Errorf("protocol: encode call command: %w", err)
		}
		return json.Marshal(envelope{Type: "call", Body: body})

	case RetrieveCommand:
		body, err := json.Marshal(c.Data)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode retrieve command: %w", err)
		}
		return json.Marshal(envelope{Type: "retrieve", Body: body})

	case CompletedCommand:
		body, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode completed command: %w", err)
		}
		return json.Marshal(envelope{Type: "completed", Body: body})

	default:
		return nil, fmt.Errorf("protocol: unknown command type %T", cmd)
	}
}

// DecodeCommand is the inverse of EncodeCommand.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}

	switch env.Type {
	case "call":
		var wire callCommandWire
		if err := json.Unmarshal(env.Body, &wire); err != nil {
			return nil, fmt.Errorf("protocol: decode call command: %w", err)
		}
		call, err := decodeCall(wire.Call)
		if err != nil {
			return nil, err
		}
		return CallCommand{Id: wire.Id, Call: call}, nil

	case "retrieve":
		var data core.RefData
		if err := json.Unmarshal(env.Body, &data); err != nil {
			return nil, fmt.Errorf("protocol: decode retrieve command: %w", err)
		}
		return RetrieveCommand{Data: data}, nil

	case "completed":
		var c CompletedCommand
		if err := json.Unmarshal(env.Body, &c); err != nil {
			return nil, fmt.Errorf("protocol: decode completed command: %w", err)
		}
		return c, nil

	default:
		return nil, fmt.Errorf("protocol: unknown command tag %q", env.Type)
	}
}

// EncodeValue serialises an arbitrary call result for the wire (the
// "serialises the value" step of §4.2's incoming-Retrieve handling).
func EncodeValue(v core.Value) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode value: %w", err)
	}
	return b, nil
}

// DecodeValue decodes a wire payload into a generic core.Value. The
// concrete shape (float64 vs int, map vs struct, …) follows plain JSON
// decoding rules; callers that need a specific Go type re-encode/decode
// through it — see package dfut's convertValue (used by DFutRef.Resolve),
// which does exactly that
// so that a local (same-process) retrieve, which never serialises at all,
// and a remote one converge on the same typed result.
func DecodeValue(payload []byte) (core.Value, error) {
	var v core.Value
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("protocol: decode value: %w", err)
	}
	return v, nil
}
