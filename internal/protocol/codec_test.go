package protocol

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"dfut/internal/core"
)

type testCall struct {
	Msg string
}

func (c testCall) Run(context.Context, core.Runtime) (core.Value, error) {
	return c.Msg, nil
}
func (testCall) RemoteDeps() []core.RemoteDep     { return nil }
func (testCall) ResourceReqs() []core.ResourceReq { return nil }

func init() { Register("test.codec.echo", testCall{}) }

// TestFrameRoundTrip is §8 property 4: a payload written through WriteFrame
// comes back byte-identical through ReadFrame, with exactly one length
// prefix consumed per frame.
func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := []byte("hello, dfut")
	if err := WriteFrame(&buf, want); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("want %q, got %q", want, got)
	}
	if buf.Len() != 0 {
		t.Fatalf("expected ReadFrame to consume the whole frame, %d bytes left over", buf.Len())
	}
}

func TestMultipleFramesDoNotBleedIntoEachOther(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for _, want := range frames {
		got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("want %q, got %q", want, got)
		}
	}
}

func TestWriteFrameRejectsEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil); !errors.Is(err, ErrZeroLengthFrame) {
		t.Fatalf("want ErrZeroLengthFrame, got %v", err)
	}
}

func TestReadFrameRejectsZeroLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 0)
	buf.Write(lenBuf[:])

	if _, err := ReadFrame(&buf); !errors.Is(err, ErrZeroLengthFrame) {
		t.Fatalf("want ErrZeroLengthFrame, got %v", err)
	}
}

func TestEncodeDecodeCallCommand(t *testing.T) {
	id := core.NewId()
	want := CallCommand{Id: id, Call: testCall{Msg: "hi"}}

	encoded, err := EncodeCommand(want)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	decoded, err := DecodeCommand(encoded)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}

	got, ok := decoded.(CallCommand)
	if !ok {
		t.Fatalf("want CallCommand, got %T", decoded)
	}
	if got.Id != id {
		t.Fatalf("want id %s, got %s", id, got.Id)
	}
	call, ok := got.Call.(testCall)
	if !ok {
		t.Fatalf("want testCall, got %T", got.Call)
	}
	if call.Msg != "hi" {
		t.Fatalf("want msg %q, got %q", "hi", call.Msg)
	}
}

func TestEncodeDecodeRetrieveCommand(t *testing.T) {
	want := RetrieveCommand{Data: core.RefData{
		Owner:    7,
		Id:       core.NewId(),
		Instance: core.NewId(),
		Parent:   core.NilInstance,
		Children: 2,
	}}

	encoded, err := EncodeCommand(want)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	decoded, err := DecodeCommand(encoded)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	got, ok := decoded.(RetrieveCommand)
	if !ok {
		t.Fatalf("want RetrieveCommand, got %T", decoded)
	}
	if got.Data != want.Data {
		t.Fatalf("want %+v, got %+v", want.Data, got.Data)
	}
}

func TestEncodeDecodeCompletedCommandSuccess(t *testing.T) {
	payload, err := EncodeValue(42)
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	want := CompletedCommand{Instance: core.NewId(), Payload: payload}

	encoded, err := EncodeCommand(want)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	decoded, err := DecodeCommand(encoded)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	got, ok := decoded.(CompletedCommand)
	if !ok {
		t.Fatalf("want CompletedCommand, got %T", decoded)
	}
	if got.Instance != want.Instance {
		t.Fatalf("want instance %s, got %s", want.Instance, got.Instance)
	}
	v, err := DecodeValue(got.Payload)
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if v != float64(42) {
		t.Fatalf("want 42, got %v (%T)", v, v)
	}
}

func TestEncodeDecodeCompletedCommandError(t *testing.T) {
	want := CompletedCommand{
		Instance: core.NewId(),
		ErrKind:  core.KindPanic.String(),
		ErrMsg:   "boom",
	}

	encoded, err := EncodeCommand(want)
	if err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}
	decoded, err := DecodeCommand(encoded)
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	got, ok := decoded.(CompletedCommand)
	if !ok {
		t.Fatalf("want CompletedCommand, got %T", decoded)
	}
	if got.ErrKind != want.ErrKind || got.ErrMsg != want.ErrMsg {
		t.Fatalf("want %+v, got %+v", want, got)
	}
	if core.ParseKind(got.ErrKind) != core.KindPanic {
		t.Fatalf("want KindPanic, got %v", core.ParseKind(got.ErrKind))
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	if _, err := DecodeCommand([]byte(`{"type":"bogus","body":{}}`)); err == nil {
		t.Fatal("want an error decoding an unregistered command tag")
	}
}
