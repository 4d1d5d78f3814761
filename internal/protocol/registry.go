package protocol

import (
	"fmt"
	"reflect"
	"sync"

	"dfut/internal/core"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Register associates a wire tag with a concrete core.Call implementation.
// A code-generation call front-end is expected to call Register once per
// generated variant, in an init(), the same way a hand-written Call front
// end (this module's procs package) does — it is the runtime's stand-in
// for the tag serde would otherwise attach to a generated enum variant
// (§4.5, §9).
//
// zero is only used for its dynamic type; Register panics if tag was
// already registered with a different type, since that is always a
// programming error caught at process start, never a runtime condition.
func Register(tag string, zero core.Call) {
	t := reflect.TypeOf(zero)

	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := byTag[tag]; ok && existing != t {
		panic(fmt.Sprintf("protocol: tag %q already registered to %v", tag, existing))
	}
	byTag[tag] = t
	byType[t] = tag
}

var (
	registryMu sync.RWMutex
	byTag      = map[string]reflect.Type{}
	byType     = map[reflect.Type]string{}
)

type callEnvelope struct {
	Type string          `json:"type"`
	Body jsoniter.RawMessage `json:"body"`
}

func encodeCall(c core.Call) ([]byte, error) {
	registryMu.RLock()
	tag, ok := byType[reflect.TypeOf(c)]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("protocol: call type %T is not registered", c)
	}
	body, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode call body: %w", err)
	}
	return json.Marshal(callEnvelope{Type: tag, Body: body})
}

func decodeCall(data []byte) (core.Call, error) {
	var env callEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: decode call envelope: %w", err)
	}

	registryMu.RLock()
	t, ok := byTag[env.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("protocol: call tag %q is not registered", env.Type)
	}

	ptr := reflect.New(t)
	if err := json.Unmarshal(env.Body, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("protocol: decode call body (tag %q): %w", env.Type, err)
	}
	call, ok := ptr.Elem().Interface().(core.Call)
	if !ok {
		return nil, fmt.Errorf("protocol: registered type for tag %q does not implement Call", env.Type)
	}
	return call, nil
}
