// Package codec converts values that have round-tripped through a JSON backed
// storage back into the Go types callers asked for.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Decode copies in into out, which must be a non-nil pointer.
//
// Storage backends hand values back as map[string]any, []any and float64.
// Decode uses the json struct tags so a type persisted with encoding/json
// decodes back to itself, and it accepts weakly typed input (e.g. float64 for
// an int field, RFC3339 strings for time.Time).
func Decode(in, out any) error {
	if in == nil {
		return nil
	}

	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("codec: decode target must be a non-nil pointer, got %T", out)
	}

	// Same type: plain assignment, no need to walk it.
	iv := reflect.ValueOf(in)
	if iv.Type().AssignableTo(rv.Elem().Type()) {
		rv.Elem().Set(iv)
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("codec: decode %T: %w", out, err)
	}
	return nil
}

// CloneMap returns a deep copy of a JSON compatible map.
func CloneMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal: %w", err)
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("codec: unmarshal: %w", err)
	}
	return out, nil
}

// Int reads a numeric value that may have been widened to float64 by JSON.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}
