package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
)

// ErrMissingField marks a required request field that is absent or null.
var ErrMissingField = errors.New("missing field")

// DecodeError reports params or result data that do not match the target
// shape. Field is the JSON key involved, when known. Result is set when the
// failing value was a response payload rather than request params.
type DecodeError struct {
	Field  string
	Err    error
	Result bool
}

func (e *DecodeError) Error() string {
	scope := "invalid params"
	if e.Result {
		scope = "invalid result"
	}
	switch {
	case errors.Is(e.Err, ErrMissingField):
		return fmt.Sprintf("%s: missing field `%s`", scope, e.Field)
	case e.Field != "":
		return fmt.Sprintf("%s: field `%s`: %v", scope, e.Field, e.Err)
	default:
		return fmt.Sprintf("%s: %v", scope, e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ToParams encodes a request into its structured wire form. The catalog's
// request types always encode; an error here is a programming mistake.
func ToParams(request any) (json.RawMessage, error) {
	data, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}
	return data, nil
}

// FromParams decodes structured params into T. Required fields (non-pointer,
// no omitempty) must be present and non-null. Unknown keys are ignored.
func FromParams[T any](params json.RawMessage) (T, error) {
	var out T

	fields, err := rawObject(params)
	if err != nil {
		return out, err
	}
	for _, name := range requiredFields(reflect.TypeOf(out)) {
		raw, ok := fields[name]
		if !ok || isNull(raw) {
			return out, &DecodeError{Field: name, Err: ErrMissingField}
		}
	}

	if len(fields) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(params, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return out, &DecodeError{Field: typeErr.Field, Err: err}
		}
		return out, &DecodeError{Err: err}
	}
	return out, nil
}

func rawObject(params json.RawMessage) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(params)) == 0 || isNull(params) {
		return map[string]json.RawMessage{}, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(params, &fields); err != nil {
		return nil, &DecodeError{Err: errors.New("params must be a JSON object")}
	}
	return fields, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

var requiredCache sync.Map // reflect.Type -> []string

func requiredFields(t reflect.Type) []string {
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := requiredCache.Load(t); ok {
		return cached.([]string)
	}

	var names []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}
		if f.Type.Kind() == reflect.Pointer || strings.Contains(opts, "omitempty") {
			continue
		}
		names = append(names, name)
	}
	requiredCache.Store(t, names)
	return names
}

// Extras is the loose view of raw params. Lookups never fail: a missing key or
// a value of the wrong type reads as absent.
type Extras map[string]json.RawMessage

// ExtrasFrom builds the loose view. Non-object params yield an empty map.
func ExtrasFrom(params json.RawMessage) Extras {
	fields, err := rawObject(params)
	if err != nil {
		return Extras{}
	}
	return Extras(fields)
}

func (x Extras) Bool(key string) *bool {
	var v bool
	if !x.decode(key, &v) {
		return nil
	}
	return &v
}

func (x Extras) String(key string) *string {
	var v string
	if !x.decode(key, &v) {
		return nil
	}
	return &v
}

func (x Extras) Uint32(key string) *uint32 {
	var v uint64
	if !x.decode(key, &v) || v > math.MaxUint32 {
		return nil
	}
	n := uint32(v)
	return &n
}

func (x Extras) decode(key string, dst any) bool {
	raw, ok := x[key]
	if !ok || isNull(raw) {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
