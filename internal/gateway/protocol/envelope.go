package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the uniform result of a call. Exactly one shape is valid:
// {ok:true,data:…}, {ok:true} for unit results, or {ok:false,error:"…"}.
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// RemoteError is a handler failure read back out of an envelope. The message
// is the handler's error text, unchanged.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string { return e.Message }

// EncodeValue wraps a typed handler result.
func EncodeValue[T any](v T, err error) *Envelope {
	if err != nil {
		return EncodeFailure(err)
	}
	data, merr := json.Marshal(v)
	if merr != nil {
		return EncodeFailure(fmt.Errorf("encoding result: %w", merr))
	}
	return &Envelope{OK: true, Data: data}
}

// EncodeUnit wraps a handler that returns nothing on success.
func EncodeUnit(err error) *Envelope {
	if err != nil {
		return EncodeFailure(err)
	}
	return &Envelope{OK: true}
}

// EncodePassthrough wraps a handler that already produced structured data.
// The bytes are forwarded as-is; an empty payload is sent as null so the
// envelope is not mistaken for a unit result.
func EncodePassthrough(raw json.RawMessage, err error) *Envelope {
	if err != nil {
		return EncodeFailure(err)
	}
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return &Envelope{OK: true, Data: raw}
}

// EncodeFailure wraps any error as {ok:false,error}.
func EncodeFailure(err error) *Envelope {
	msg := err.Error()
	if msg == "" {
		msg = "unknown error"
	}
	return &Envelope{OK: false, Error: msg}
}

// IsUnit reports whether the envelope is the {ok:true} shape.
func (e *Envelope) IsUnit() bool {
	return e.OK && len(e.Data) == 0
}

// Err returns the handler failure carried by the envelope, or nil.
func (e *Envelope) Err() error {
	if e.OK {
		return nil
	}
	return &RemoteError{Message: e.Error}
}

// Validate rejects envelopes that mix shapes.
func (e *Envelope) Validate() error {
	switch {
	case e.OK && e.Error != "":
		return errors.New("envelope: ok response carries an error")
	case !e.OK && e.Error == "":
		return errors.New("envelope: failed response without an error message")
	case !e.OK && len(e.Data) > 0:
		return errors.New("envelope: failed response carries data")
	}
	return nil
}

// DecodeData extracts a typed result. A unit envelope yields the zero value.
func DecodeData[T any](env *Envelope) (T, error) {
	var out T
	if env == nil {
		return out, &DecodeError{Err: errors.New("missing response"), Result: true}
	}
	if err := env.Validate(); err != nil {
		return out, &DecodeError{Err: err, Result: true}
	}
	if err := env.Err(); err != nil {
		return out, err
	}
	if env.IsUnit() {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, &DecodeError{Err: err, Result: true}
	}
	return out, nil
}
