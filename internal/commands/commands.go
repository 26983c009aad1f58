// Package commands is the caller-side entry point for the git command
// catalog. Each call runs in-process or is forwarded to the daemon,
// depending on the backend mode in effect for that call.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/z8n24/codexmonitor-go/internal/config"
	"github.com/z8n24/codexmonitor-go/internal/gateway/protocol"
	"github.com/z8n24/codexmonitor-go/internal/gitcore"
)

// ErrNoTransport is returned for remote calls on a Commands built without one.
var ErrNoTransport = errors.New("remote mode is enabled but no remote backend is configured")

// Mode selects where a call executes.
type Mode int

const (
	ModeUnset Mode = iota
	ModeLocal
	ModeRemote
)

func (m Mode) String() string {
	switch m {
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	default:
		return "unset"
	}
}

// Transport forwards one call to the daemon and returns its envelope.
type Transport interface {
	Send(ctx context.Context, method protocol.Method, params json.RawMessage) (*protocol.Envelope, error)
}

// ModeOracle reports the configured mode.
type ModeOracle interface {
	Mode() Mode
}

// ModeFunc adapts a function to ModeOracle.
type ModeFunc func() Mode

func (f ModeFunc) Mode() Mode { return f() }

// ConfigMode reads the mode from the store's current snapshot.
func ConfigMode(store *config.Store) ModeOracle {
	return ModeFunc(func() Mode {
		switch store.Get().Backend.Mode {
		case config.ModeRemote:
			return ModeRemote
		case config.ModeLocal:
			return ModeLocal
		default:
			return ModeUnset
		}
	})
}

type modeKey struct{}

// WithMode pins the mode for calls made with ctx, overriding the oracle.
func WithMode(ctx context.Context, m Mode) context.Context {
	return context.WithValue(ctx, modeKey{}, m)
}

// Commands dispatches catalog calls.
type Commands struct {
	local     gitcore.Backend
	transport Transport
	oracle    ModeOracle
}

// New creates a Commands. transport and oracle may be nil; a nil oracle
// means local unless the context says otherwise.
func New(local gitcore.Backend, transport Transport, oracle ModeOracle) *Commands {
	return &Commands{local: local, transport: transport, oracle: oracle}
}

// mode is read exactly once per call.
func (c *Commands) mode(ctx context.Context) Mode {
	if m, ok := ctx.Value(modeKey{}).(Mode); ok && m != ModeUnset {
		return m
	}
	if c.oracle == nil {
		return ModeUnset
	}
	return c.oracle.Mode()
}

// forward sends req for method and decodes a typed result.
func forward[T any](ctx context.Context, c *Commands, method protocol.Method, req any) (T, error) {
	var zero T
	env, err := c.send(ctx, method, req)
	if err != nil {
		return zero, err
	}
	return protocol.DecodeData[T](env)
}

// forwardUnit sends req for a method with no result payload.
func forwardUnit(ctx context.Context, c *Commands, method protocol.Method, req any) error {
	env, err := c.send(ctx, method, req)
	if err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return &protocol.DecodeError{Err: err, Result: true}
	}
	return env.Err()
}

func (c *Commands) send(ctx context.Context, method protocol.Method, req any) (*protocol.Envelope, error) {
	if c.transport == nil {
		return nil, ErrNoTransport
	}
	params, err := protocol.ToParams(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	env, err := c.transport.Send(ctx, method, params)
	if err != nil {
		log.Warn().Err(err).Str("method", string(method)).Msg("Remote call failed")
		return nil, err
	}
	log.Debug().
		Str("method", string(method)).
		Bool("ok", env.OK).
		Dur("took", time.Since(start)).
		Msg("Remote call")
	return env, nil
}

func intPtr(v *uint32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
