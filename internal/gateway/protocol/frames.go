package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	// ProtocolVersion is bumped whenever the frame or catalog shape changes
	// incompatibly.
	ProtocolVersion = 1
)

// FrameType discriminates frames on the WebSocket.
type FrameType string

const (
	FrameTypeRequest  FrameType = "req"
	FrameTypeResponse FrameType = "res"
	FrameTypeEvent    FrameType = "event"
)

// Frame is implemented by every frame kind.
type Frame interface {
	GetType() FrameType
}

// RequestFrame carries one call: {"method":…, "params":…} plus routing fields.
type RequestFrame struct {
	Type   FrameType       `json:"type"` // always "req"
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (f *RequestFrame) GetType() FrameType { return FrameTypeRequest }

// ResponseFrame carries the envelope for the request with the same ID.
// Code is only set for frame-level failures (unknown method, bad frame),
// never for handler errors.
type ResponseFrame struct {
	Type FrameType `json:"type"` // always "res"
	ID   string    `json:"id"`
	Envelope
	Code string `json:"code,omitempty"`
}

func (f *ResponseFrame) GetType() FrameType { return FrameTypeResponse }

// EventFrame is pushed by the daemon without a matching request.
type EventFrame struct {
	Type    FrameType       `json:"type"` // always "event"
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (f *EventFrame) GetType() FrameType { return FrameTypeEvent }

// ErrorShape is a coded frame-level error.
type ErrorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorShape) Error() string {
	return e.Code + ": " + e.Message
}

// ConnectParams is the first message a client sends after the upgrade.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	Auth        *AuthInfo  `json:"auth,omitempty"`
}

// ClientInfo describes the connecting front end.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// AuthInfo carries the shared daemon token.
type AuthInfo struct {
	Token string `json:"token,omitempty"`
}

// HelloOK is the daemon's answer to a successful connect.
type HelloOK struct {
	Type     string     `json:"type"` // always "hello-ok"
	Protocol int        `json:"protocol"`
	Server   ServerInfo `json:"server"`
	Features Features   `json:"features"`
}

// ServerInfo identifies the daemon instance.
type ServerInfo struct {
	Version string `json:"version"`
	Host    string `json:"host,omitempty"`
	ConnID  string `json:"connId"`
}

// Features advertises the catalog the daemon serves.
type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

// TickEvent is the heartbeat payload.
type TickEvent struct {
	Ts int64 `json:"ts"`
}

// ShutdownEvent announces the daemon going away.
type ShutdownEvent struct {
	Reason string `json:"reason"`
}

// ParseFrame decodes a frame by peeking at its type.
func ParseFrame(data []byte) (Frame, error) {
	var peek struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, err
	}

	switch peek.Type {
	case FrameTypeRequest:
		var f RequestFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameTypeResponse:
		var f ResponseFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	case FrameTypeEvent:
		var f EventFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, NewError(ErrorCodes.InvalidRequest, fmt.Sprintf("unknown frame type %q", peek.Type))
	}
}
