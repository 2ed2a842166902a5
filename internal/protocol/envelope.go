// Package protocol defines the JSON envelopes exchanged between the hub
// and its clients. Frames are decoded once at the connection boundary and
// dispatched on the type field.
package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// Client → hub frame types.
const (
	TypeAuthenticate = "authenticate"
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
)

// Hub → client frame types.
const (
	TypeSystem       = "system"
	TypeAuthSuccess  = "auth_success"
	TypeAuthError    = "auth_error"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePong         = "pong"
	TypeEcho         = "echo"
	TypeError        = "error"
)

// ErrMalformedFrame covers undecodable JSON and frames without a type.
var ErrMalformedFrame = errors.New("malformed frame")

// ClientFrame is one inbound message, decoded at the boundary.
//
// Channel stays raw so a non-string channel value can be ignored without
// failing the whole frame (clients sending {"channel": 7} get a silent
// no-op, not an error).
type ClientFrame struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	Channel json.RawMessage `json:"channel,omitempty"`

	raw []byte
}

// ParseClientFrame decodes an inbound frame. Invalid JSON and missing
// type are both protocol errors.
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrMalformedFrame
	}
	if f.Type == "" {
		return nil, ErrMalformedFrame
	}
	f.raw = data
	return &f, nil
}

// ChannelName returns the channel field when it is a JSON string.
func (f *ClientFrame) ChannelName() (string, bool) {
	if len(f.Channel) == 0 {
		return "", false
	}
	var name string
	if err := json.Unmarshal(f.Channel, &name); err != nil {
		return "", false
	}
	return name, true
}

// Raw returns the original frame bytes (used by the echo reply).
func (f *ClientFrame) Raw() json.RawMessage {
	return json.RawMessage(f.raw)
}

// Envelope is an outbound message under construction. The timestamp is
// injected by Encode at send time, not at creation time, so a delayed
// send is still self-describing.
type Envelope map[string]any

// Encode stamps the envelope with the current time and marshals it.
func Encode(env Envelope) ([]byte, error) {
	env["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return json.Marshal(env)
}

// System builds the welcome frame sent on connect.
func System(message, instanceID string, connID int64) Envelope {
	return Envelope{
		"type":         TypeSystem,
		"message":      message,
		"instanceId":   instanceID,
		"connectionId": connID,
	}
}

// AuthSuccess acknowledges a successful handshake.
func AuthSuccess(userID, email string) Envelope {
	return Envelope{
		"type":   TypeAuthSuccess,
		"userId": userID,
		"email":  email,
	}
}

// AuthError reports a failed handshake. The connection stays open.
func AuthError(reason string) Envelope {
	return Envelope{
		"type":  TypeAuthError,
		"error": reason,
	}
}

// Subscribed acknowledges a channel join (including duplicate joins).
func Subscribed(channel string) Envelope {
	return Envelope{
		"type":    TypeSubscribed,
		"channel": channel,
	}
}

// Unsubscribed acknowledges a channel leave (including absent leaves).
func Unsubscribed(channel string) Envelope {
	return Envelope{
		"type":    TypeUnsubscribed,
		"channel": channel,
	}
}

// Pong answers a client ping.
func Pong() Envelope {
	return Envelope{"type": TypePong}
}

// Echo reflects an unrecognized frame back with the connection's current
// auth state.
func Echo(data json.RawMessage, authenticated bool, userID string) Envelope {
	env := Envelope{
		"type":          TypeEcho,
		"data":          data,
		"authenticated": authenticated,
	}
	if userID != "" {
		env["userId"] = userID
	}
	return env
}

// Error reports a protocol error to the client.
func Error(reason string) Envelope {
	return Envelope{
		"type":  TypeError,
		"error": reason,
	}
}

// ErrorWithCode reports a machine-readable error (rate limiting etc).
func ErrorWithCode(code, reason string) Envelope {
	return Envelope{
		"type":  TypeError,
		"code":  code,
		"error": reason,
	}
}

// Broadcast merges a domain message with its channel into an outbound
// envelope. The message's own type field is preserved; channel and
// timestamp are authoritative here.
func Broadcast(channel string, message map[string]any) Envelope {
	env := make(Envelope, len(message)+2)
	for k, v := range message {
		env[k] = v
	}
	env["channel"] = channel
	return env
}
