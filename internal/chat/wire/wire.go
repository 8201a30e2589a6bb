// Package wire implements the line-delimited message format spoken between
// chat clients and the server: one flat JSON object per line, UTF-8 encoded,
// discriminated by the "type" field.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message kinds as they appear on the wire.
const (
	TypeLogin        = "login"
	TypeLoginSuccess = "login success"
	TypeLoginFailed  = "login failed"
	TypePostMessage  = "post message"
	TypeMessage      = "message"
	TypeUserJoined   = "user joined"
	TypeUserLeft     = "user left"
	TypeCloseSession = "close client socket"
)

// ErrMalformed - reported when a line cannot be decoded into a known message.
// Contextual legality of a well-formed message is not a codec concern.
var ErrMalformed = errors.New("wire: malformed message")

// TimeLayout - format of the "time" field carried by chat messages.
const TimeLayout = time.RFC3339Nano

// Message - single protocol unit. Unused fields stay empty and are omitted
// from the encoded line.
type Message struct {
	Type    string `json:"type"`
	Nick    string `json:"nick,omitempty"`
	Content string `json:"content,omitempty"`
	Time    string `json:"time,omitempty"`
}

// Timestamp - parses the "time" field of a chat message.
func (m Message) Timestamp() (time.Time, error) {
	return time.Parse(TimeLayout, m.Time)
}

var known = map[string]struct{}{
	TypeLogin:        {},
	TypeLoginSuccess: {},
	TypeLoginFailed:  {},
	TypePostMessage:  {},
	TypeMessage:      {},
	TypeUserJoined:   {},
	TypeUserLeft:     {},
	TypeCloseSession: {},
}

// Encode - renders a message as a single line without the terminator.
func Encode(m Message) ([]byte, error) {
	if _, ok := known[m.Type]; !ok {
		return nil, fmt.Errorf("wire.Encode: unknown message type %q", m.Type)
	}
	return json.Marshal(m)
}

// Decode - parses a single line into a message. A trailing CR is tolerated
// to accept peers which terminate lines with CRLF.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	m := Message{}
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type field", ErrMalformed)
	}
	if _, ok := known[m.Type]; !ok {
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return m, nil
}

// Login - client request to claim a nickname.
func Login(nick string) Message {
	return Message{Type: TypeLogin, Nick: nick}
}

// LoginSuccess - server confirmation of a nickname claim.
func LoginSuccess() Message {
	return Message{Type: TypeLoginSuccess}
}

// LoginFailed - server rejection of a nickname claim.
func LoginFailed() Message {
	return Message{Type: TypeLoginFailed}
}

// PostMessage - client request to broadcast content.
func PostMessage(content string) Message {
	return Message{Type: TypePostMessage, Content: content}
}

// Chat - server-stamped chat message fanned out to recipients.
func Chat(nick, content string, at time.Time) Message {
	return Message{Type: TypeMessage, Nick: nick, Content: content, Time: at.Format(TimeLayout)}
}

// UserJoined - presence notification about a fresh nickname claim.
func UserJoined(nick string) Message {
	return Message{Type: TypeUserJoined, Nick: nick}
}

// UserLeft - presence notification about a departed nickname.
func UserLeft(nick string) Message {
	return Message{Type: TypeUserLeft, Nick: nick}
}

// CloseSession - client request to shut its own session down.
func CloseSession(nick string) Message {
	return Message{Type: TypeCloseSession, Nick: nick}
}
