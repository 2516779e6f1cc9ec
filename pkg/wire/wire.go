// Package wire defines the named events and payload shapes exchanged with a
// chat-DB server. Every frame is a JSON envelope carrying the event name and
// its payload; payload decoding is deferred until the event is dispatched.
package wire

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Client -> server events.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventChangeUsername = "change_username"
)

// Server -> client events.
const (
	EventChatMessage     = "chat_message"
	EventUserJoined      = "user_joined"
	EventUserLeft        = "user_left"
	EventUserCount       = "user_count"
	EventUserChangedName = "user_changed_name"
	EventChatError       = "chat_error"
)

// ErrUnknownEvent is returned when an envelope names an event this package has
// no payload type for. Dispatchers skip such frames.
var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the outer frame: the event name plus the raw payload, kept
// undecoded so the dispatcher can bind it once the event is known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Join announces a user entering the room. Sent once after connecting.
type Join struct {
	Username string `json:"username"`
}

// SendMessage carries one outgoing chat message.
type SendMessage struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// Typing signals that a user is composing a message.
type Typing struct {
	Username string `json:"username"`
}

// ChangeUsername announces a display-name change.
type ChangeUsername struct {
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
}

// Message is a chat message as broadcast by the server and as returned by the
// history endpoint. ID and Timestamp are assigned server-side; the timestamp
// is an RFC3339 UTC string the client treats as opaque.
type Message struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// UserJoined announces another user entering the room.
type UserJoined struct {
	Username string `json:"username"`
}

// UserLeft announces a user leaving the room.
type UserLeft struct {
	Username string `json:"username"`
}

// UserCount carries the current number of connected users.
type UserCount struct {
	Count int `json:"count"`
}

// UserChangedName announces a completed display-name change.
type UserChangedName struct {
	OldUsername string `json:"oldUsername"`
	NewUsername string `json:"newUsername"`
}

// ChatError is sent by the server when it rejects an operation, for example a
// message with empty content.
type ChatError struct {
	Message string `json:"message"`
}

// Encode wraps the payload in an envelope for the given event and returns the
// marshaled frame.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s payload", event)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal %s envelope", event)
	}
	return frame, nil
}

// Decode parses a raw frame into an envelope, leaving the payload raw.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(err, "failed to parse envelope")
	}
	if env.Event == "" {
		return nil, errors.New("envelope has no event name")
	}
	return &env, nil
}

// Bind unmarshals the envelope payload into v.
func (e *Envelope) Bind(v interface{}) error {
	if len(e.Data) == 0 {
		return errors.Errorf("%s envelope has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return errors.Wrapf(err, "failed to decode %s payload", e.Event)
	}
	return nil
}

// Payload decodes the envelope into the concrete struct for its event.
// Unknown events return ErrUnknownEvent so callers can skip them.
func (e *Envelope) Payload() (interface{}, error) {
	var (
		msg interface{}
		err error
	)
	switch e.Event {
	case EventChatMessage:
		var m Message
		err = e.Bind(&m)
		msg = &m
	case EventUserJoined:
		var m UserJoined
		err = e.Bind(&m)
		msg = &m
	case EventUserLeft:
		var m UserLeft
		err = e.Bind(&m)
		msg = &m
	case EventUserCount:
		var m UserCount
		err = e.Bind(&m)
		msg = &m
	case EventTyping:
		var m Typing
		err = e.Bind(&m)
		msg = &m
	case EventUserChangedName:
		var m UserChangedName
		err = e.Bind(&m)
		msg = &m
	case EventChatError:
		var m ChatError
		err = e.Bind(&m)
		msg = &m
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", e.Event)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}
