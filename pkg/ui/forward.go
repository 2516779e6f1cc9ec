package ui

import (
	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/zoe12378/chat-DB/pkg/events"
	"github.com/zoe12378/chat-DB/pkg/transport"
	"github.com/zoe12378/chat-DB/pkg/wire"
)

// Messages delivered to the TUI model by the forwarders below.
type (
	ChatMessageMsg struct {
		Message wire.Message
	}
	UserJoinedMsg struct {
		Username string
	}
	UserLeftMsg struct {
		Username string
	}
	UserCountMsg struct {
		Count int
	}
	TypingMsg struct {
		Username string
	}
	NameChangedMsg struct {
		Old string
		New string
	}
	ChatErrorMsg struct {
		Message string
	}
	StatusMsg struct {
		Status transport.Status
	}
	OpErrorMsg struct {
		Op  string
		Err string
	}
)

// translateEnvelope converts a decoded wire envelope into the tea
// message the model handles. Unknown events translate to nil so a newer
// server does not wedge the stream.
func translateEnvelope(env *wire.Envelope) (tea.Msg, error) {
	switch env.Event {
	case wire.EventChatMessage:
		var m wire.Message
		if err := env.Bind(&m); err != nil {
			return nil, err
		}
		return ChatMessageMsg{Message: m}, nil
	case wire.EventUserJoined:
		var u wire.UserJoined
		if err := env.Bind(&u); err != nil {
			return nil, err
		}
		return UserJoinedMsg{Username: u.Username}, nil
	case wire.EventUserLeft:
		var u wire.UserLeft
		if err := env.Bind(&u); err != nil {
			return nil, err
		}
		return UserLeftMsg{Username: u.Username}, nil
	case wire.EventUserCount:
		var c wire.UserCount
		if err := env.Bind(&c); err != nil {
			return nil, err
		}
		return UserCountMsg{Count: c.Count}, nil
	case wire.EventTyping:
		var u wire.Typing
		if err := env.Bind(&u); err != nil {
			return nil, err
		}
		return TypingMsg{Username: u.Username}, nil
	case wire.EventUserChangedName:
		var ch wire.UserChangedName
		if err := env.Bind(&ch); err != nil {
			return nil, err
		}
		return NameChangedMsg{Old: ch.OldUsername, New: ch.NewUsername}, nil
	case wire.EventChatError:
		var ce wire.ChatError
		if err := env.Bind(&ce); err != nil {
			return nil, err
		}
		return ChatErrorMsg{Message: ce.Message}, nil
	case transport.EventStatus:
		var st transport.Status
		if err := env.Bind(&st); err != nil {
			return nil, err
		}
		return StatusMsg{Status: st}, nil
	}
	return nil, nil
}

// ChatForwardFunc returns a handler that decodes chat-topic frames and
// forwards them to the program as typed messages.
func ChatForwardFunc(p *tea.Program) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		env, err := wire.Decode(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable frame")
			return nil
		}
		m, err := translateEnvelope(env)
		if err != nil {
			return err
		}
		if m == nil {
			log.Debug().Str("event", env.Event).Msg("ignoring unhandled event")
			return nil
		}
		p.Send(m)
		return nil
	}
}

// ErrorForwardFunc returns a handler for the error topic. Failures are
// surfaced in the UI as notices rather than killing the session.
func ErrorForwardFunc(p *tea.Program) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		opErr, err := events.DecodeOpError(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable error report")
			return nil
		}
		p.Send(OpErrorMsg{Op: opErr.Op, Err: opErr.Err})
		return nil
	}
}
