package ui

import (
	"github.com/zoe12378/chat-DB/pkg/transport"
)

// statusBanner holds the connection banner state. Connected is shown
// briefly and then cleared; disconnected and error states stay up
// until the state changes again.
type statusBanner struct {
	state  transport.State
	detail string
	seq    int
	shown  bool
}

func (s *statusBanner) Set(st transport.Status) int {
	s.state = st.State
	s.detail = st.Detail
	s.shown = true
	s.seq++
	return s.seq
}

// Expire hides a transient banner. The sequence number guards against
// an old timer hiding a banner that was replaced in the meantime.
func (s *statusBanner) Expire(seq int) {
	if seq != s.seq || s.state != transport.StateConnected {
		return
	}
	s.shown = false
}

func (s *statusBanner) View() string {
	if !s.shown {
		return ""
	}
	switch s.state {
	case transport.StateConnected:
		return okStatusStyle.Render("connected")
	case transport.StateDisconnected:
		return badStatusStyle.Render("disconnected")
	case transport.StateError:
		msg := "connection error"
		if s.detail != "" {
			msg += ": " + s.detail
		}
		return badStatusStyle.Render(msg)
	default:
		return ""
	}
}
