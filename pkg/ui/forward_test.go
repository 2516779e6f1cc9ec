package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoe12378/chat-DB/pkg/transport"
	"github.com/zoe12378/chat-DB/pkg/wire"
)

func decodeFrame(t *testing.T, event string, payload interface{}) *wire.Envelope {
	t.Helper()
	frame, err := wire.Encode(event, payload)
	require.NoError(t, err)
	env, err := wire.Decode(frame)
	require.NoError(t, err)
	return env
}

func TestTranslateEnvelopeDispatch(t *testing.T) {
	cases := []struct {
		name    string
		event   string
		payload interface{}
		want    interface{}
	}{
		{
			name:    "chat message",
			event:   wire.EventChatMessage,
			payload: wire.Message{ID: "1", Username: "bob", Content: "hi"},
			want:    ChatMessageMsg{Message: wire.Message{ID: "1", Username: "bob", Content: "hi"}},
		},
		{
			name:    "user joined",
			event:   wire.EventUserJoined,
			payload: wire.UserJoined{Username: "bob"},
			want:    UserJoinedMsg{Username: "bob"},
		},
		{
			name:    "user left",
			event:   wire.EventUserLeft,
			payload: wire.UserLeft{Username: "bob"},
			want:    UserLeftMsg{Username: "bob"},
		},
		{
			name:    "user count",
			event:   wire.EventUserCount,
			payload: wire.UserCount{Count: 4},
			want:    UserCountMsg{Count: 4},
		},
		{
			name:    "typing",
			event:   wire.EventTyping,
			payload: wire.Typing{Username: "bob"},
			want:    TypingMsg{Username: "bob"},
		},
		{
			name:    "name change",
			event:   wire.EventUserChangedName,
			payload: wire.UserChangedName{OldUsername: "bob", NewUsername: "rob"},
			want:    NameChangedMsg{Old: "bob", New: "rob"},
		},
		{
			name:    "chat error",
			event:   wire.EventChatError,
			payload: wire.ChatError{Message: "empty message"},
			want:    ChatErrorMsg{Message: "empty message"},
		},
		{
			name:    "connection status",
			event:   transport.EventStatus,
			payload: transport.Status{State: transport.StateDisconnected, Detail: "eof"},
			want:    StatusMsg{Status: transport.Status{State: transport.StateDisconnected, Detail: "eof"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := translateEnvelope(decodeFrame(t, tc.event, tc.payload))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTranslateEnvelopeSkipsUnknownEvents(t *testing.T) {
	got, err := translateEnvelope(decodeFrame(t, "presence_v2", map[string]int{"n": 1}))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTranslateEnvelopeRejectsBadPayload(t *testing.T) {
	env := &wire.Envelope{Event: wire.EventUserCount}
	_, err := translateEnvelope(env)
	require.Error(t, err)
}
