package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/zoe12378/chat-DB/pkg/wire"
)

type framePublisher struct {
	ch chan []byte
}

func newFramePublisher() *framePublisher {
	return &framePublisher{ch: make(chan []byte, 32)}
}

func (p *framePublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, m := range msgs {
		p.ch <- m.Payload
	}
	return nil
}

func (p *framePublisher) Close() error {
	return nil
}

func waitEvent(t *testing.T, p *framePublisher, event string) *wire.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case raw := <-p.ch:
			env, err := wire.Decode(raw)
			require.NoError(t, err)
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return nil
		}
	}
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}
}

func newWsServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	r := chi.NewRouter()
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		handler(conn)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestEndpoint(t *testing.T) {
	ep, err := Endpoint("http://localhost:5000")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:5000/ws", ep)

	ep, err = Endpoint("https://chat.example.com/")
	require.NoError(t, err)
	require.Equal(t, "wss://chat.example.com/ws", ep)

	_, err = Endpoint("ftp://nope")
	require.Error(t, err)
}

func TestDialPublishesConnected(t *testing.T) {
	srv := newWsServer(t, func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()

	env := waitEvent(t, p, EventStatus)
	var st Status
	require.NoError(t, env.Bind(&st))
	require.Equal(t, StateConnected, st.State)
}

func TestOutboundEvents(t *testing.T) {
	got := make(chan []byte, 8)
	srv := newWsServer(t, func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- data
		}
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()

	require.NoError(t, c.Join("alice"))
	require.NoError(t, c.SendMessage("alice", "hello"))
	require.NoError(t, c.Typing("alice"))
	require.NoError(t, c.Rename("alice", "bob"))

	next := func() *wire.Envelope {
		select {
		case data := <-got:
			env, err := wire.Decode(data)
			require.NoError(t, err)
			return env
		case <-time.After(2 * time.Second):
			t.Fatal("server did not receive frame")
			return nil
		}
	}

	env := next()
	require.Equal(t, wire.EventJoin, env.Event)
	var join wire.Join
	require.NoError(t, env.Bind(&join))
	require.Equal(t, "alice", join.Username)

	env = next()
	require.Equal(t, wire.EventSendMessage, env.Event)
	var send wire.SendMessage
	require.NoError(t, env.Bind(&send))
	require.Equal(t, "hello", send.Content)

	env = next()
	require.Equal(t, wire.EventTyping, env.Event)

	env = next()
	require.Equal(t, wire.EventChangeUsername, env.Event)
	var rename wire.ChangeUsername
	require.NoError(t, env.Bind(&rename))
	require.Equal(t, "alice", rename.OldUsername)
	require.Equal(t, "bob", rename.NewUsername)
}

func TestInboundFramesReachPublisher(t *testing.T) {
	srv := newWsServer(t, func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		frame, _ := wire.Encode(wire.EventChatMessage, wire.Message{Username: "bob", Content: "hi"})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()

	env := waitEvent(t, p, wire.EventChatMessage)
	var msg wire.Message
	require.NoError(t, env.Bind(&msg))
	require.Equal(t, "bob", msg.Username)
	require.Equal(t, "hi", msg.Content)
}

func TestServerCloseSurfacesDisconnected(t *testing.T) {
	srv := newWsServer(t, func(conn *websocket.Conn) {
		_ = conn.Close()
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()

	waitDone(t, c)

	for {
		env := waitEvent(t, p, EventStatus)
		var st Status
		require.NoError(t, env.Bind(&st))
		if st.State == StateConnected {
			continue
		}
		require.Equal(t, StateDisconnected, st.State)
		return
	}
}

func TestLocalCloseStaysQuiet(t *testing.T) {
	srv := newWsServer(t, func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)

	env := waitEvent(t, p, EventStatus)
	var st Status
	require.NoError(t, env.Bind(&st))
	require.Equal(t, StateConnected, st.State)

	require.NoError(t, c.Close())
	waitDone(t, c)

	select {
	case raw := <-p.ch:
		env, err := wire.Decode(raw)
		require.NoError(t, err)
		t.Fatalf("unexpected frame after local close: %s", env.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDialFailurePublishesError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	origin := srv.URL
	srv.Close()

	p := newFramePublisher()
	_, err := Dial(context.Background(), origin, p)
	require.Error(t, err)

	env := waitEvent(t, p, EventStatus)
	var st Status
	require.NoError(t, env.Bind(&st))
	require.Equal(t, StateError, st.State)
	require.NotEmpty(t, st.Detail)
}

func TestUndecodableFramesAreSkipped(t *testing.T) {
	srv := newWsServer(t, func(conn *websocket.Conn) {
		defer func() {
			_ = conn.Close()
		}()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		frame, _ := wire.Encode(wire.EventUserCount, wire.UserCount{Count: 2})
		_ = conn.WriteMessage(websocket.TextMessage, frame)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	p := newFramePublisher()
	c, err := Dial(context.Background(), srv.URL, p)
	require.NoError(t, err)
	defer func() {
		_ = c.Close()
	}()

	env := waitEvent(t, p, wire.EventUserCount)
	var uc wire.UserCount
	require.NoError(t, env.Bind(&uc))
	require.Equal(t, 2, uc.Count)
}
