// Package transport maintains the WebSocket connection to a chat-DB server.
// Outbound operations serialize named events onto the socket; the read loop
// publishes every inbound frame, plus synthetic connection-status frames, to
// the event router. There is no reconnection: once the socket drops, the
// client is done and says so.
package transport

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zoe12378/chat-DB/pkg/events"
	"github.com/zoe12378/chat-DB/pkg/wire"
)

// EventStatus is the synthetic envelope event carrying connection status.
// The leading underscore keeps it out of the server-defined namespace.
const EventStatus = "_status"

// State enumerates connection states surfaced to the UI.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Status is the payload of an EventStatus frame.
type Status struct {
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Endpoint derives the WebSocket endpoint from a server origin, for example
// "http://localhost:5000" becomes "ws://localhost:5000/ws".
func Endpoint(origin string) (string, error) {
	u, err := url.Parse(strings.TrimRight(origin, "/"))
	if err != nil {
		return "", errors.Wrapf(err, "invalid server url %q", origin)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("server url %q must use http or https", origin)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// Client is one live connection. Construct with Dial.
type Client struct {
	conn *websocket.Conn
	pub  message.Publisher

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce  sync.Once
	localClose atomic.Bool
	done       chan struct{}

	logger zerolog.Logger
}

// Option configures a Client before it connects.
type Option func(*Client)

// WithWriteTimeout bounds how long a single frame write may block.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.writeTimeout = d
	}
}

// Dial connects to the server origin and starts the read loop. Connection
// status frames go to the publisher either way: a connected frame on
// success, an error frame when the dial fails.
func Dial(ctx context.Context, origin string, pub message.Publisher, opts ...Option) (*Client, error) {
	endpoint, err := Endpoint(origin)
	if err != nil {
		return nil, err
	}

	c := &Client{
		pub:          pub,
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
		logger:       log.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.publishStatus(StateError, err.Error())
		return nil, errors.Wrapf(err, "failed to connect to %s", endpoint)
	}
	c.conn = conn
	c.publishStatus(StateConnected, "")
	c.logger.Debug().Str("endpoint", endpoint).Msg("connected")

	go c.readLoop()
	return c, nil
}

// Join announces the local user to the room.
func (c *Client) Join(username string) error {
	return c.emit(wire.EventJoin, wire.Join{Username: username})
}

// SendMessage sends one chat message.
func (c *Client) SendMessage(username, content string) error {
	return c.emit(wire.EventSendMessage, wire.SendMessage{Username: username, Content: content})
}

// Typing signals that the local user is composing.
func (c *Client) Typing(username string) error {
	return c.emit(wire.EventTyping, wire.Typing{Username: username})
}

// Rename announces a display-name change.
func (c *Client) Rename(oldName, newName string) error {
	return c.emit(wire.EventChangeUsername, wire.ChangeUsername{OldUsername: oldName, NewUsername: newName})
}

// Done is closed when the read loop has exited.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and tears down the connection. A locally closed
// connection does not surface a disconnected status; the user asked for it.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.localClose.Store(true)
		deadline := time.Now().Add(c.writeTimeout)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) emit(event string, payload interface{}) error {
	frame, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return errors.Wrapf(err, "failed to send %s", event)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.localClose.Load() {
				c.logger.Warn().Err(err).Msg("connection lost")
				c.publishStatus(StateDisconnected, err.Error())
			}
			return
		}
		if _, err := wire.Decode(data); err != nil {
			c.logger.Warn().Err(err).Msg("skipping undecodable frame")
			continue
		}
		if err := events.PublishFrame(c.pub, data); err != nil {
			c.logger.Error().Err(err).Msg("failed to publish inbound frame")
		}
	}
}

func (c *Client) publishStatus(state State, detail string) {
	frame, err := wire.Encode(EventStatus, Status{State: state, Detail: detail})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to encode status frame")
		return
	}
	if err := events.PublishFrame(c.pub, frame); err != nil {
		c.logger.Error().Err(err).Msg("failed to publish status frame")
	}
}
