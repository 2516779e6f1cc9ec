// Package events carries everything that happens on the wire to the UI over
// an in-process pub/sub. Transport publishes inbound frames and connection
// status; the UI subscribes through a forwarding handler; operation failures
// flow to a dedicated error topic consumed by one sink.
package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

// Topics. TopicChat keeps inbound frames and synthetic status envelopes in
// one ordered stream so a disconnect notice cannot overtake the message that
// preceded it.
const (
	TopicChat   = "chat.events"
	TopicErrors = "chat.errors"
)

// EventRouter bundles a gochannel pub/sub with a watermill router. Handlers
// can be added before or after Run; use RunHandlers for late additions.
type EventRouter struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	router *message.Router
	pubsub *gochannel.GoChannel
}

// Option configures the router.
type Option func(*routerConfig)

type routerConfig struct {
	bufferSize int64
}

// WithBufferSize sets the per-subscriber channel buffer.
func WithBufferSize(n int64) Option {
	return func(c *routerConfig) {
		c.bufferSize = n
	}
}

// NewEventRouter builds the pub/sub and router pair.
func NewEventRouter(opts ...Option) (*EventRouter, error) {
	cfg := &routerConfig{bufferSize: 64}
	for _, opt := range opts {
		opt(cfg)
	}

	logger := NewZerologAdapter()
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.bufferSize,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create message router")
	}

	return &EventRouter{
		Publisher:  pubsub,
		Subscriber: pubsub,
		router:     router,
		pubsub:     pubsub,
	}, nil
}

// AddHandler registers a no-publish handler on the given topic.
func (e *EventRouter) AddHandler(name, topic string, f func(msg *message.Message) error) {
	e.router.AddNoPublisherHandler(name, topic, e.Subscriber, f)
}

// Run starts the router and blocks until the context is done.
func (e *EventRouter) Run(ctx context.Context) error {
	return e.router.Run(ctx)
}

// RunHandlers starts handlers added after Run.
func (e *EventRouter) RunHandlers(ctx context.Context) error {
	return e.router.RunHandlers(ctx)
}

// Running is closed once the router is up.
func (e *EventRouter) Running() chan struct{} {
	return e.router.Running()
}

// IsRunning reports whether Run has brought the router up.
func (e *EventRouter) IsRunning() bool {
	select {
	case <-e.router.Running():
		return true
	default:
		return false
	}
}

// Close shuts down the router and the pub/sub.
func (e *EventRouter) Close() error {
	routerErr := e.router.Close()
	pubsubErr := e.pubsub.Close()
	if routerErr != nil {
		return errors.Wrap(routerErr, "failed to close router")
	}
	if pubsubErr != nil {
		return errors.Wrap(pubsubErr, "failed to close pubsub")
	}
	return nil
}
