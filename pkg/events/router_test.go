package events

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/require"
)

func TestRouterDeliversPublishedFrames(t *testing.T) {
	er, err := NewEventRouter()
	require.NoError(t, err)
	defer func() {
		_ = er.Close()
	}()

	received := make(chan []byte, 1)
	er.AddHandler("capture", TopicChat, func(msg *message.Message) error {
		received <- msg.Payload
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = er.Run(ctx)
	}()
	<-er.Running()

	require.NoError(t, PublishFrame(er.Publisher, []byte(`{"event":"typing","data":{"username":"a"}}`)))

	select {
	case got := <-received:
		require.JSONEq(t, `{"event":"typing","data":{"username":"a"}}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not delivered")
	}
}

func TestErrorsReachTheErrorTopicOnly(t *testing.T) {
	er, err := NewEventRouter()
	require.NoError(t, err)
	defer func() {
		_ = er.Close()
	}()

	chatSeen := make(chan struct{}, 1)
	errSeen := make(chan *OpError, 1)
	er.AddHandler("chat", TopicChat, func(msg *message.Message) error {
		chatSeen <- struct{}{}
		return nil
	})
	er.AddHandler("errors", TopicErrors, func(msg *message.Message) error {
		oe, err := DecodeOpError(msg.Payload)
		if err != nil {
			return err
		}
		errSeen <- oe
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = er.Run(ctx)
	}()
	<-er.Running()

	PublishError(er.Publisher, "history.fetch", context.DeadlineExceeded)

	select {
	case oe := <-errSeen:
		require.Equal(t, "history.fetch", oe.Op)
		require.Contains(t, oe.Err, "deadline")
	case <-time.After(2 * time.Second):
		t.Fatal("error was not delivered")
	}
	select {
	case <-chatSeen:
		t.Fatal("error leaked onto the chat topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIsRunning(t *testing.T) {
	er, err := NewEventRouter()
	require.NoError(t, err)
	defer func() {
		_ = er.Close()
	}()

	require.False(t, er.IsRunning())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = er.Run(ctx)
	}()
	<-er.Running()
	require.True(t, er.IsRunning())
}
