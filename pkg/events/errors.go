package events

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OpError reports the failure of a named asynchronous operation. All failures
// funnel through TopicErrors to a single sink instead of each call site
// deciding how to surface them.
type OpError struct {
	Op  string `json:"op"`
	Err string `json:"error"`
}

// PublishFrame puts one raw wire frame on the chat topic.
func PublishFrame(pub message.Publisher, frame []byte) error {
	msg := message.NewMessage(watermill.NewUUID(), frame)
	if err := pub.Publish(TopicChat, msg); err != nil {
		return errors.Wrap(err, "failed to publish frame")
	}
	return nil
}

// PublishError puts an operation failure on the error topic. Publishing
// itself failing is only logged; there is nowhere further to report to.
func PublishError(pub message.Publisher, op string, opErr error) {
	payload, err := json.Marshal(OpError{Op: op, Err: opErr.Error()})
	if err != nil {
		log.Error().Err(err).Str("op", op).Msg("failed to marshal operation error")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := pub.Publish(TopicErrors, msg); err != nil {
		log.Error().Err(err).Str("op", op).Msg("failed to publish operation error")
	}
}

// DecodeOpError parses an error-topic payload.
func DecodeOpError(payload []byte) (*OpError, error) {
	var oe OpError
	if err := json.Unmarshal(payload, &oe); err != nil {
		return nil, errors.Wrap(err, "failed to decode operation error")
	}
	return &oe, nil
}
