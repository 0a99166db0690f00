package service

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkgate/internal/app/model"
)

// ClickPublisher is a ClickDispatcher that publishes click events to NATS
// JetStream. Publishing is asynchronous; acknowledgements are not awaited on
// the request path.
type ClickPublisher struct {
	js nats.JetStreamContext
}

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Dispatch publishes a click event to the stream
func (p *ClickPublisher) Dispatch(event model.ClickEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal click event: %w", err)
	}

	// The event id doubles as the JetStream dedup key.
	msg := nats.NewMsg(model.ClickStreamSubject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID)

	if _, err := p.js.PublishMsgAsync(msg); err != nil {
		return fmt.Errorf("publish click event: %w", err)
	}
	return nil
}
