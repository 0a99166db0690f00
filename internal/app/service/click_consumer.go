package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/linkgate/internal/app/model"
	"github.com/sifan077/linkgate/internal/app/repository"
	infraPrometheus "github.com/sifan077/linkgate/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	clickFetchBatch    = 10
	clickFetchWait     = 5 * time.Second
	clickRecordTimeout = 10 * time.Second
	clickMaxDeliveries = 5
)

// ClickConsumer consumes click events from NATS JetStream and records them.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	sink   ClickSink
	done   chan struct{}
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, sink ClickSink) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, sink: sink, done: make(chan struct{})}
}

// EnsureStream creates the click stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext) error {
	if _, err := js.StreamInfo(model.ClickStreamName); err == nil {
		return nil
	}
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     model.ClickStreamName,
		Subjects: []string{model.ClickStreamSubject},
		MaxBytes: model.ClickStreamMaxBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}
	return nil
}

// Start begins consuming click events until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if err := EnsureStream(c.js); err != nil {
		return err
	}

	// Create consumer if not exists
	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:    model.ClickConsumerName,
			AckPolicy:  nats.AckExplicitPolicy,
			MaxDeliver: clickMaxDeliveries,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName,
		nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() { _ = sub.Unsubscribe() }()

	for {
		if ctx.Err() != nil {
			c.logger.Info("click consumer stopped")
			return
		}

		msgs, err := sub.Fetch(clickFetchBatch, nats.MaxWait(clickFetchWait))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
				c.logger.Warn("click consumer subscription closed", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch click events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
}

func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		infraPrometheus.ClicksLost.WithLabelValues("decode").Inc()
		// A malformed payload will never decode; drop it.
		_ = msg.Term()
		return
	}

	recordCtx, cancel := context.WithTimeout(ctx, clickRecordTimeout)
	err := c.sink.Record(recordCtx, event)
	cancel()

	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			c.logger.Warn("click for unknown link dropped",
				zap.String("slug", event.Slug),
				zap.String("link_id", event.LinkID))
			infraPrometheus.ClicksLost.WithLabelValues("record").Inc()
			_ = msg.Term()
			return
		}
		c.logger.Error("failed to store click event",
			zap.String("id", event.ID),
			zap.String("slug", event.Slug),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	infraPrometheus.ClicksRecorded.Inc()
	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.String("slug", event.Slug),
		zap.Time("timestamp", event.Timestamp),
	)
	_ = msg.Ack()
}
