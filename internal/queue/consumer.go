package queue

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/wolfeidau/orgpurge/internal/telemetry"
)

// BatchHandler processes a batch of messages and returns the ids of the
// messages that failed. Failed messages are left on the queue for redelivery.
type BatchHandler func(ctx context.Context, msgs []Message) []string

// ConsumerConfig configures a Consumer.
type ConsumerConfig struct {
	QueueURL string
	// Name labels log lines and metrics, for example "documents".
	Name    string
	Receive ReceiveOptions
	// MaxBackoff caps the wait between failed receive calls.
	MaxBackoff time.Duration
}

// Consumer long polls a queue and hands each batch to a handler,
// acknowledging only the messages the handler did not report as failed.
type Consumer struct {
	receiver Receiver
	handler  BatchHandler
	cfg      ConsumerConfig
	backoff  *backoff.ExponentialBackOff
}

// NewConsumer creates a consumer for cfg.QueueURL.
func NewConsumer(receiver Receiver, handler BatchHandler, cfg ConsumerConfig) *Consumer {
	if cfg.Receive.WaitSeconds == 0 {
		cfg.Receive.WaitSeconds = DefaultWaitSeconds
	}
	cfg.Receive = cfg.Receive.withDefaults()
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = cfg.MaxBackoff

	return &Consumer{
		receiver: receiver,
		handler:  handler,
		cfg:      cfg,
		backoff:  b,
	}
}

// Run polls until ctx is cancelled. Receive errors are retried with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	log.Info().
		Str("consumer", c.cfg.Name).
		Str("queue_url", c.cfg.QueueURL).
		Int32("max_messages", c.cfg.Receive.MaxMessages).
		Int32("visibility_timeout", c.cfg.Receive.VisibilityTimeout).
		Msg("Starting consumer")

	for {
		if ctx.Err() != nil {
			log.Info().Str("consumer", c.cfg.Name).Msg("Consumer stopped")
			return nil
		}

		_, err := c.PollOnce(ctx)
		if err == nil {
			c.backoff.Reset()
			continue
		}

		if errors.Is(err, context.Canceled) {
			continue
		}

		wait := c.backoff.NextBackOff()
		log.Warn().
			Err(err).
			Str("consumer", c.cfg.Name).
			Dur("next_retry", wait).
			Msg("Receive failed, backing off")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	}
}

// PollResult summarises one poll.
type PollResult struct {
	Received int
	Deleted  int
	Failed   int
}

// PollOnce receives a single batch, runs the handler and deletes the messages that succeeded.
func (c *Consumer) PollOnce(ctx context.Context) (*PollResult, error) {
	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("consumer", c.cfg.Name))

	msgs, err := c.receiver.Receive(ctx, c.cfg.QueueURL, c.cfg.Receive)
	if err != nil {
		metrics.ReceiveErrorsTotal.Add(ctx, 1, attrs)
		return nil, err
	}

	res := &PollResult{Received: len(msgs)}
	if len(msgs) == 0 {
		return res, nil
	}

	failed := make(map[string]struct{})
	for _, id := range c.handler(ctx, msgs) {
		failed[id] = struct{}{}
	}

	for _, msg := range msgs {
		if _, ok := failed[msg.ID]; ok {
			res.Failed++
			log.Warn().
				Str("consumer", c.cfg.Name).
				Str("message_id", msg.ID).
				Int("receive_count", msg.ReceiveCount).
				Msg("Message failed, leaving for redelivery")
			continue
		}

		if err := c.receiver.Delete(ctx, c.cfg.QueueURL, msg.ReceiptHandle); err != nil {
			// The work is idempotent, a redelivery is harmless.
			res.Failed++
			continue
		}
		res.Deleted++
	}

	metrics.MessagesProcessedTotal.Add(ctx, int64(res.Deleted), attrs)
	metrics.MessagesFailedTotal.Add(ctx, int64(res.Failed), attrs)

	log.Info().
		Str("consumer", c.cfg.Name).
		Int("received", res.Received).
		Int("deleted", res.Deleted).
		Int("failed", res.Failed).
		Msg("Processed batch")

	return res, nil
}
