package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"crm-interactions/internal/lifecycle"
	"crm-interactions/internal/messages"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReceiptHandler applies one delivery/read receipt.
type ReceiptHandler func(ctx context.Context, r messages.Receipt) (lifecycle.Outcome, error)

// ReceiptConsumer drains the receipt queue the chat gateway publishes to.
type ReceiptConsumer struct {
	conn     *Connection
	queue    string
	prefetch int
	handler  ReceiptHandler
	log      *slog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
	subscribe  func(ctx context.Context) (<-chan amqp.Delivery, func(), error)
}

func NewReceiptConsumer(conn *Connection, queue string, handler ReceiptHandler, log *slog.Logger) (*ReceiptConsumer, error) {
	if conn == nil {
		return nil, errors.New("transport: connection is nil")
	}
	if queue == "" {
		return nil, errors.New("transport: queue name is required")
	}
	if handler == nil {
		return nil, errors.New("transport: receipt handler is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &ReceiptConsumer{
		conn:       conn,
		queue:      queue,
		prefetch:   16,
		handler:    handler,
		log:        log,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
	c.subscribe = c.subscribeQueue
	return c, nil
}

// Run consumes until ctx is cancelled. A dropped channel or connection is
// re-opened with exponential backoff.
func (c *ReceiptConsumer) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		consumed, err := c.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if consumed {
			backoff = c.minBackoff
		}
		c.log.Warn("receipt consumer interrupted, resubscribing", "queue", c.queue, "err", err, "backoff", backoff)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

// consume handles deliveries from one subscription until it ends. consumed
// reports whether the subscription was established.
func (c *ReceiptConsumer) consume(ctx context.Context) (consumed bool, err error) {
	deliveries, closeFn, err := c.subscribe(ctx)
	if err != nil {
		return false, err
	}
	defer closeFn()
	c.log.Info("receipt consumer started", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case d, ok := <-deliveries:
			if !ok {
				return true, errors.New("transport: delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *ReceiptConsumer) subscribeQueue(ctx context.Context) (<-chan amqp.Delivery, func(), error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = ch.Close() }

	if err := declareQueue(ch, c.queue); err != nil {
		closeFn()
		return nil, nil, err
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("transport: set qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx,
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("transport: consume: %w", err)
	}
	return deliveries, closeFn, nil
}

func (c *ReceiptConsumer) handle(ctx context.Context, d amqp.Delivery) {
	r, err := decodeReceipt(d.Body)
	if err != nil {
		c.log.Warn("dropping malformed receipt", "err", err)
		_ = d.Nack(false, false)
		return
	}

	out, err := c.handler(ctx, r)
	switch disposition(err) {
	case ack:
		if !out.Applied && out.Reason != "" {
			c.log.Debug("receipt ignored", "message_id", r.MessageID, "event", r.Event, "reason", out.Reason)
		}
		_ = d.Ack(false)
	case drop:
		c.log.Warn("dropping receipt", "message_id", r.MessageID, "event", r.Event, "err", err)
		_ = d.Nack(false, false)
	case requeue:
		c.log.Error("receipt handling failed, requeueing", "message_id", r.MessageID, "err", err)
		_ = d.Nack(false, true)
	}
}

type action int

const (
	ack action = iota
	drop
	requeue
)

// disposition decides what happens to a delivery after the handler ran.
// Receipts that can never apply are dropped; infrastructure errors are retried.
func disposition(err error) action {
	if err == nil {
		return ack
	}
	switch lifecycle.KindOf(err) {
	case lifecycle.KindValidation, lifecycle.KindNotFound:
		return drop
	default:
		return requeue
	}
}

func decodeReceipt(body []byte) (messages.Receipt, error) {
	var r messages.Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return messages.Receipt{}, err
	}
	if r.MessageID == "" || r.Event == "" {
		return messages.Receipt{}, errors.New("receipt requires message_id and event")
	}
	return r, nil
}
