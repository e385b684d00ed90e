package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"crm-interactions/internal/messages"

	amqp "github.com/rabbitmq/amqp091-go"
)

// OutboundMessage is the wire shape of a chat message handed to the chat gateway.
type OutboundMessage struct {
	MessageID  string    `json:"message_id"`
	Room       string    `json:"room"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Text       string    `json:"text"`
	TemplateID string    `json:"template_id,omitempty"`
	RetryOf    string    `json:"retry_of,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

func outbound(m messages.Message) OutboundMessage {
	templateID, _ := m.TemplateID.Get()
	retryOf, _ := m.RetryOf.Get()
	return OutboundMessage{
		MessageID:  m.ID,
		Room:       m.Room,
		SubjectID:  m.SubjectID,
		Text:       m.Text,
		TemplateID: templateID,
		RetryOf:    retryOf,
		SentAt:     m.Timestamp,
	}
}

var ErrNacked = errors.New("transport: broker rejected message")

// Publisher is a messages.Transport that publishes to a durable RabbitMQ queue
// with publisher confirms: Send returns nil only once the broker has taken
// responsibility for the message.
type Publisher struct {
	conn  *Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(conn *Connection, queue string) (*Publisher, error) {
	if conn == nil {
		return nil, errors.New("transport: connection is nil")
	}
	if queue == "" {
		return nil, errors.New("transport: queue name is required")
	}
	p := &Publisher{conn: conn, queue: queue}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns the confirm-mode channel, reopening it if needed. Caller holds mu.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareQueue(ch, p.queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("transport: enable confirms: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *Publisher) Send(ctx context.Context, m messages.Message) error {
	body, err := json.Marshal(outbound(m))
	if err != nil {
		return err
	}

	p.mu.Lock()
	ch, err := p.channel()
	if err != nil {
		p.mu.Unlock()
		return err
	}
	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    m.ID,
			Timestamp:    m.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		p.ch = nil
		p.mu.Unlock()
		return fmt.Errorf("transport: publish: %w", err)
	}
	p.mu.Unlock()

	// Once published the message may already be with the broker, so the caller
	// going away does not abandon the confirm.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), confirmTimeout)
	defer cancel()
	return awaitConfirm(waitCtx, dc)
}

// confirmTimeout bounds how long Send waits for a publisher confirm.
const confirmTimeout = 5 * time.Second

type confirmation interface {
	Done() <-chan struct{}
	Acked() bool
}

func awaitConfirm(ctx context.Context, c confirmation) error {
	select {
	case <-c.Done():
		if !c.Acked() {
			return ErrNacked
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("transport: awaiting confirm: %w", ctx.Err())
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
