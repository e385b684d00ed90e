package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns one AMQP connection and re-dials it when it drops.
// Publishers and consumers open their own channels from it.
type Connection struct {
	url string
	log *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewConnection(url string, log *slog.Logger) (*Connection, error) {
	if url == "" {
		return nil, errors.New("transport: rabbitmq url is required")
	}
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("transport: dial rabbitmq: %w", err)
	}
	log.Info("rabbitmq connected")
	return &Connection{url: url, log: log, conn: conn}, nil
}

// Channel opens a new channel, reconnecting first if the connection is closed.
func (c *Connection) Channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.conn.IsClosed() {
		c.log.Warn("rabbitmq connection closed, reconnecting")
		conn, err := amqp.Dial(c.url)
		if err != nil {
			return nil, fmt.Errorf("transport: reconnect rabbitmq: %w", err)
		}
		c.conn = conn
		c.log.Info("rabbitmq reconnected")
	}
	return c.conn.Channel()
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.conn.IsClosed()
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil && !errors.Is(err, amqp.ErrClosed) {
		return fmt.Errorf("transport: close rabbitmq: %w", err)
	}
	return nil
}

// declareQueue declares a durable, non-exclusive queue.
func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("transport: declare queue %s: %w", name, err)
	}
	return nil
}
