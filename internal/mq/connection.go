// Package mq publishes lease and check events to RabbitMQ.
package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrClosed is returned when the connection was closed by Close
var ErrClosed = errors.New("amqp connection closed")

const (
	defaultDialTimeout = 5 * time.Second
	heartbeat          = 10 * time.Second
	locale             = "en_US"
)

// Connection wraps an AMQP connection and a shared channel. A dropped
// connection is redialed lazily on the next WithChannel call, bounded by that
// call's context.
type Connection struct {
	url         string
	dialTimeout time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewConnection dials RabbitMQ and opens a channel
func NewConnection(ctx context.Context, url string) (*Connection, error) {
	c := &Connection{url: url, dialTimeout: defaultDialTimeout}

	conn, ch, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn, c.channel = conn, ch

	return c, nil
}

// dial connects without holding c.mu. The TCP connect and the AMQP handshake
// both end at the earlier of ctx's deadline and the dial timeout, and a
// cancelled ctx aborts the handshake.
func (c *Connection) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	timeout := c.dialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var stop func() bool
	cfg := amqp.Config{
		Heartbeat: heartbeat,
		Locale:    locale,
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Deadline: deadline}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// the handshake clears this deadline once the connection is open
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
			return conn, nil
		},
	}

	conn, err := amqp.DialConfig(c.url, cfg)
	if stop != nil && !stop() && err == nil {
		conn.Close()
		err = ctx.Err()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	slog.Info("Connected to RabbitMQ")
	return conn, ch, nil
}

// WithChannel runs fn with the shared channel, reconnecting first if the
// previous connection or channel was closed
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.healthyChannel()
	if err != nil {
		return err
	}
	if ch == nil {
		if ch, err = c.reconnect(ctx); err != nil {
			return err
		}
	}

	return fn(ch)
}

func (c *Connection) healthyChannel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.conn == nil || c.conn.IsClosed() || c.channel == nil || c.channel.IsClosed() {
		return nil, nil
	}
	return c.channel, nil
}

// reconnect dials outside the lock and installs the result unless another
// caller got there first or Close ran meanwhile
func (c *Connection) reconnect(ctx context.Context) (*amqp.Channel, error) {
	slog.Warn("RabbitMQ connection lost, reconnecting")

	conn, ch, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		conn.Close()
		return nil, ErrClosed
	}
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		conn.Close()
		return c.channel, nil
	}
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	c.conn, c.channel = conn, ch
	return ch, nil
}

// Close closes the channel and connection
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return fmt.Errorf("failed to close amqp connection: %w", err)
		}
	}

	slog.Info("RabbitMQ connection closed")
	return nil
}
