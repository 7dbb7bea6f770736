package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType identifies the payload of a message
type MessageType string

// Message types
const (
	MessageTypeLeasesOffered MessageType = "lease.offered"
	MessageTypeCheckRecorded MessageType = "check.recorded"
)

// Message is the envelope for every published event
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage wraps payload in an envelope with a fresh id
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher publishes events over a Connection. While its breaker is open,
// publishes fail with ErrCircuitOpen without dialing the broker.
type Publisher struct {
	conn    *Connection
	breaker *Breaker
}

// NewPublisher creates a new Publisher. A nil breaker opens after 5
// consecutive failures for 30 seconds.
func NewPublisher(conn *Connection, breaker *Breaker) *Publisher {
	if breaker == nil {
		breaker = NewBreaker(5, 30*time.Second)
	}
	return &Publisher{conn: conn, breaker: breaker}
}

// Publish sends msg to exchange with routingKey as a persistent JSON message
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if !p.breaker.CanAttempt() {
		return ErrCircuitOpen
	}

	err = p.send(ctx, exchange, routingKey, msg, body)
	if err != nil {
		p.breaker.RecordFailure()
		if p.breaker.State() == StateOpen {
			slog.Warn("RabbitMQ publishing suspended", "breaker", StateOpen.String(), "error", err)
		}
		return err
	}
	p.breaker.RecordSuccess()
	return nil
}

func (p *Publisher) send(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, body []byte) error {
	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to publish to %s/%s: %w", exchange, routingKey, err)
		}

		slog.Debug("Published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishLeasesOffered announces the leases a worker received in a cycle
func (p *Publisher) PublishLeasesOffered(ctx context.Context, event model.LeasesOfferedEvent) error {
	return p.Publish(ctx, ExchangeLeases, RoutingKeyOffered, NewMessage(MessageTypeLeasesOffered, event))
}

// PublishCheckRecorded announces a persisted check result
func (p *Publisher) PublishCheckRecorded(ctx context.Context, event model.CheckRecordedEvent) error {
	return p.Publish(ctx, ExchangeChecks, RoutingKeyRecorded, NewMessage(MessageTypeCheckRecorded, event))
}
