package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange names an exchange
type Exchange string

// Queue names a queue
type Queue string

// RoutingKey names a routing key
type RoutingKey string

// Exchanges
const (
	ExchangeLeases Exchange = "vigil.leases"
	ExchangeChecks Exchange = "vigil.checks"
)

// Queues
const (
	QueueLeasesOffered Queue = "leases.offered"
	QueueChecksRecords Queue = "checks.recorded"
)

// Routing keys
const (
	RoutingKeyOffered  RoutingKey = "offered"
	RoutingKeyRecorded RoutingKey = "recorded"
)

type binding struct {
	exchange Exchange
	queue    Queue
	key      RoutingKey
}

var bindings = []binding{
	{ExchangeLeases, QueueLeasesOffered, RoutingKeyOffered},
	{ExchangeChecks, QueueChecksRecords, RoutingKeyRecorded},
}

// SetupTopology declares the durable exchanges and queues and binds them
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, b := range bindings {
			if err := ch.ExchangeDeclare(string(b.exchange), "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
			}
			if _, err := ch.QueueDeclare(string(b.queue), true, false, false, false, nil); err != nil {
				return fmt.Errorf("failed to declare queue %s: %w", b.queue, err)
			}
			if err := ch.QueueBind(string(b.queue), string(b.key), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("failed to bind %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}
