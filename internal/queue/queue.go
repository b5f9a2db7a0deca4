// Package queue broadcasts data-change notifications over RabbitMQ so
// every running backend can refresh its exploration sessions when the
// graph changes. The broker is optional, a backend without one simply
// never hears about writes made elsewhere.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/skeinhq/skein/backend/internal/util"
	"github.com/skeinhq/skein/backend/pkg/logger"
)

const (
	// updatesExchange is the topic exchange data-change events fan out on.
	updatesExchange = "graph_updates"

	// TopicGraphUpdated announces that entities, relationships, or
	// meetings changed and cached graphs may be stale.
	TopicGraphUpdated = "graph.updated"

	dialTries = 5
)

// UpdateMsg is the payload of a graph.updated event. ID identifies the
// event in logs across publisher and consumers.
type UpdateMsg struct {
	ID     string    `json:"id"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// Configured reports whether a broker is configured at all.
func Configured() bool {
	return util.GetEnv("RABBITMQ_HOST") != ""
}

// Init dials the broker from the environment.
func Init() (*amqp.Connection, error) {
	user := util.GetEnv("RABBITMQ_USER")
	pass := util.GetEnv("RABBITMQ_PASSWORD")
	host := util.GetEnv("RABBITMQ_HOST")
	port := util.GetEnvString("RABBITMQ_PORT", "5672")

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		user,
		pass,
		host,
		port,
	)

	conn, err := util.Retry(dialTries, func() (*amqp.Connection, error) {
		return amqp.Dial(connURL)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	return conn, nil
}

func declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		updatesExchange,
		"topic",
		false, // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

// PublishTopic sends data to every listener bound to the topic.
func PublishTopic(ch *amqp.Channel, topic string, data []byte) error {
	if err := declareExchange(ch); err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		updatesExchange,
		topic,
		false,
		false,
		publishing,
	)
}

// PublishGraphUpdated announces a data change.
func PublishGraphUpdated(ch *amqp.Channel, reason string) error {
	body, err := json.Marshal(UpdateMsg{
		ID:     uuid.NewString(),
		Reason: reason,
		At:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update message: %w", err)
	}
	if err := PublishTopic(ch, TopicGraphUpdated, body); err != nil {
		return fmt.Errorf("failed to publish %s: %w", TopicGraphUpdated, err)
	}
	return nil
}

// ListenGraphUpdates consumes graph.* events and hands each decoded
// message to handler, until ctx is done or the channel drops. Every
// listener gets its own broker-named auto-delete queue, events fan out
// rather than load-balance.
//
// Events are delivered with auto-ack: a lost notification only delays a
// refresh, the next event or an explicit reload catches up.
func ListenGraphUpdates(ctx context.Context, conn *amqp.Connection, handler func(UpdateMsg)) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := declareExchange(ch); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // broker-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "graph.#", updatesExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		true,  // autoAck
		true,  // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	logger.Info("[Queue] Listening for graph updates", "queue", q.Name)

	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping update listener")
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			var update UpdateMsg
			if err := json.Unmarshal(msg.Body, &update); err != nil {
				logger.Warn("[Queue] Dropping malformed update message", "err", err)
				continue
			}
			logger.Info("[Queue] Graph updated", "event", update.ID, "reason", update.Reason, "at", update.At)
			handler(update)
		}
	}
}
