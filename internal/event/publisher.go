// Package event publishes domain events to an AMQP topic exchange.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

// Routing keys of published events.
const (
	ExamCreated       = "exam.created"
	ExamUpdated       = "exam.updated"
	ExamGenerated     = "exam.generated"
	AttemptSubmitted  = "attempt.submitted"
	ModerationUpdated = "moderation.updated"
)

// Envelope is the JSON body of every message.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

type channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher sends events using the event type as routing key.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  channel
	exchange string
	now      func() time.Time
}

// NewPublisher dials amqpURL and declares a durable topic exchange.
func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange, now: time.Now}, nil
}

// Publish wraps payload in an Envelope and sends it.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(p.exchange, eventType, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         eventType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	slog.Debug("published event", "type", eventType, "id", env.ID)
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
