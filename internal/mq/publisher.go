// Package mq publishes execution lifecycle events to RabbitMQ. Publishing is
// optional and best-effort: the scheduler's correctness never depends on an
// event being delivered, and every call site tolerates a nil *Publisher.
package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange execution events are published to.
// Routing keys follow "execution.<event>".
const Exchange = "glimpser.scheduler"

// ExecutionEvent describes one lifecycle transition of a job execution.
type ExecutionEvent struct {
	Event       string    `json:"event"` // started | succeeded | failed | timed_out | cancelled
	JobID       uuid.UUID `json:"job_id"`
	JobName     string    `json:"job_name"`
	Kind        string    `json:"kind"`
	ExecutionID uuid.UUID `json:"execution_id"`
	InstanceID  string    `json:"instance_id"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// Publisher owns one AMQP connection and channel. A broken channel is redialed
// lazily on the next publish rather than by a background watcher.
type Publisher struct {
	url    string
	logger *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	p := &Publisher{url: url, logger: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials, opens a channel, and declares the exchange. Caller holds no
// lock; connect takes it.
func (p *Publisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}

	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = conn
	p.ch = ch
	p.logger.Info("connected to RabbitMQ", "exchange", Exchange)
	return nil
}

// PublishExecutionEvent sends one event. On a channel error it reconnects
// once and retries; a second failure is returned to the caller, which logs
// and moves on.
func (p *Publisher) PublishExecutionEvent(ctx context.Context, ev ExecutionEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	key := "execution." + ev.Event

	if err := p.publish(ctx, key, body); err != nil {
		p.logger.Warn("publish failed, reconnecting", "err", err)
		if err := p.connect(); err != nil {
			return err
		}
		return p.publish(ctx, key, body)
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, key string, body []byte) error {
	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()

	return ch.PublishWithContext(ctx, Exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
