// Package events publishes payout outcome events to RabbitMQ. Publishing is
// best-effort: a broker outage is logged and never fails the payout.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"transfer-router/internal/common/logging"
)

// PayoutEvent is the outcome notification emitted after execution finishes
type PayoutEvent struct {
	Reference string    `json:"reference"`
	Gateway   string    `json:"gateway,omitempty"`
	Corridor  string    `json:"corridor"`
	Amount    int64     `json:"amount"`
	Success   bool      `json:"success"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason,omitempty"`
	Bridge    string    `json:"bridge,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits payout outcome events
type Publisher interface {
	PublishOutcome(event PayoutEvent)
	Close() error
}

// NoopPublisher drops all events; used when RabbitMQ is not configured
type NoopPublisher struct{}

func (NoopPublisher) PublishOutcome(PayoutEvent) {}
func (NoopPublisher) Close() error               { return nil }

// AMQPPublisher publishes events to a RabbitMQ topic exchange. The routing
// key is "payout.succeeded" or "payout.failed".
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   logging.Logger
	mu       sync.Mutex
}

// NewAMQPPublisher connects to RabbitMQ and declares the outcome exchange
func NewAMQPPublisher(url, exchange string, logger logging.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger.WithFields(logging.String("component", "events")),
	}, nil
}

// PublishOutcome emits one outcome event. Errors are logged and swallowed.
func (p *AMQPPublisher) PublishOutcome(event PayoutEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("failed to marshal payout event", err)
		return
	}

	key := "payout.failed"
	if event.Success {
		key = "payout.succeeded"
	}

	p.mu.Lock()
	err = p.channel.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.Timestamp,
	})
	p.mu.Unlock()

	if err != nil {
		p.logger.Error("failed to publish payout event", err,
			logging.String("reference", event.Reference),
			logging.String("routing_key", key),
		)
	}
}

// Close shuts down the channel and connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
