package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Publisher delivers reminders.
type Publisher interface {
	Publish(ctx context.Context, r Reminder) error
	Close() error
}

// LogPublisher writes reminders to the default logger. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, r Reminder) error {
	slog.InfoContext(ctx, "Weekly reminder",
		"user", r.UserID,
		"week_start", r.WeekStart,
		"total", r.TotalSpent.StringFixed(2),
		"budget", r.BudgetLimit.StringFixed(2),
		"count", r.Count,
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQPPublisher publishes reminders to a durable direct exchange
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  amqpChannel
	exchange string
	queue    string
}

// NewAMQPPublisher dials the broker and declares the exchange, queue and binding.
// The queue name doubles as the routing key.
func NewAMQPPublisher(url, exchange, queue string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, exchange, queue); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return &AMQPPublisher{conn: conn, channel: channel, exchange: exchange, queue: queue}, nil
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends r as a persistent JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, r Reminder) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx, p.exchange, p.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    r.GeneratedAt,
		Type:         "weekly-reminder",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}

	slog.InfoContext(ctx, "Published weekly reminder", "user", r.UserID, "exchange", p.exchange, "queue", p.queue)
	return nil
}

// Close closes the channel and connection
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
