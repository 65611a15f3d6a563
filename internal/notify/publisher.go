package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/finwiz/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher delivers stored notifications to an external channel.
// Delivery is best effort and happens after the notification row is committed.
type Publisher interface {
	Publish(ctx context.Context, notification model.Notification) error
	Close() error
}

// NopPublisher drops every notification.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, model.Notification) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// Message is the JSON body published for each notification.
type Message struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	Band      string    `json:"band"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	UserID    int64     `json:"user_id"`
	BucketID  int64     `json:"bucket_id,omitempty"`
}

// NewMessage converts a notification to its wire form.
func NewMessage(n model.Notification) Message {
	return Message{
		ID:        n.ID,
		UserID:    n.UserID,
		BucketID:  n.BucketID,
		Band:      string(n.Band),
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPConfig holds the broker settings.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// AMQPPublisher publishes notifications to a durable direct exchange.
type AMQPPublisher struct {
	channel    channel
	conn       *amqp.Connection
	logger     *slog.Logger
	exchange   string
	routingKey string
}

// NewAMQPPublisher dials the broker and declares the exchange, queue and binding.
func NewAMQPPublisher(cfg AMQPConfig) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg.Exchange, cfg.Queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	p := newAMQPPublisher(ch, cfg.Exchange, cfg.Queue)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch channel, exchange, routingKey string) *AMQPPublisher {
	return &AMQPPublisher{
		channel:    ch,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     slog.Default().With("component", "amqp_publisher"),
	}
}

func declareTopology(ch *amqp.Channel, exchange, queue string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on a direct exchange.
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Publish sends one notification as a persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, notification model.Notification) error {
	body, err := json.Marshal(NewMessage(notification))
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    notification.ID,
			Timestamp:    notification.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification %s: %w", notification.ID, err)
	}

	p.logger.DebugContext(ctx, "Published notification",
		"id", notification.ID,
		"user_id", notification.UserID,
		"exchange", p.exchange)
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	var firstErr error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var (
	_ Publisher = NopPublisher{}
	_ Publisher = (*AMQPPublisher)(nil)
)
