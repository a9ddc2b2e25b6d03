// Package broker hands SMS, WhatsApp and push notifications to the gateway
// workers through a RabbitMQ topic exchange.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes JSON messages to one durable topic exchange.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewPublisher connects to RabbitMQ and declares the exchange.
func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("invalid AMQP_URL: %w", err)
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// Publish marshals body to JSON and sends it with routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		})
	if err != nil {
		return fmt.Errorf("failed to publish to %q: %w", routingKey, err)
	}
	return nil
}

// Close gracefully closes the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
