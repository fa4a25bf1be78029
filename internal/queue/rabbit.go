package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/franzego/eventmailer/internal/config"
	"github.com/franzego/eventmailer/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMqClient publishes notification.sent messages for downstream consumers.
type RabbitMqClient struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Config  config.RabbitMQConfig
}

func NewRabbitMqService(cfg config.RabbitMQConfig) (*RabbitMqClient, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("could not create a channel: %w", err)
	}
	client := &RabbitMqClient{
		Conn:    conn,
		Channel: channel,
		Config:  cfg,
	}
	if err := client.SetUpExchange(); err != nil {
		client.CloseConnection()
		return nil, err
	}
	return client, nil
}

func (r *RabbitMqClient) CloseConnection() {
	r.Channel.Close()
	r.Conn.Close()
}

// set up our exchange
func (r *RabbitMqClient) SetUpExchange() error {
	if err := r.Channel.ExchangeDeclare(
		r.Config.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("error declaring exchange %s: %w", r.Config.Exchange, err)
	}
	return nil
}

// sentPublishing builds the broker message for a sent notification. The
// event id doubles as message id so consumers can drop redeliveries.
func sentPublishing(msg models.SentMessage) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal sent message: %w", err)
	}
	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:   "application/json",
		Type:          "notification.sent",
		MessageId:     msg.EventID,
		CorrelationId: msg.CorrelationID,
		Timestamp:     sentAt,
		DeliveryMode:  amqp.Persistent,
		Body:          body,
	}, nil
}

// PublishSent announces msg on the configured exchange and routing key.
func (r *RabbitMqClient) PublishSent(ctx context.Context, msg models.SentMessage) error {
	publishing, err := sentPublishing(msg)
	if err != nil {
		return err
	}
	if err := r.Channel.PublishWithContext(ctx, r.Config.Exchange, r.Config.RoutingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish sent event %s: %w", msg.EventID, err)
	}
	return nil
}
