// Package notify delivers sync failure alerts to the operator-facing
// notification channel. Messages land on a durable queue consumed by the
// email/webhook dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"propsync/internal/domain"
)

type RabbitMQNotifier struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	recipients []string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
	Recipients []string
}

func NewRabbitMQNotifier(cfg Config, logger *slog.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQNotifier{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		recipients: cfg.Recipients,
		logger:     logger,
	}, nil
}

// AlertMessage is the payload the downstream dispatcher turns into an email
// or webhook call.
type AlertMessage struct {
	ConnectionID        int64                  `json:"connection_id"`
	RunID               string                 `json:"run_id"`
	ConsecutiveFailures int                    `json:"consecutive_failures"`
	ErrorSummary        string                 `json:"error_summary"`
	FailureDetails      []domain.FailureDetail `json:"failure_details"`
	Recipients          []string               `json:"recipients"`
	Timestamp           time.Time              `json:"timestamp"`
}

func (n *RabbitMQNotifier) NotifyFailure(ctx context.Context, alert *domain.SyncFailureAlert, run *domain.SyncRun) error {
	summary := ""
	if run.ErrorSummary != nil {
		summary = *run.ErrorSummary
	}

	msg := AlertMessage{
		ConnectionID:        alert.ConnectionID,
		RunID:               run.ID,
		ConsecutiveFailures: alert.ConsecutiveFailures,
		ErrorSummary:        summary,
		FailureDetails:      alert.FailureDetails,
		Recipients:          n.recipients,
		Timestamp:           time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert message: %w", err)
	}

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange,
		n.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}

	n.logger.Debug("published failure alert",
		"connection_id", alert.ConnectionID,
		"consecutive_failures", alert.ConsecutiveFailures,
	)

	return nil
}

func (n *RabbitMQNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
