package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/pkg/jobs"
)

// NotificationKind names the events the platform notifies on.
type NotificationKind string

const (
	NotifyFileShared       NotificationKind = "file_shared"
	NotifyShareRevoked     NotificationKind = "share_revoked"
	NotifySubmissionMade   NotificationKind = "submission_made"
	NotifySubmissionGraded NotificationKind = "submission_graded"
)

// Notification is one best-effort message to a recipient. Payload carries
// kind-specific details the downstream renderer understands.
type Notification struct {
	Kind      NotificationKind       `json:"kind"`
	Recipient string                 `json:"recipient"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	SentAt    time.Time              `json:"sentAt"`
}

// Notifier dispatches notifications. Callers never observe the outcome; a
// failed dispatch is logged downstream and the triggering operation is
// unaffected.
type Notifier interface {
	Notify(kind NotificationKind, recipient string, payload map[string]interface{})
}

// NopNotifier drops every notification. Used when dispatch is disabled.
type NopNotifier struct{}

// Notify implements Notifier.
func (NopNotifier) Notify(NotificationKind, string, map[string]interface{}) {}

// AMQPPublisher pushes notifications onto a RabbitMQ exchange.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQPPublisher connects to RabbitMQ and declares the notification
// exchange.
func NewAMQPPublisher(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	logger.Info("connected to rabbitmq", zap.String("exchange", exchange))

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Publish sends one notification, routed by kind.
func (p *AMQPPublisher) Publish(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.exchange,
		fmt.Sprintf("notification.%s", n.Kind),
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("close rabbitmq channel", zap.Error(err))
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("close rabbitmq connection", zap.Error(err))
		}
	}
	return nil
}

// AsyncNotifier hands notifications to a background queue so dispatch never
// blocks or fails the calling operation. Queue-full drops are logged inside
// the queue.
type AsyncNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAsyncNotifier builds the notifier and its worker queue around the given
// publisher.
func NewAsyncNotifier(publisher *AMQPPublisher, workers, bufferSize int, logger *zap.Logger) *AsyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		n, ok := job.Payload.(Notification)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return publisher.Publish(ctx, n)
	}

	queue := jobs.NewQueue("notifications", handler, jobs.QueueConfig{
		Workers:    workers,
		BufferSize: bufferSize,
		Logger:     logger,
	})

	return &AsyncNotifier{queue: queue, logger: logger}
}

// Start launches the dispatch workers.
func (n *AsyncNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the workers.
func (n *AsyncNotifier) Stop() {
	n.queue.Stop()
}

// Notify implements Notifier.
func (n *AsyncNotifier) Notify(kind NotificationKind, recipient string, payload map[string]interface{}) {
	if recipient == "" {
		return
	}
	n.queue.TryEnqueue(jobs.Job{
		Type: string(kind),
		Payload: Notification{
			Kind:      kind,
			Recipient: recipient,
			Payload:   payload,
			SentAt:    time.Now().UTC(),
		},
	})
}
