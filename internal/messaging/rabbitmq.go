package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// DigestJob asks the worker to run one digest for a (group, topic) target.
// RunDate is the calendar date being summarized, formatted 2006-01-02 in the
// scheduler's time zone.
type DigestJob struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	TopicID   *int64 `json:"topic_id,omitempty"`
	RunDate   string `json:"run_date"`
	Timestamp int64  `json:"timestamp"`
}

func NewRabbitMQ(url string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
	}

	if err := rmq.Setup(); err != nil {
		rmq.Close()
		return nil, err
	}

	return rmq, nil
}

// NewRabbitMQWithRetry dials until the broker accepts the connection or the
// context expires. Used at startup when the broker may still be coming up.
func NewRabbitMQWithRetry(ctx context.Context, url string) (*RabbitMQ, error) {
	var lastErr error
	for {
		rmq, err := NewRabbitMQ(url)
		if err == nil {
			return rmq, nil
		}
		lastErr = err

		slog.Warn("rabbitmq not ready, retrying",
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to RabbitMQ: %w", lastErr)
		case <-time.After(3 * time.Second):
		}
	}
}

func (r *RabbitMQ) Setup() error {
	if err := r.channel.ExchangeDeclare(
		"digest.jobs", // name
		"topic",       // type
		true,          // durable
		false,         // auto-deleted
		false,         // internal
		false,         // no-wait
		nil,           // arguments
	); err != nil {
		return fmt.Errorf("failed to declare jobs exchange: %w", err)
	}

	if _, err := r.channel.QueueDeclare(
		"digest.run", // name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("failed to declare digest.run queue: %w", err)
	}

	if err := r.channel.QueueBind(
		"digest.run",   // queue name
		"digest.daily", // routing key
		"digest.jobs",  // exchange
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to bind digest.run queue: %w", err)
	}

	slog.Info("rabbitmq setup completed successfully")
	return nil
}

func (r *RabbitMQ) PublishDigestJob(ctx context.Context, groupID string, topicID *int64, runDate string) error {
	job := &DigestJob{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		TopicID:   topicID,
		RunDate:   runDate,
		Timestamp: time.Now().Unix(),
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal digest job: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		"digest.jobs",
		"digest.daily",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish digest job: %w", err)
	}

	slog.Info("published digest job",
		slog.String("job_id", job.ID),
		slog.String("group_id", job.GroupID),
		slog.String("run_date", job.RunDate))
	return nil
}

func (r *RabbitMQ) ConsumeDigestJobs() (<-chan amqp.Delivery, error) {
	msgs, err := r.channel.Consume(
		"digest.run",
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	slog.Info("started consuming digest jobs",
		slog.String("queue", "digest.run"))
	return msgs, nil
}

func (r *RabbitMQ) IsClosed() bool {
	return r.conn == nil || r.conn.IsClosed()
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
