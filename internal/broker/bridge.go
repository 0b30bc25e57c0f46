package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"subtrans/internal/config"
	"subtrans/internal/daemon"
	"subtrans/internal/logging"
	"subtrans/internal/queue"
	"subtrans/internal/services"
)

// Target is the daemon surface the bridge drives.
type Target interface {
	Enqueue(ctx context.Context, req daemon.EnqueueRequest) (queue.Job, bool, error)
	Subscribe() (<-chan queue.Event, func())
}

// Publisher sends a message body to a queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Bridge moves enqueue commands from RabbitMQ into the daemon and terminal
// job events back out.
type Bridge struct {
	url          string
	commandQueue string
	eventsQueue  string
	target       Target
	logger       *slog.Logger
	maxBackoff   time.Duration
}

// New builds a bridge from the [broker] config section.
func New(cfg config.Broker, target Target, logger *slog.Logger) (*Bridge, error) {
	if target == nil {
		return nil, errors.New("broker requires a target")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "broker", "new", "broker.url is required", nil)
	}
	return &Bridge{
		url:          cfg.URL,
		commandQueue: cfg.CommandQueue,
		eventsQueue:  cfg.EventsQueue,
		target:       target,
		logger:       logging.NewComponentLogger(logger, "broker"),
		maxBackoff:   30 * time.Second,
	}, nil
}

// Run consumes commands until ctx is cancelled, reconnecting with backoff
// when the connection drops.
func (b *Bridge) Run(ctx context.Context) error {
	events, unsubscribe := b.target.Subscribe()
	defer unsubscribe()

	backoff := time.Second
	for {
		err := b.session(ctx, events)
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(b.logger, "broker session ended", "broker_disconnected",
			logging.Error(err),
			logging.Duration("retry_in", backoff),
			logging.String(logging.FieldErrorHint, "check broker.url and that RabbitMQ is reachable"),
			logging.String(logging.FieldImpact, "queued commands wait until the broker reconnects"),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, b.maxBackoff)
	}
}

// session runs one connection until it fails or ctx ends.
func (b *Bridge) session(ctx context.Context, events <-chan queue.Event) error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("connect to rabbitmq: %w", err)
	}
	defer conn.Close()

	consumeCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer consumeCh.Close()
	if _, err := consumeCh.QueueDeclare(b.commandQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", b.commandQueue, err)
	}
	if err := consumeCh.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := consumeCh.Consume(b.commandQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", b.commandQueue, err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open publisher channel: %w", err)
	}
	defer publishCh.Close()
	publisher := &channelPublisher{ch: publishCh}
	if _, err := publishCh.QueueDeclare(b.eventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", b.eventsQueue, err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	b.logger.Info("broker connected",
		logging.String("command_queue", b.commandQueue),
		logging.String("events_queue", b.eventsQueue),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return errors.New("connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			b.deliver(ctx, d)
		case evt, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			if err := b.Forward(ctx, publisher, evt); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) deliver(ctx context.Context, d amqp.Delivery) {
	err := b.HandleCommand(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, services.ErrValidation):
		// Malformed commands never succeed; drop them.
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, true)
	}
}

// HandleCommand decodes body and enqueues it.
func (b *Bridge) HandleCommand(ctx context.Context, body []byte) error {
	req, err := DecodeCommand(body)
	if err != nil {
		logging.WarnWithContext(b.logger, "broker command rejected", "broker_command_invalid",
			logging.Error(err),
			logging.Int("bytes", len(body)),
			logging.String(logging.FieldErrorHint, "send JSON with a video_url and an optional range_start/range_end pair"),
		)
		return err
	}
	job, created, err := b.target.Enqueue(ctx, req)
	if err != nil {
		return err
	}
	b.logger.Info("broker command accepted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldVideoURL, job.VideoURL),
		logging.Bool("created", created),
	)
	return nil
}

// Forward publishes evt to the events queue when it is terminal.
func (b *Bridge) Forward(ctx context.Context, publisher Publisher, evt queue.Event) error {
	body, ok, err := EncodeEvent(evt)
	if err != nil || !ok {
		return err
	}
	if err := publisher.Publish(ctx, b.eventsQueue, body); err != nil {
		return fmt.Errorf("publish job event: %w", err)
	}
	b.logger.Debug("job event published",
		logging.String(logging.FieldJobID, evt.Job.ID),
		logging.String("status", string(evt.Job.Status)),
	)
	return nil
}

type channelPublisher struct {
	ch *amqp.Channel
}

func (p *channelPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	return p.ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
