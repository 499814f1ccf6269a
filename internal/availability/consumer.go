package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookcatalog/internal/book"
	"bookcatalog/internal/platform/metrics"
	"bookcatalog/internal/queue"

	"go.uber.org/zap"
)

// Store is the part of the book repository the consumer needs.
type Store interface {
	Get(ctx context.Context, id int64) (book.Book, error)
	SetAvailability(ctx context.Context, id int64, availability bool) (book.Book, error)
}

// ConsumerConfig names the lanes and the toggle policy.
type ConsumerConfig struct {
	AvailabilityLane string
	ResponseLane     string
	Policy           TogglePolicy
	// PublishTimeout bounds the response publish. Default 2s.
	PublishTimeout time.Duration
}

// Consumer processes availability events one at a time.
type Consumer struct {
	ch      queue.Channel
	store   Store
	config  ConsumerConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewConsumer(ch queue.Channel, store Store, config ConsumerConfig, logger *zap.Logger, m *metrics.Metrics) *Consumer {
	if config.Policy == nil {
		config.Policy = SnapshotToggle{}
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Consumer{ch: ch, store: store, config: config, logger: logger, metrics: m}
}

// Run subscribes to the availability lane and blocks until ctx is cancelled
// or the channel gives up.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("availability consumer started",
		zap.String("lane", c.config.AvailabilityLane),
		zap.String("response_lane", c.config.ResponseLane),
	)
	err := c.ch.Subscribe(ctx, c.config.AvailabilityLane, c.Handle)
	c.logger.Info("availability consumer stopped", zap.Error(err))
	return err
}

// Handle processes one message. It acks once the toggle is persisted and the
// response published, or when the book no longer exists; anything else nacks.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) (decision queue.Decision) {
	logger := c.logger.With(
		zap.String("lane", msg.Lane),
		zap.Int("attempt", msg.Attempt),
		zap.Bool("redelivered", msg.Redelivered),
	)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("availability handler panicked", zap.Any("panic", r))
			c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomePanic).Inc()
			decision = queue.Nack
		}
	}()

	ev, err := DecodeEvent(msg.Body)
	if err != nil {
		logger.Error("invalid availability event", zap.ByteString("body", msg.Body), zap.Error(err))
		c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomeDecodeError).Inc()
		return queue.Nack
	}
	logger = logger.With(zap.Int64("book_id", ev.BookID))

	resp, err := c.toggle(ctx, ev)
	switch {
	case errors.Is(err, book.ErrNotFound):
		logger.Info("book not found, dropping availability event")
		c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return queue.Ack
	case err != nil:
		logger.Error("failed to toggle availability", zap.Error(err))
		c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomeStoreError).Inc()
		return queue.Nack
	}

	if err := c.respond(ctx, resp); err != nil {
		logger.Error("failed to publish availability response", zap.Error(err))
		c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomePublishError).Inc()
		return queue.Nack
	}

	logger.Info("availability toggled", zap.Bool("new_availability", resp.NewAvailability))
	c.metrics.AvailabilityConsumed.WithLabelValues(metrics.OutcomeToggled).Inc()
	return queue.Ack
}

func (c *Consumer) toggle(ctx context.Context, ev Event) (Response, error) {
	stored, err := c.store.Get(ctx, ev.BookID)
	if err != nil {
		return Response{}, fmt.Errorf("load book %d: %w", ev.BookID, err)
	}

	next := c.config.Policy.Next(ev, stored)
	updated, err := c.store.SetAvailability(ctx, ev.BookID, next)
	if err != nil {
		return Response{}, fmt.Errorf("persist availability of book %d: %w", ev.BookID, err)
	}
	return Response{BookID: updated.ID, NewAvailability: updated.Availability}, nil
}

func (c *Consumer) respond(ctx context.Context, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.PublishTimeout)
	defer cancel()
	return c.ch.Publish(ctx, c.config.ResponseLane, body)
}
