package availability

import (
	"context"
	"encoding/json"
	"time"

	"bookcatalog/internal/book"
	"bookcatalog/internal/platform/metrics"
	"bookcatalog/internal/queue"

	"go.uber.org/zap"
)

var _ book.AvailabilityNotifier = (*Publisher)(nil)

// Publisher emits availability events from the request path. Failures are
// logged and counted, never returned.
type Publisher struct {
	ch      queue.Channel
	lane    string
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewPublisher(ch queue.Channel, lane string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Publisher{ch: ch, lane: lane, timeout: timeout, logger: logger, metrics: m}
}

// PublishAvailability publishes {book_id, availability} to the availability
// lane. A client that disconnects does not cancel the publish; the timeout does.
func (p *Publisher) PublishAvailability(ctx context.Context, bookID int64, availability bool) {
	body, err := json.Marshal(Event{BookID: bookID, Availability: availability})
	if err != nil {
		p.fail(bookID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.ch.Publish(ctx, p.lane, body); err != nil {
		p.fail(bookID, err)
		return
	}

	p.metrics.AvailabilityPublished.WithLabelValues("ok").Inc()
	p.logger.Debug("availability event published",
		zap.Int64("book_id", bookID),
		zap.Bool("availability", availability),
	)
}

func (p *Publisher) fail(bookID int64, err error) {
	p.metrics.AvailabilityPublished.WithLabelValues("error").Inc()
	p.logger.Warn("failed to publish availability event",
		zap.String("lane", p.lane),
		zap.Int64("book_id", bookID),
		zap.Error(err),
	)
}
