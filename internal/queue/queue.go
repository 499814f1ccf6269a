// Package queue is the durable event channel between the HTTP path and the
// availability consumer. A lane is a named durable queue.
package queue

import (
	"context"
	"errors"
	"fmt"
)

// Decision tells the channel what to do with a delivered message.
type Decision int

const (
	// Ack removes the message from its lane.
	Ack Decision = iota
	// Nack hands the message back for redelivery.
	Nack
)

func (d Decision) String() string {
	switch d {
	case Ack:
		return "ack"
	case Nack:
		return "nack"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Message is one delivery from a lane.
type Message struct {
	Lane string
	Body []byte
	// Attempt counts prior bounded redeliveries. Always 0 under an unbounded policy.
	Attempt     int
	Redelivered bool
}

// Handler processes one message. It is never called concurrently for the same
// subscription.
type Handler func(ctx context.Context, msg Message) Decision

// Channel publishes to and consumes from lanes.
type Channel interface {
	// Publish enqueues body on lane with persistent delivery.
	Publish(ctx context.Context, lane string, body []byte) error
	// Subscribe blocks, feeding messages of lane to h one at a time, until ctx
	// is cancelled or the channel fails for good.
	Subscribe(ctx context.Context, lane string, h Handler) error
}

// ErrChannel is wrapped by every transport failure.
var ErrChannel = errors.New("event channel unavailable")

// ErrClosed is returned by a channel that was closed.
var ErrClosed = errors.New("event channel closed")

// ChannelError records which operation on which lane failed.
type ChannelError struct {
	Op   string
	Lane string
	Err  error
}

func (e *ChannelError) Error() string {
	if e.Lane == "" {
		return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("queue %s lane=%s: %v", e.Op, e.Lane, e.Err)
}

func (e *ChannelError) Unwrap() []error {
	return []error{ErrChannel, e.Err}
}

// RedeliveryPolicy bounds how often a nacked message is retried.
//
// MaxRedeliveries == 0 requeues forever, so a handler that always fails keeps
// the message cycling. A positive value moves the message to the dead-letter
// lane once it has been redelivered that many times.
type RedeliveryPolicy struct {
	MaxRedeliveries  int
	DeadLetterSuffix string
}

// Bounded reports whether retries are capped.
func (p RedeliveryPolicy) Bounded() bool {
	return p.MaxRedeliveries > 0
}

// DeadLetterLane names the lane exhausted messages from lane are moved to.
func (p RedeliveryPolicy) DeadLetterLane(lane string) string {
	suffix := p.DeadLetterSuffix
	if suffix == "" {
		suffix = ".dlq"
	}
	return lane + suffix
}

// retryAction is what a channel does with a nacked message.
type retryAction int

const (
	actionRequeue retryAction = iota
	actionRetry
	actionDeadLetter
)

// onNack picks the action for a message nacked at the given attempt.
func (p RedeliveryPolicy) onNack(attempt int) retryAction {
	if !p.Bounded() {
		return actionRequeue
	}
	if attempt >= p.MaxRedeliveries {
		return actionDeadLetter
	}
	return actionRetry
}

// Header names carried on bounded redeliveries.
const (
	HeaderRedeliveryCount = "x-redelivery-count"
	HeaderFailureLane     = "x-failure-lane"
)
