package queue

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const defaultMemoryCapacity = 1024

// Memory is an in-process Channel. Lanes are bounded FIFO queues; a full lane
// blocks Publish until space frees up or ctx ends. Nacked and dead-lettered
// messages bypass the bound so a subscriber never waits on its own lane.
// Contents do not survive the process.
type Memory struct {
	policy   RedeliveryPolicy
	capacity int
	logger   *zap.Logger

	mu     sync.Mutex
	lanes  map[string]*memLane
	closed bool
	done   chan struct{}
}

type memLane struct {
	ch chan Message
	// pending holds redeliveries, guarded by Memory.mu.
	pending []Message
	wake    chan struct{}
}

// MemoryOption customises a Memory channel.
type MemoryOption func(*Memory)

// WithCapacity sets the per-lane buffer size.
func WithCapacity(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithMemoryLogger attaches a logger.
func WithMemoryLogger(l *zap.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemory returns an empty in-process channel.
func NewMemory(policy RedeliveryPolicy, opts ...MemoryOption) *Memory {
	m := &Memory{
		policy:   policy,
		capacity: defaultMemoryCapacity,
		logger:   zap.NewNop(),
		lanes:    make(map[string]*memLane),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) lane(name string) (*memLane, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	return m.laneLocked(name), nil
}

func (m *Memory) laneLocked(name string) *memLane {
	l, ok := m.lanes[name]
	if !ok {
		l = &memLane{
			ch:   make(chan Message, m.capacity),
			wake: make(chan struct{}, 1),
		}
		m.lanes[name] = l
	}
	return l
}

// Publish implements Channel.
func (m *Memory) Publish(ctx context.Context, lane string, body []byte) error {
	msg := Message{Lane: lane, Body: append([]byte(nil), body...)}
	l, err := m.lane(lane)
	if err != nil {
		return &ChannelError{Op: "publish", Lane: lane, Err: err}
	}

	select {
	case l.ch <- msg:
		return nil
	case <-m.done:
		return &ChannelError{Op: "publish", Lane: lane, Err: ErrClosed}
	case <-ctx.Done():
		return &ChannelError{Op: "publish", Lane: lane, Err: ctx.Err()}
	}
}

// requeue appends msg to its lane's redelivery list without blocking.
func (m *Memory) requeue(msg Message) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &ChannelError{Op: "requeue", Lane: msg.Lane, Err: ErrClosed}
	}
	l := m.laneLocked(msg.Lane)
	l.pending = append(l.pending, msg)
	m.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

func (m *Memory) popPending(l *memLane) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(l.pending) == 0 {
		return Message{}, false
	}
	msg := l.pending[0]
	l.pending[0] = Message{}
	l.pending = l.pending[1:]
	return msg, true
}

// next returns a waiting message without blocking. Fresh and redelivered
// messages take turns so neither starves the other.
func (m *Memory) next(l *memLane, pendingFirst bool) (Message, bool) {
	if pendingFirst {
		if msg, ok := m.popPending(l); ok {
			return msg, true
		}
	}
	select {
	case msg := <-l.ch:
		return msg, true
	default:
	}
	return m.popPending(l)
}

// Subscribe implements Channel. It returns nil when ctx is cancelled.
func (m *Memory) Subscribe(ctx context.Context, lane string, h Handler) error {
	l, err := m.lane(lane)
	if err != nil {
		return &ChannelError{Op: "subscribe", Lane: lane, Err: err}
	}

	pendingFirst := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		default:
		}

		msg, ok := m.next(l, pendingFirst)
		pendingFirst = !pendingFirst
		if ok {
			m.deliver(ctx, lane, h, msg)
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-m.done:
			return nil
		case msg := <-l.ch:
			m.deliver(ctx, lane, h, msg)
		case <-l.wake:
		}
	}
}

func (m *Memory) deliver(ctx context.Context, lane string, h Handler, msg Message) {
	if h(ctx, msg) == Ack {
		return
	}
	if err := m.redeliver(msg); err != nil {
		m.logger.Error("redelivery failed, message lost",
			zap.String("lane", lane),
			zap.Error(err),
		)
	}
}

func (m *Memory) redeliver(msg Message) error {
	switch m.policy.onNack(msg.Attempt) {
	case actionRetry:
		msg.Attempt++
		msg.Redelivered = true
		return m.requeue(msg)
	case actionDeadLetter:
		m.logger.Warn("redeliveries exhausted, dead-lettering",
			zap.String("lane", msg.Lane),
			zap.Int("attempt", msg.Attempt),
		)
		return m.requeue(Message{
			Lane:    m.policy.DeadLetterLane(msg.Lane),
			Body:    msg.Body,
			Attempt: msg.Attempt,
		})
	default:
		msg.Redelivered = true
		return m.requeue(msg)
	}
}

// Len reports how many messages wait on lane, redeliveries included.
func (m *Memory) Len(lane string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.lanes[lane]; ok {
		return len(l.ch) + len(l.pending)
	}
	return 0
}

// Drain removes and returns the bodies waiting on lane, redeliveries first.
func (m *Memory) Drain(lane string) [][]byte {
	l, err := m.lane(lane)
	if err != nil {
		return nil
	}
	var out [][]byte
	for {
		msg, ok := m.popPending(l)
		if !ok {
			break
		}
		out = append(out, msg.Body)
	}
	for {
		select {
		case msg := <-l.ch:
			out = append(out, msg.Body)
		default:
			return out
		}
	}
}

// Close stops all subscriptions and rejects further publishes.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}
