package availability

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"bookcatalog/internal/platform/metrics"
	"bookcatalog/internal/queue"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublisher_PublishesOneEvent(t *testing.T) {
	ch := queue.NewMemory(queue.RedeliveryPolicy{})
	defer ch.Close()
	m := metrics.New(nil)
	p := NewPublisher(ch, "availability_queue", time.Second, nil, m)

	p.PublishAvailability(context.Background(), 42, true)

	bodies := ch.Drain("availability_queue")
	require.Len(t, bodies, 1)
	var ev Event
	require.NoError(t, json.Unmarshal(bodies[0], &ev))
	assert.Equal(t, Event{BookID: 42, Availability: true}, ev)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityPublished.WithLabelValues("ok")))
}

func TestPublisher_IgnoresCancelledRequest(t *testing.T) {
	ch := queue.NewMemory(queue.RedeliveryPolicy{})
	defer ch.Close()
	p := NewPublisher(ch, "availability_queue", time.Second, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.PublishAvailability(ctx, 1, false)

	assert.Equal(t, 1, ch.Len("availability_queue"))
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New(nil)
	p := NewPublisher(failingChannel{}, "availability_queue", time.Second, zap.New(core), m)

	assert.NotPanics(t, func() {
		p.PublishAvailability(context.Background(), 1, true)
	})

	assert.Equal(t, 1, logs.FilterMessage("failed to publish availability event").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityPublished.WithLabelValues("error")))
}

func TestPublisher_TimeoutIsAFailure(t *testing.T) {
	ch := queue.NewMemory(queue.RedeliveryPolicy{}, queue.WithCapacity(1))
	defer ch.Close()
	m := metrics.New(nil)
	p := NewPublisher(ch, "availability_queue", 20*time.Millisecond, nil, m)

	p.PublishAvailability(context.Background(), 1, true)
	p.PublishAvailability(context.Background(), 2, true)

	assert.Equal(t, 1, ch.Len("availability_queue"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityPublished.WithLabelValues("error")))
}

// stalledBroker accepts connections and never completes the AMQP handshake.
func stalledBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestPublisher_TimeoutBoundsBrokerHandshake(t *testing.T) {
	ch := queue.NewAMQP(queue.AMQPConfig{URL: stalledBroker(t), DialTimeout: 10 * time.Second})
	defer ch.Close()
	core, logs := observer.New(zap.WarnLevel)
	m := metrics.New(nil)
	p := NewPublisher(ch, "availability_queue", 200*time.Millisecond, zap.New(core), m)

	start := time.Now()
	p.PublishAvailability(context.Background(), 7, false)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish availability event").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvailabilityPublished.WithLabelValues("error")))
}
