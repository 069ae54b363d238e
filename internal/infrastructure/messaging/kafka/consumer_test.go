package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockKafkaReader serves queued messages, then blocks until cancelled.
type mockKafkaReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (m *mockKafkaReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockKafkaReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, msgs...)
	return nil
}

func (m *mockKafkaReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockKafkaReader) commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.committed)
}

type mockPublisher struct {
	mu   sync.Mutex
	msgs []*ProducerMessage
	err  error
}

func (p *mockPublisher) Publish(_ context.Context, msg *ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

type outcomeLog struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomeLog) observe(topic, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, topic+":"+outcome)
}

func newTestConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "scentiq-test",
		Topics:  []string{"collection.changes"},
		RetryConfig: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			DeadLetterTopic: "collection.changes.dlq",
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(newTestConsumerConfig()))

	cases := map[string]func(*ConsumerConfig){
		"no brokers":  func(c *ConsumerConfig) { c.Brokers = nil },
		"no group":    func(c *ConsumerConfig) { c.GroupID = "" },
		"no topics":   func(c *ConsumerConfig) { c.Topics = nil },
		"bad offset":  func(c *ConsumerConfig) { c.AutoOffsetReset = "middle" },
		"neg retries": func(c *ConsumerConfig) { c.RetryConfig.MaxRetries = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := newTestConsumerConfig()
			mutate(&cfg)
			assert.Error(t, ValidateConsumerConfig(cfg))
		})
	}
}

func TestConsumer_DispatchesAndCommits(t *testing.T) {
	reader := &mockKafkaReader{queue: []kafka.Message{
		{Topic: "collection.changes", Key: []byte("user-1"), Value: []byte(`{"user_id":"user-1"}`),
			Headers: []kafka.Header{{Key: "trace", Value: []byte("t-1")}}},
		{Topic: "unknown.topic", Value: []byte("x")},
	}}
	events := &outcomeLog{}
	c, err := NewConsumer(newTestConsumerConfig(), nil,
		WithReader(reader), WithDeadLetter(&mockPublisher{}), WithObserver(events.observe))
	require.NoError(t, err)

	got := make(chan *Message, 1)
	c.Subscribe("collection.changes", func(_ context.Context, msg *Message) error {
		got <- msg
		return nil
	})
	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, ErrAlreadyRunning, c.Start(context.Background()))

	select {
	case msg := <-got:
		assert.Equal(t, "user-1", string(msg.Key))
		assert.Equal(t, "t-1", msg.Headers["trace"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for handler")
	}
	assert.Eventually(t, func() bool { return reader.commits() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
	assert.Equal(t, int64(2), c.Metrics().MessagesConsumed.Load())
	assert.Equal(t, int64(1), c.Metrics().MessagesProcessed.Load())

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, []string{"collection.changes:processed", "unknown.topic:unhandled"}, events.seen)
}

func TestProcessMessage_RetrySuccess(t *testing.T) {
	c, err := NewConsumer(newTestConsumerConfig(), nil, WithReader(&mockKafkaReader{}), WithDeadLetter(&mockPublisher{}))
	require.NoError(t, err)

	attempts := 0
	ok := c.processMessage(context.Background(), &Message{Topic: "collection.changes"}, func(context.Context, *Message) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(1), c.Metrics().MessagesRetried.Load())
}

func TestProcessMessage_DeadLetters(t *testing.T) {
	dlq := &mockPublisher{}
	events := &outcomeLog{}
	c, err := NewConsumer(newTestConsumerConfig(), nil,
		WithReader(&mockKafkaReader{}), WithDeadLetter(dlq), WithObserver(events.observe))
	require.NoError(t, err)

	attempts := 0
	msg := &Message{Topic: "collection.changes", Key: []byte("user-1"), Value: []byte("{}"), Headers: map[string]string{"a": "b"}}
	ok := c.processMessage(context.Background(), msg, func(context.Context, *Message) error {
		attempts++
		return errors.New("bad payload")
	})
	assert.False(t, ok)
	assert.Equal(t, 3, attempts)

	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, "collection.changes.dlq", dl.Topic)
	assert.Equal(t, "collection.changes", dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "bad payload", dl.Headers[HeaderError])
	assert.Equal(t, "b", dl.Headers["a"])
	assert.Empty(t, msg.Headers[HeaderError], "source headers must not be mutated")
	assert.Equal(t, int64(1), c.Metrics().MessagesDeadLettered.Load())
	assert.Equal(t, []string{
		"collection.changes:retried", "collection.changes:retried",
		"collection.changes:failed", "collection.changes:dead_lettered",
	}, events.seen)
}

func TestProcessMessage_DeadLetterFailure(t *testing.T) {
	dlq := &mockPublisher{err: errors.New("broker down")}
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.MaxRetries = 0
	c, err := NewConsumer(cfg, nil, WithReader(&mockKafkaReader{}), WithDeadLetter(dlq))
	require.NoError(t, err)

	ok := c.processMessage(context.Background(), &Message{Topic: "t"}, func(context.Context, *Message) error {
		return errors.New("nope")
	})
	assert.False(t, ok)
	assert.Zero(t, c.Metrics().MessagesDeadLettered.Load())
	assert.Equal(t, int64(1), c.Metrics().MessagesFailed.Load())
}

func TestProcessMessage_StopsOnCancel(t *testing.T) {
	cfg := newTestConsumerConfig()
	cfg.RetryConfig.RetryBackoff = time.Hour
	c, err := NewConsumer(cfg, nil, WithReader(&mockKafkaReader{}), WithDeadLetter(&mockPublisher{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok := c.processMessage(ctx, &Message{Topic: "t"}, func(context.Context, *Message) error { return errors.New("x") })
	assert.False(t, ok)
}
