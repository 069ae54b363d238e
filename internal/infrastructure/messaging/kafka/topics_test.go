package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ScentIQ-Intelligence/internal/config"
	apperrors "github.com/turtacn/ScentIQ-Intelligence/pkg/errors"
)

type mockKafkaConn struct {
	created   []kafka.TopicConfig
	createErr error
	existing  map[string]bool
}

func (c *mockKafkaConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if c.createErr != nil {
		return c.createErr
	}
	c.created = append(c.created, topics...)
	return nil
}

func (c *mockKafkaConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	var out []kafka.Partition
	for _, t := range topics {
		if c.existing[t] {
			out = append(out, kafka.Partition{Topic: t})
		}
	}
	if len(out) == 0 {
		return nil, errors.New("unknown topic")
	}
	return out, nil
}

func (c *mockKafkaConn) Close() error { return nil }

func stubEventID(t *testing.T, id string) {
	t.Helper()
	orig := newEventID
	newEventID = func() string { return id }
	t.Cleanup(func() { newEventID = orig })
}

func TestEventEnvelope_RoundTrip(t *testing.T) {
	stubEventID(t, "evt-1")
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	env, err := NewEventEnvelope(EventNotification, "user-1", map[string]string{"title": "hello"}, at)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, "v1", env.SchemaVersion)
	assert.Equal(t, sourceService, env.Source)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	msg, err := env.ToMessage("collection.insights")
	require.NoError(t, err)
	assert.Equal(t, "user-1", string(msg.Key))
	assert.Equal(t, EventNotification, msg.Headers["event_type"])

	parsed, err := ParseEnvelope(&Message{Value: msg.Value})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", parsed.EventID)
	assert.True(t, parsed.Timestamp.Equal(at))

	var payload map[string]string
	require.NoError(t, parsed.DecodePayload(&payload))
	assert.Equal(t, "hello", payload["title"])
}

func TestParseEnvelope_Invalid(t *testing.T) {
	_, err := ParseEnvelope(&Message{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = ParseEnvelope(&Message{Value: []byte("{not json")})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeSerialization))

	env := &EventEnvelope{}
	assert.True(t, apperrors.IsValidation(env.DecodePayload(&struct{}{})))
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &mockKafkaConn{}
	m := NewTopicManagerWithConn(conn, nil)

	topics := DefaultTopics(config.KafkaConfig{
		ChangesTopic:  "collection.changes",
		InsightsTopic: "collection.insights",
		DLQTopic:      "collection.changes.dlq",
	})
	require.NoError(t, m.EnsureTopics(context.Background(), topics))
	require.Len(t, conn.created, 3)
	assert.Equal(t, "collection.changes", conn.created[0].Topic)
	require.Len(t, conn.created[0].ConfigEntries, 1)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
	assert.Equal(t, "604800000", conn.created[0].ConfigEntries[0].ConfigValue)
}

func TestTopicManager_CreateTopic(t *testing.T) {
	ctx := context.Background()

	m := NewTopicManagerWithConn(&mockKafkaConn{}, nil)
	assert.True(t, apperrors.IsValidation(m.CreateTopic(ctx, TopicConfig{NumPartitions: 1, ReplicationFactor: 1})))
	assert.True(t, apperrors.IsValidation(m.CreateTopic(ctx, TopicConfig{Name: "t"})))

	exists := &mockKafkaConn{createErr: errors.New("topic already exists"), existing: map[string]bool{"t": true}}
	m = NewTopicManagerWithConn(exists, nil)
	assert.NoError(t, m.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))

	broken := &mockKafkaConn{createErr: errors.New("not controller")}
	m = NewTopicManagerWithConn(broken, nil)
	err := m.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternal))
}

func TestDefaultTopics_NoDLQ(t *testing.T) {
	topics := DefaultTopics(config.KafkaConfig{ChangesTopic: "a", InsightsTopic: "b"})
	assert.Len(t, topics, 2)
}
