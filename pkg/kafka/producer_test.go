package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/logging"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w *fakeWriter) *Producer {
	return &Producer{
		writer: w,
		logger: logging.Discard(),
		topic:  "etl-events",
	}
}

func TestProducer_PublishRunEvent(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(w)

	err := p.PublishRunEvent(context.Background(), &RunEvent{
		EventType:     "etl.run.completed",
		SchemaVersion: "1.0",
		RunID:         "run-1",
		Pipeline:      "init",
		State:         "done",
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "etl-events", msg.Topic)
	assert.Equal(t, "init", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte("etl.run.completed")})

	var decoded RunEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.False(t, decoded.Timestamp.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishRunEventError(t *testing.T) {
	p := newTestProducer(&fakeWriter{err: errors.New("broker down")})

	err := p.PublishRunEvent(context.Background(), &RunEvent{EventType: "etl.run.aborted"})
	assert.EqualError(t, err, "broker down")
}

func TestCompressionCodec(t *testing.T) {
	assert.Equal(t, kafka.Gzip, compressionCodec("gzip"))
	assert.Equal(t, kafka.Snappy, compressionCodec(""))
	assert.Equal(t, kafka.Compression(0), compressionCodec("none"))
}
