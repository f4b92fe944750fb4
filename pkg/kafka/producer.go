package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes pipeline run events
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none":
		return 0
	default:
		return kafka.Snappy
	}
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compressionCodec(cfg.Compression),
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close flushes pending messages and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// LoadCounts mirrors a unit's load report
type LoadCounts struct {
	Inserted  int `json:"inserted"`
	Replaced  int `json:"replaced"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// RunEvent describes one finished pipeline run
type RunEvent struct {
	EventType     string                `json:"event_type"`
	SchemaVersion string                `json:"schema_version"`
	RunID         string                `json:"run_id"`
	Pipeline      string                `json:"pipeline"`
	State         string                `json:"state"`
	Path          []string              `json:"path"`
	FailedStage   string                `json:"failed_stage,omitempty"`
	Fault         string                `json:"fault,omitempty"`
	Error         string                `json:"error,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	DurationMS    int64                 `json:"duration_ms"`
	Loads         map[string]LoadCounts `json:"loads,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// PublishRunEvent publishes a run event keyed by pipeline name
func (p *Producer) PublishRunEvent(ctx context.Context, event *RunEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishRunEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Pipeline),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "schema_version", Value: []byte(event.SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaPublish(p.topic, "failed")
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish run event")
		return err
	}
	metrics.RecordKafkaPublish(p.topic, "succeeded")

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type": event.EventType,
		"run_id":     event.RunID,
		"pipeline":   event.Pipeline,
	}).Debug("Published run event")

	return nil
}
