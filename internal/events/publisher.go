package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/alainabartfeld/strava-activities/internal/observability"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(ctx context.Context, subject, schema string) (int, error)
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger overrides the publisher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithSchemaRegistry registers event schemas and stamps their ids into the wire frame.
func WithSchemaRegistry(registry schemaRegistrar) Option {
	return func(p *Publisher) {
		p.registry = registry
	}
}

// Publisher writes snapshot events to a Kafka topic.
type Publisher struct {
	writer   messageWriter
	registry schemaRegistrar
	topic    string
	logger   *zap.Logger

	mu        sync.Mutex
	schemaIDs map[string]int
}

// NewPublisher constructs a Publisher for topic.
func NewPublisher(writer messageWriter, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		writer:    writer,
		topic:     topic,
		logger:    zap.NewNop(),
		schemaIDs: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishSnapshotCreated emits a snapshot.created event keyed by the snapshot date.
func (p *Publisher) PublishSnapshotCreated(ctx context.Context, evt SnapshotCreated) error {
	err := p.publish(ctx, EventTypeSnapshotCreated, evt.Date, evt.RunID, evt)
	observability.RecordEventPublished(p.topic, err)
	if err != nil {
		return err
	}
	p.logger.Info("snapshot event published",
		zap.String("topic", p.topic),
		zap.String("event_id", evt.EventID),
		zap.String("file", evt.FileName),
	)
	return nil
}

func (p *Publisher) publish(ctx context.Context, eventType, key, runID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}

	subject := SubjectFor(p.topic)
	schemaID, err := p.schemaID(ctx, eventType, subject)
	if err != nil {
		return fmt.Errorf("resolve schema for %s: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: EncodeWireFormat(schemaID, body),
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "schema_subject", Value: []byte(subject)},
			{Key: "run_id", Value: []byte(runID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, p.topic, msg); err != nil {
		return fmt.Errorf("write %s to %s: %w", eventType, p.topic, err)
	}
	return nil
}

func (p *Publisher) schemaID(ctx context.Context, eventType, subject string) (int, error) {
	if p.registry == nil {
		return 0, nil
	}
	schema, ok := SchemaFor(eventType)
	if !ok {
		return 0, fmt.Errorf("no schema for event_type=%s", eventType)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.schemaIDs[subject]; ok {
		return id, nil
	}
	id, err := p.registry.EnsureSchema(ctx, subject, schema)
	if err != nil {
		return 0, err
	}
	p.schemaIDs[subject] = id
	return id, nil
}
