// Package outbox persists and delivers domain events to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Header keys attached to every published record.
const (
	HeaderEventType     = "event_type"
	HeaderUserID        = "user_id"
	HeaderSchemaSubject = "schema_subject"
)

// MessageWriter publishes records to a topic.
type MessageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// SchemaRegistrar resolves a schema ID for a subject.
type SchemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Store is the outbox table as seen by the dispatcher.
type Store interface {
	Claim(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, ids []int64) error
	MoveToDLQ(ctx context.Context, msg Message, reason string) error
}

// Dispatcher drains the outbox table and delivers events to Kafka using Schema Registry metadata.
type Dispatcher struct {
	store            Store
	producer         MessageWriter
	registry         SchemaRegistrar
	logger           *zap.Logger
	pollInterval     time.Duration
	batchSize        int
	schemaIDCache    sync.Map
	now              func() time.Time
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store Store, producer MessageWriter, registry SchemaRegistrar, logger *zap.Logger, pollInterval time.Duration, batchSize int) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Dispatcher{
		store:            store,
		producer:         producer,
		registry:         registry,
		logger:           logger.Named("outbox"),
		pollInterval:     pollInterval,
		batchSize:        batchSize,
		now:              time.Now,
		shutdownComplete: make(chan struct{}),
	}
}

// Start launches the polling loop. It should be called in a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer func() {
		ticker.Stop()
		close(d.shutdownComplete)
	}()

	for {
		if err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("dispatch batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait waits until dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch claims one batch of pending events and publishes it. Events of a
// topic that cannot be delivered are parked in the DLQ so the batch still
// completes.
func (d *Dispatcher) ProcessBatch(ctx context.Context) error {
	start := d.now()

	messages, err := d.store.Claim(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	published := make([]int64, 0, len(messages))
	for topic, batch := range d.groupByTopic(messages) {
		records, encodeErr := d.encode(ctx, batch)
		if encodeErr == nil {
			encodeErr = d.producer.WriteMessages(ctx, topic, records...)
		}
		if encodeErr != nil {
			d.logger.Warn("delivery failed, routing to dlq",
				zap.String("topic", topic),
				zap.Int("events", len(batch)),
				zap.Error(encodeErr),
			)
			failedCounter.Add(float64(len(batch)))
			if err := d.moveToDLQ(ctx, batch, encodeErr.Error()); err != nil {
				return err
			}
		} else {
			deliveredCounter.Add(float64(len(batch)))
		}
		for _, msg := range batch {
			published = append(published, msg.EventID)
		}
	}

	return d.store.MarkPublished(ctx, published)
}

func (d *Dispatcher) groupByTopic(messages []Message) map[string][]Message {
	groups := make(map[string][]Message)
	for _, msg := range messages {
		groups[msg.Topic] = append(groups[msg.Topic], msg)
	}
	return groups
}

func (d *Dispatcher) encode(ctx context.Context, batch []Message) ([]kafka.Message, error) {
	records := make([]kafka.Message, 0, len(batch))
	for _, msg := range batch {
		schemaID, err := d.schemaID(ctx, msg)
		if err != nil {
			return nil, err
		}
		records = append(records, kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: EncodeWireFormat(schemaID, msg.Payload),
			Time:  d.now().UTC(),
			Headers: []kafka.Header{
				{Key: HeaderEventType, Value: []byte(msg.EventType)},
				{Key: HeaderUserID, Value: []byte(msg.UserID)},
				{Key: HeaderSchemaSubject, Value: []byte(msg.SchemaSubject)},
			},
		})
	}
	return records, nil
}

func (d *Dispatcher) schemaID(ctx context.Context, msg Message) (int, error) {
	if cached, ok := d.schemaIDCache.Load(msg.SchemaSubject); ok {
		return cached.(int), nil
	}
	route, err := routeForSubject(msg.EventType, msg.SchemaSubject)
	if err != nil {
		return 0, err
	}
	id, err := d.registry.EnsureSchema(ctx, msg.SchemaSubject, route.Schema)
	if err != nil {
		return 0, err
	}
	d.schemaIDCache.Store(msg.SchemaSubject, id)
	return id, nil
}

func (d *Dispatcher) moveToDLQ(ctx context.Context, messages []Message, reason string) error {
	for _, msg := range messages {
		entryReason := fmt.Sprintf("%s (topic=%s)", reason, msg.Topic)
		if err := d.store.MoveToDLQ(ctx, msg, entryReason); err != nil {
			return err
		}
		dlqCounter.WithLabelValues(msg.Topic).Inc()
	}
	return nil
}

// Message represents a row fetched from outbox.
type Message struct {
	EventID       int64
	UserID        string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	// Attempts counts earlier deliveries that ended in the DLQ.
	Attempts int
}

// EncodeWireFormat applies Confluent framing for Schema Registry aware payloads.
func EncodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	frame[0] = 0
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
