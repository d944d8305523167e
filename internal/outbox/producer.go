package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaProducer lazily manages one writer per topic. Records are hashed on
// their key so every event of an activity lands on the same partition.
type KafkaProducer struct {
	brokers []string
	logger  *zap.Logger
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer.
func NewKafkaProducer(brokers []string, logger *zap.Logger) *KafkaProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaProducer{
		brokers: brokers,
		logger:  logger.Named("kafka"),
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to the given topic, creating a writer if necessary.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerFor(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerFor(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		WriteTimeout: 10 * time.Second,
		ErrorLogger:  kafka.LoggerFunc(p.logger.With(zap.String("topic", topic)).Sugar().Errorf),
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
