// Package consumer reads activity events back from Kafka for downstream processing.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/JarvisScienz/progress-tracker/internal/outbox"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(context.Context, Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error { return f(ctx, msg) }

// Message is the decoded representation of a Kafka record emitted by the outbox dispatcher.
type Message struct {
	Topic         string
	Partition     int
	Offset        int64
	Timestamp     time.Time
	EventType     string
	UserID        string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader  Reader
	handler Handler
	logger  *zap.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until the context is cancelled. Malformed records
// are committed and skipped; records whose handler fails stay uncommitted.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.logger.Warn("dropping undecodable record",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(decodeErr),
			)
			recordDecodeError(msg.Topic)
			if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
				p.logger.Error("commit after decode failure", zap.Error(commitErr))
			}
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Error("handler failed",
				zap.String("event_type", event.EventType),
				zap.String("user_id", event.UserID),
				zap.Int64("offset", event.Offset),
				zap.Error(handleErr),
			)
			recordHandlerError(event)
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Error("commit failed", zap.Error(commitErr))
			continue
		}
		recordProcessed(event)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) < 5 {
		return Message{}, fmt.Errorf("invalid payload length: %d", len(msg.Value))
	}
	if msg.Value[0] != 0 {
		return Message{}, fmt.Errorf("unknown magic byte: %d", msg.Value[0])
	}

	eventType, ok := headerValue(msg, outbox.HeaderEventType)
	if !ok || len(eventType) == 0 {
		return Message{}, errors.New("missing event_type header")
	}
	userID, _ := headerValue(msg, outbox.HeaderUserID)
	schemaSubject, _ := headerValue(msg, outbox.HeaderSchemaSubject)

	payload := json.RawMessage(append([]byte(nil), msg.Value[5:]...))
	if !json.Valid(payload) {
		return Message{}, errors.New("payload is not valid JSON")
	}

	return Message{
		Topic:         msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Timestamp:     msg.Time,
		EventType:     string(eventType),
		UserID:        string(userID),
		SchemaSubject: string(schemaSubject),
		SchemaID:      int(binary.BigEndian.Uint32(msg.Value[1:5])),
		Payload:       payload,
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
