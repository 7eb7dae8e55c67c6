// Package publisher hands activity events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/fitness/libs/go/events"
)

// Header keys set on every published message.
const (
	HeaderEventType   = "event_type"
	HeaderContentType = "content_type"
)

const defaultPublishTimeout = 5 * time.Second

// flushInterval bounds how long a synchronous write waits for its batch to fill.
const flushInterval = 5 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher lazily manages one synchronous writer per topic.
type KafkaPublisher struct {
	brokers   []string
	timeout   time.Duration
	newWriter func(topic string) messageWriter
	transport kafka.RoundTripper

	mu      sync.Mutex
	writers map[string]messageWriter
}

// NewKafkaPublisher creates a KafkaPublisher. A non-positive timeout selects the default.
func NewKafkaPublisher(brokers []string, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	p := &KafkaPublisher{
		brokers: brokers,
		timeout: timeout,
		writers: make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter
	return p
}

// Publish writes event to topic keyed by key and waits for all in-sync
// replicas to acknowledge. Messages sharing a key land on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, event events.ActivityIngested) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", events.EventTypeActivityIngested, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(events.EventTypeActivityIngested)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}
	if err := p.writerForTopic(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) writerForTopic(topic string) messageWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}
	writer := p.newWriter(topic)
	p.writers[topic] = writer
	return writer
}

func (p *KafkaPublisher) kafkaWriter(topic string) messageWriter {
	return &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		Async:                  false,
		AllowAutoTopicCreation: true,
		BatchTimeout:           flushInterval,
		Transport:              p.transport,
	}
}

// Close releases all writers.
func (p *KafkaPublisher) Close() error {
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
