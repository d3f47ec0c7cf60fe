package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/domain/port/messaging"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

// RequestIDHeader carries the request ID of the operation that produced an event
const RequestIDHeader = "x-request-id"

// Publisher implements messaging.EventPublisher with a sarama SyncProducer
type Publisher struct {
	producer sarama.SyncProducer
	logger   coreport.Logger
}

var _ messaging.EventPublisher = (*Publisher)(nil)

// ProducerConfig builds the sarama configuration for the event producer.
// Messages are keyed by account, so the hash partitioner keeps one account's events in order.
func ProducerConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	acks, err := cfg.Acks()
	if err != nil {
		return nil, err
	}

	conf := sarama.NewConfig()
	if cfg.ClientID != "" {
		conf.ClientID = cfg.ClientID
	}
	conf.Producer.RequiredAcks = acks
	conf.Producer.Retry.Max = cfg.MaxRetries
	conf.Producer.Return.Successes = true
	conf.Producer.Partitioner = sarama.NewHashPartitioner
	if cfg.Timeout > 0 {
		conf.Producer.Timeout = cfg.Timeout
		conf.Net.DialTimeout = cfg.Timeout
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}
	return conf, nil
}

// NewPublisher connects a SyncProducer to the configured brokers
func NewPublisher(cfg config.KafkaConfig, logger coreport.Logger) (*Publisher, error) {
	conf, err := ProducerConfig(cfg)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("Kafka producer created", map[string]any{
		"brokers":   cfg.Brokers,
		"client_id": cfg.ClientID,
	})
	return NewPublisherWithProducer(producer, logger), nil
}

// NewPublisherWithProducer wraps an existing producer
func NewPublisherWithProducer(producer sarama.SyncProducer, logger coreport.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		logger:   logger,
	}
}

// Publish sends one message and waits for the broker acknowledgement
func (p *Publisher) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	if requestID := coreport.RequestIDFrom(ctx); requestID != "" {
		msg.Headers = []sarama.RecordHeader{{Key: []byte(RequestIDHeader), Value: []byte(requestID)}}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.Error("Failed to publish event", map[string]any{
			"topic": topic,
			"key":   key,
			"error": err.Error(),
		})
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("Event published", map[string]any{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	})
	return nil
}

// Close flushes and closes the producer
func (p *Publisher) Close() error {
	return p.producer.Close()
}
