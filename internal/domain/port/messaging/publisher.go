package messaging

import "context"

// EventPublisher delivers serialized events to a message broker
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
	Close() error
}
