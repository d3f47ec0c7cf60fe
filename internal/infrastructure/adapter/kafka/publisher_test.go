package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreport "github.com/amirhossein-jamali/credit-ledger/internal/domain/port/core"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/adapter/logger"
	"github.com/amirhossein-jamali/credit-ledger/internal/infrastructure/config"
)

func TestProducerConfig(t *testing.T) {
	conf, err := ProducerConfig(config.KafkaConfig{
		ClientID:     "credit-ledger",
		RequiredAcks: "local",
		MaxRetries:   5,
		Timeout:      3 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, "credit-ledger", conf.ClientID)
	assert.Equal(t, sarama.WaitForLocal, conf.Producer.RequiredAcks)
	assert.Equal(t, 5, conf.Producer.Retry.Max)
	assert.True(t, conf.Producer.Return.Successes)
	assert.Equal(t, 3*time.Second, conf.Producer.Timeout)

	_, err = ProducerConfig(config.KafkaConfig{RequiredAcks: "quorum"})
	assert.Error(t, err)
}

func TestPublisher_Publish(t *testing.T) {
	t.Run("sends keyed payload", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != "ledger.entries" {
				return errors.New("unexpected topic " + msg.Topic)
			}
			key, _ := msg.Key.Encode()
			if string(key) != "acct-1" {
				return errors.New("unexpected key " + string(key))
			}
			value, _ := msg.Value.Encode()
			if string(value) != `{"entryId":7}` {
				return errors.New("unexpected value " + string(value))
			}
			if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "req-9" {
				return errors.New("missing request id header")
			}
			return nil
		})

		publisher := NewPublisherWithProducer(producer, logger.NewNoopLogger())
		ctx := coreport.WithRequestID(context.Background(), "req-9")

		require.NoError(t, publisher.Publish(ctx, "ledger.entries", "acct-1", []byte(`{"entryId":7}`)))
		require.NoError(t, publisher.Close())
	})

	t.Run("broker failure", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

		publisher := NewPublisherWithProducer(producer, logger.NewNoopLogger())

		err := publisher.Publish(context.Background(), "ledger.entries", "acct-1", []byte(`{}`))
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
		require.NoError(t, publisher.Close())
	})

	t.Run("canceled context sends nothing", func(t *testing.T) {
		producer := mocks.NewSyncProducer(t, nil)
		publisher := NewPublisherWithProducer(producer, logger.NewNoopLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, publisher.Publish(ctx, "ledger.entries", "acct-1", nil), context.Canceled)
		require.NoError(t, publisher.Close())
	})
}
