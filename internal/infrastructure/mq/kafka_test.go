package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"POINTS_AWARDED"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewPublisher(producer)
	err := p.Publish(context.Background(), Message{
		Topic:   "loyalty.points",
		Key:     "membership:1",
		Value:   `{"type":"POINTS_AWARDED"}`,
		Headers: map[string]string{"event_type": "POINTS_AWARDED"},
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestPublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewPublisher(producer)
	err := p.Publish(context.Background(), Message{Topic: "loyalty.points", Key: "k", Value: "v"})
	assert.ErrorIs(t, err, sarama.ErrNotLeaderForPartition)
	require.NoError(t, p.Close())
}

func TestPublishCanceled(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	p := NewPublisher(producer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Message{Topic: "loyalty.points"}), context.Canceled)
	require.NoError(t, p.Close())
}
