package mq

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"fanloyalty/internal/config"

	"github.com/IBM/sarama"
)

// Message is one record handed to Kafka.
type Message struct {
	Topic   string
	Key     string
	Value   string
	Headers map[string]string
}

func NewSyncProducer(cfg *config.KafkaConfig) (sarama.SyncProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true
	// same key, same partition: events of one membership stay ordered
	kafkaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// Publisher sends outbox records through a sync producer.
type Publisher struct {
	producer sarama.SyncProducer
}

func NewPublisher(producer sarama.SyncProducer) *Publisher {
	return &Publisher{producer: producer}
}

// InitPublisher connects to the brokers and exits the process on failure.
func InitPublisher(cfg *config.KafkaConfig) *Publisher {
	producer, err := NewSyncProducer(cfg)
	if err != nil {
		slog.Error("create kafka producer failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("kafka producer ready", slog.Any("brokers", cfg.Brokers))
	return NewPublisher(producer)
}

func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pm := &sarama.ProducerMessage{
		Topic: msg.Topic,
		Key:   sarama.StringEncoder(msg.Key),
		Value: sarama.StringEncoder(msg.Value),
	}
	for k, v := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(pm)
	if err != nil {
		return fmt.Errorf("send to %s: %w", msg.Topic, err)
	}
	slog.Debug("kafka message sent",
		slog.String("topic", msg.Topic),
		slog.String("key", msg.Key),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
