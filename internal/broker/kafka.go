package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	Brokers string
	Topic   string
	GroupID string
	// DeadLetterTopic receives measurements whose batch could not be written.
	DeadLetterTopic string
}

type KafkaQueue struct {
	producer        *kafka.Producer
	consumer        *kafka.Consumer
	topic           string
	deadLetterTopic string
	logger          *zap.Logger
}

func NewKafkaQueue(cfg KafkaConfig, logger *zap.Logger) (*KafkaQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"acks":              "all",
		"retries":           3,
		"batch.size":        16384,
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"group.id":          cfg.GroupID,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &KafkaQueue{
		producer: producer,
		consumer: consumer,
		topic:           cfg.Topic,
		deadLetterTopic: cfg.DeadLetterTopic,
		logger:          logger,
	}, nil
}

func (k *KafkaQueue) Publish(ctx context.Context, data []byte) error {
	return k.publish(ctx, k.topic, data)
}

// DeadLetterQueue publishes to the dead-letter topic on the same producer.
// It returns nil when no dead-letter topic is configured.
func (k *KafkaQueue) DeadLetterQueue() Publisher {
	if k.deadLetterTopic == "" {
		return nil
	}
	return &kafkaTopicPublisher{queue: k, topic: k.deadLetterTopic}
}

type kafkaTopicPublisher struct {
	queue *KafkaQueue
	topic string
}

func (p *kafkaTopicPublisher) Publish(ctx context.Context, data []byte) error {
	return p.queue.publish(ctx, p.topic, data)
}

func (k *KafkaQueue) publish(ctx context.Context, topic string, data []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	err := k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Value: data,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}

	select {
	case e := <-deliveryChan:
		if msg, ok := e.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			return fmt.Errorf("deliver to %s: %w", topic, msg.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (k *KafkaQueue) Consume(ctx context.Context, handler Handler) error {
	if err := k.consumer.Subscribe(k.topic, nil); err != nil {
		return fmt.Errorf("subscribe to %s: %w", k.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := k.consumer.ReadMessage(100 * time.Millisecond)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			return fmt.Errorf("read from %s: %w", k.topic, err)
		}

		if err := handler(msg.Value); err != nil {
			k.logger.Warn("error processing message",
				zap.String("topic", k.topic),
				zap.Int64("offset", int64(msg.TopicPartition.Offset)),
				zap.Error(err))
		}
	}
}

func (k *KafkaQueue) Close() error {
	k.producer.Flush(5000)
	k.producer.Close()
	return k.consumer.Close()
}
