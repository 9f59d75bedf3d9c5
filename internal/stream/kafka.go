package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const flushTimeoutMs = 5000

type Producer interface {
	ProduceMessage(topic, message string) error
}

type KafkaStream struct {
	kafkaServers string
	logger       *slog.Logger
}

func New(kafkaServers string, logger *slog.Logger) *KafkaStream {
	return &KafkaStream{
		kafkaServers: kafkaServers,
		logger:       logger,
	}
}

func (st *KafkaStream) ProduceMessage(topic, message string) error {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": st.kafkaServers})
	if err != nil {
		return err
	}
	defer producer.Close()

	deliveries := make(chan kafka.Event, 1)

	err = producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          []byte(message),
	}, deliveries)
	if err != nil {
		st.logger.Error("failed to produce message", "topic", topic, "error", err)
		return err
	}

	event := <-deliveries
	if m, ok := event.(*kafka.Message); ok && m.TopicPartition.Error != nil {
		st.logger.Error("message delivery failed", "topic", topic, "error", m.TopicPartition.Error)
		return m.TopicPartition.Error
	}

	producer.Flush(flushTimeoutMs)

	st.logger.Debug("message sent", "topic", topic)
	return nil
}

type StreamConsumer struct {
	GroupId string
	Topics  []string
}

func (st *KafkaStream) CreateConsumer(consumerStruct *StreamConsumer) (*kafka.Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": st.kafkaServers,
		"group.id":          consumerStruct.GroupId,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return nil, err
	}

	if err := consumer.SubscribeTopics(consumerStruct.Topics, nil); err != nil {
		consumer.Close()
		return nil, err
	}

	return consumer, nil
}

// Publish encodes event as JSON and produces it on topic.
func Publish(p Producer, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	return p.ProduceMessage(topic, string(payload))
}
