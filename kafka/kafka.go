// Package kafka carries sync signals between processes.
//
// It is a thin layer over confluent-kafka-go: a Producer publishing
// messages built by the signal package and a Consumer group feeding received
// messages to a handler, with manual offset commits after the handler
// succeeds.
package kafka

import (
	"context"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// Message is a kafka message decoupled from the client library
type Message struct {
	Value          []byte
	Key            []byte
	Timestamp      time.Time
	TopicPartition TopicPartition
	Headers        []Header
}

// GetHeader returns the first header value named k, nil if absent
func (m *Message) GetHeader(k string) []byte {
	for _, header := range m.Headers {
		if header.Key == k {
			return header.Value
		}
	}
	return nil
}

// PartitionAny lets the producer's partitioner pick the partition
const PartitionAny = kafka.PartitionAny

// TopicPartition locates a message
type TopicPartition struct {
	Topic     *string
	Partition int32
	Offset    Offset
}

// Offset is a partition offset
type Offset int64

// Header is a message header
type Header struct {
	Key   string
	Value []byte
}

// ConsumerMsgHandler handles one received message. A nil return commits it.
type ConsumerMsgHandler func(ctx context.Context, msg *Message) error

// Consumer consumes messages of a consumer group
type Consumer interface {
	Start(ctx context.Context, handler ConsumerMsgHandler) error
	Close() error
}

// Producer publishes messages
type Producer interface {
	Produce(ctx context.Context, msg *Message) error
	Close() error
}

func fromKafkaMessage(msg *kafka.Message) *Message {
	message := &Message{
		Value:     msg.Value,
		Key:       msg.Key,
		Timestamp: msg.Timestamp,
		TopicPartition: TopicPartition{
			Topic:     msg.TopicPartition.Topic,
			Partition: msg.TopicPartition.Partition,
			Offset:    Offset(msg.TopicPartition.Offset),
		},
		Headers: make([]Header, len(msg.Headers)),
	}
	for i, header := range msg.Headers {
		message.Headers[i] = Header{Key: header.Key, Value: header.Value}
	}
	return message
}

func toKafkaMessage(msg *Message) (*kafka.Message, error) {
	if msg.TopicPartition.Topic == nil || *msg.TopicPartition.Topic == "" {
		return nil, ErrInvalidMessage("topic is required")
	}
	if msg.Value == nil {
		return nil, ErrInvalidMessage("value is required")
	}

	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     msg.TopicPartition.Topic,
			Partition: msg.TopicPartition.Partition,
		},
		Value: msg.Value,
		Key:   msg.Key,
	}
	for _, header := range msg.Headers {
		message.Headers = append(message.Headers, kafka.Header{Key: header.Key, Value: header.Value})
	}
	return message, nil
}
