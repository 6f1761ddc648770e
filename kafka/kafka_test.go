package kafka

import (
	"testing"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

func TestMessage_GetHeader(t *testing.T) {
	m := &Message{Headers: []Header{{Key: "a", Value: []byte("1")}, {Key: "a", Value: []byte("2")}}}
	if string(m.GetHeader("a")) != "1" {
		t.Errorf("GetHeader returned %q, want first value", m.GetHeader("a"))
	}
	if m.GetHeader("missing") != nil {
		t.Error("missing header must be nil")
	}
}

func TestToKafkaMessage(t *testing.T) {
	topic := "objsync.signals"
	msg, err := toKafkaMessage(&Message{
		Key:            []byte("Invoice@1"),
		Value:          []byte("{}"),
		TopicPartition: TopicPartition{Topic: &topic, Partition: PartitionAny},
		Headers:        []Header{{Key: "h", Value: []byte("v")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if *msg.TopicPartition.Topic != topic || msg.TopicPartition.Partition != kafka.PartitionAny {
		t.Errorf("unexpected partition %+v", msg.TopicPartition)
	}
	if string(msg.Key) != "Invoice@1" || len(msg.Headers) != 1 {
		t.Errorf("unexpected message %+v", msg)
	}

	if _, err := toKafkaMessage(&Message{Value: []byte("{}")}); err == nil {
		t.Error("message without topic must be rejected")
	}
	if _, err := toKafkaMessage(&Message{TopicPartition: TopicPartition{Topic: &topic}}); err == nil {
		t.Error("message without value must be rejected")
	}
}

func TestFromKafkaMessage(t *testing.T) {
	topic := "t"
	m := fromKafkaMessage(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 3, Offset: 42},
		Value:          []byte("v"),
		Headers:        []kafka.Header{{Key: "objsync-origin", Value: []byte("p")}},
	})
	if m.TopicPartition.Offset != 42 || m.TopicPartition.Partition != 3 {
		t.Errorf("unexpected position %+v", m.TopicPartition)
	}
	if string(m.GetHeader("objsync-origin")) != "p" {
		t.Error("headers not converted")
	}
}
