package signal

import (
	"context"
	"time"

	"github.com/dailyyoga/objsync/kafka"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// HeaderOrigin carries the emitting process on every forwarded message
const HeaderOrigin = "objsync-origin"

// KafkaForwarder relays forwardable signals from a Bus to a Kafka topic
type KafkaForwarder struct {
	logger   logger.Logger
	producer kafka.Producer
	topic    string
	origin   string
	timeout  time.Duration
}

// NewKafkaForwarder creates a forwarder producing to topic. An empty origin
// means this process.
func NewKafkaForwarder(log logger.Logger, producer kafka.Producer, topic, origin string) (*KafkaForwarder, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if log == nil {
		log = logger.NewNop()
	}
	if origin == "" {
		origin = Origin()
	}
	return &KafkaForwarder{
		logger:   log,
		producer: producer,
		topic:    topic,
		origin:   origin,
		timeout:  5 * time.Second,
	}, nil
}

// Attach subscribes the forwarder to bus; the returned function detaches it
func (f *KafkaForwarder) Attach(bus Bus) func() {
	return bus.Subscribe(func(s *ActionCompleted) {
		if !Forwardable(s) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		if err := f.Forward(ctx, s); err != nil {
			f.logger.Error("failed to forward signal",
				zap.String("id", s.ID().String()),
				zap.String("action", string(s.Action())),
				zap.Error(err),
			)
		}
	})
}

// Forward produces s as an envelope keyed by its subject
func (f *KafkaForwarder) Forward(ctx context.Context, s *ActionCompleted) error {
	env := NewEnvelope(s, f.origin)
	value, err := env.Marshal()
	if err != nil {
		return err
	}
	key := env.Subject
	if key == "" {
		key = env.Disappeared
	}

	topic := f.topic
	msg := &kafka.Message{
		Value: value,
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Headers: []kafka.Header{{Key: HeaderOrigin, Value: []byte(f.origin)}},
	}
	if key != "" {
		msg.Key = []byte(key)
	}
	return f.producer.Produce(ctx, msg)
}

// KafkaHandler adapts fn to a consumer handler. Envelopes emitted by origin
// are skipped; malformed messages are logged and acknowledged so they are
// not redelivered forever.
func KafkaHandler(log logger.Logger, origin string, fn func(ctx context.Context, env Envelope) error) kafka.ConsumerMsgHandler {
	if log == nil {
		log = logger.NewNop()
	}
	if origin == "" {
		origin = Origin()
	}
	return func(ctx context.Context, msg *kafka.Message) error {
		if string(msg.GetHeader(HeaderOrigin)) == origin {
			return nil
		}
		env, err := DecodeEnvelope(msg.Value)
		if err != nil {
			log.Warn("dropping malformed signal envelope", zap.Error(err))
			return nil
		}
		if env.Origin == origin {
			return nil
		}
		return fn(ctx, env)
	}
}
