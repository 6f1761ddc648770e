package kafka

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

type defaultProducer struct {
	logger logger.Logger

	p *kafka.Producer

	wg     sync.WaitGroup
	done   chan struct{}
	closed atomic.Bool
}

// NewProducer creates a new kafka producer
func NewProducer(log logger.Logger, config *ProducerConfig) (Producer, error) {
	if config == nil {
		config = DefaultProducerConfig()
	} else {
		config = config.MergeDefaults()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	if err := validateKafkaCluster(log, config.Brokers); err != nil {
		return nil, err
	}

	var producer *kafka.Producer
	err := retry(log, "create kafka producer", 3, 3*time.Second, func() error {
		var err error
		producer, err = kafka.NewProducer(config.BuildConfigMap())
		return err
	})
	if err != nil {
		return nil, ErrConnection(err)
	}

	kp := &defaultProducer{
		p:      producer,
		logger: log,
		done:   make(chan struct{}),
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()

	log.Info("kafka producer initialized", zap.Strings("brokers", config.Brokers))
	return kp, nil
}

// handleDeliveryReports logs delivery failures reported asynchronously
func (kp *defaultProducer) handleDeliveryReports() {
	defer kp.wg.Done()

	for {
		select {
		case <-kp.done:
			return
		case e, ok := <-kp.p.Events():
			if !ok {
				return
			}
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					kp.logger.Error("failed to deliver message",
						zap.Error(ev.TopicPartition.Error),
						zap.String("topic", *ev.TopicPartition.Topic),
					)
				} else {
					kp.logger.Debug("message delivered",
						zap.String("topic", *ev.TopicPartition.Topic),
						zap.Int32("partition", ev.TopicPartition.Partition),
						zap.Int64("offset", int64(ev.TopicPartition.Offset)),
					)
				}
			case kafka.Error:
				kp.logger.Error("kafka producer error",
					zap.Int("code", int(ev.Code())),
					zap.String("error", ev.String()),
				)
			default:
				kp.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
			}
		}
	}
}

// Produce enqueues msg; delivery is reported asynchronously
func (kp *defaultProducer) Produce(ctx context.Context, msg *Message) error {
	if kp.closed.Load() {
		return ErrProducerClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	message, err := toKafkaMessage(msg)
	if err != nil {
		return err
	}
	if err := kp.p.Produce(message, nil); err != nil {
		return ErrProduce(err)
	}
	return nil
}

// Close flushes outstanding messages and closes the producer
func (kp *defaultProducer) Close() error {
	if !kp.closed.CompareAndSwap(false, true) {
		return nil
	}

	if remaining := kp.p.Flush(10000); remaining > 0 {
		kp.logger.Warn("producer closed with undelivered messages", zap.Int("remaining", remaining))
	}
	close(kp.done)
	kp.wg.Wait()
	kp.p.Close()
	kp.logger.Info("kafka producer closed")
	return nil
}
