package kafka

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/objsync/logger"
	"github.com/dailyyoga/objsync/routine"
	"go.uber.org/zap"
)

type defaultConsumer struct {
	consumerInstances []*consumeInstance

	closed atomic.Bool
}

// NewConsumer creates a consumer with config.InstanceNum group members
func NewConsumer(log logger.Logger, config *ConsumerConfig) (Consumer, error) {
	if config == nil {
		config = DefaultConsumerConfig()
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

	instances := make([]*consumeInstance, 0, config.InstanceNum)
	for i := 0; i < config.InstanceNum; i++ {
		name := fmt.Sprintf("%s-instance-%d", config.GroupID, i+1)
		instance, err := newConsumeInstance(name, config, log)
		if err != nil {
			for _, started := range instances {
				started.Close()
			}
			return nil, err
		}
		instances = append(instances, instance)
	}

	return &defaultConsumer{consumerInstances: instances}, nil
}

func (c *defaultConsumer) Start(ctx context.Context, handler ConsumerMsgHandler) error {
	if len(c.consumerInstances) == 0 {
		return ErrNoConsumerInstances
	}
	for _, instance := range c.consumerInstances {
		instance.Start(ctx, handler)
	}
	return nil
}

func (c *defaultConsumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, instance := range c.consumerInstances {
		if err := instance.Close(); err != nil {
			return err
		}
	}
	return nil
}

// consumeInstance is one member of the consumer group
type consumeInstance struct {
	logger logger.Logger

	config *ConsumerConfig
	name   string
	c      *kafka.Consumer

	closed atomic.Bool
}

func newConsumeInstance(name string, config *ConsumerConfig, log logger.Logger) (*consumeInstance, error) {
	consumer, err := kafka.NewConsumer(config.BuildConfigMap())
	if err != nil {
		return nil, ErrConnection(err)
	}
	if err := consumer.SubscribeTopics(config.Topics, nil); err != nil {
		consumer.Close()
		return nil, ErrSubscribe(config.Topics, err)
	}
	return &consumeInstance{
		config: config,
		name:   name,
		c:      consumer,
		logger: log,
	}, nil
}

func (c *consumeInstance) Start(ctx context.Context, handler ConsumerMsgHandler) {
	routine.GoNamed(c.logger, c.name, func() {
		if err := c.consumeLoop(ctx, handler); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka consumer loop exited with error",
				zap.String("instance_name", c.name),
				zap.Error(err))
		}
	})
	c.logger.Info("kafka consumer instance started", zap.String("instance_name", c.name))
}

func (c *consumeInstance) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := c.c.Close(); err != nil {
		return ErrConnection(err)
	}
	c.logger.Info("kafka consumer instance closed", zap.String("instance_name", c.name))
	return nil
}

func (c *consumeInstance) consumeLoop(ctx context.Context, handler ConsumerMsgHandler) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.closed.Load() {
			return nil
		}

		ev := c.c.Poll(100)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if err := c.handleMessage(ctx, e, handler); err != nil {
				c.logger.Error("kafka consumer handle message failed",
					zap.String("topic", *e.TopicPartition.Topic),
					zap.Int32("partition", e.TopicPartition.Partition),
					zap.Int64("offset", int64(e.TopicPartition.Offset)),
					zap.Error(err),
				)
			}
		case kafka.Error:
			c.logger.Error("kafka consumer error", zap.Int("code", int(e.Code())), zap.String("error", e.String()))
			if e.Code() == kafka.ErrAllBrokersDown {
				return ErrConsume(e)
			}
		case kafka.OffsetsCommitted:
			if e.Error != nil {
				c.logger.Error("failed to commit offsets", zap.Error(e.Error))
			}
		default:
			c.logger.Debug("received unknown event", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
}

// handleMessage runs handler with retries, then commits the offset. A message
// that keeps failing is committed anyway and reported to the caller.
func (c *consumeInstance) handleMessage(ctx context.Context, msg *kafka.Message, handler ConsumerMsgHandler) error {
	start := time.Now()

	var runErr error
	for i := 1; i <= c.config.MaxRetries; i++ {
		if runErr = handler(ctx, fromKafkaMessage(msg)); runErr == nil {
			break
		}
	}

	if !c.config.EnableAutoCommit {
		if _, err := c.c.CommitMessage(msg); err != nil {
			return ErrCommit(err)
		}
	}
	if runErr != nil {
		return runErr
	}

	c.logger.Debug("kafka consumer instance processed message",
		zap.String("instance_name", c.name),
		zap.Int64("offset", int64(msg.TopicPartition.Offset)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
