package kafka

import (
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/dailyyoga/objsync/logger"
	"go.uber.org/zap"
)

// retry runs fn up to attempts times, sleeping delay between failures
func retry(log logger.Logger, what string, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts {
			log.Warn(what+" failed, retrying",
				zap.Error(err),
				zap.Int("attempt", i),
				zap.Int("max_attempts", attempts),
			)
			time.Sleep(delay)
		}
	}
	return err
}

// validateKafkaCluster fetches cluster metadata to make sure brokers answer
func validateKafkaCluster(log logger.Logger, brokers []string) error {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(brokers, ","),
		"request.timeout.ms": 10000,
	}

	var adminClient *kafka.AdminClient
	err := retry(log, "create kafka admin client", 3, 2*time.Second, func() error {
		var err error
		adminClient, err = kafka.NewAdminClient(configMap)
		return err
	})
	if err != nil {
		return ErrConnection(err)
	}
	defer adminClient.Close()

	if _, err := adminClient.GetMetadata(nil, false, 10000); err != nil {
		return ErrConnection(err)
	}

	log.Info("kafka brokers connection validated", zap.Strings("brokers", brokers))
	return nil
}
