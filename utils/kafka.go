package utils

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/evently-app/evently-backend/config"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher streams auth activity to a Kafka topic. Downstream
// consumers (alerting, analytics) are outside this service.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns nil when no brokers are configured; callers
// treat a nil publisher as "streaming disabled".
func NewKafkaPublisher(cfg *config.Config) *KafkaPublisher {
	if cfg.KafkaBrokers == "" {
		log.Println("ℹ️ No Kafka brokers configured, auth activity stream disabled")
		return nil
	}

	topic := cfg.KafkaTopic
	if topic == "" {
		topic = "auth-activity"
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(cfg.KafkaBrokers, ",")...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}

	log.Printf("✅ Kafka auth activity publisher ready (topic: %s)", topic)
	return &KafkaPublisher{writer: writer}
}

// Publish sends one activity record. Errors are returned for the caller to
// log; nothing is retried here.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload interface{}) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
}

// Close flushes and shuts down the underlying writer
func (p *KafkaPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
