package log

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// KafkaAppenderOpt configures a log appender that ships formatted lines to
// a Kafka topic, reusing the same kafka-go writer the composite sink uses
// for event data (internal/sink).
type KafkaAppenderOpt struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type kafkaLogWriter struct {
	w *kafka.Writer
}

func (k *kafkaLogWriter) Write(p []byte) (int, error) {
	msg := make([]byte, len(p))
	copy(msg, p)
	err := k.w.WriteMessages(context.Background(), kafka.Message{Value: msg})
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (m *MultiWriter) AddKafkaAppender(options KafkaAppenderOpt) *MultiWriter {
	w := &kafka.Writer{
		Addr:         kafka.TCP(options.Brokers...),
		Topic:        options.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	m.writers = append(m.writers, &kafkaLogWriter{w: w})
	return m
}
