// Package kafka implements a sink.Writer that ships composite items to
// a Kafka topic, grounded on the teacher's Kafka reporter plugin
// (plugins/reporter/kafka) and its JSON message shape.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"daqevb.dev/evbcore/internal/wire"
)

const (
	defaultBatchSize    = 100
	defaultBatchTimeout = 100 * time.Millisecond
)

// Config configures a Sink.
type Config struct {
	Brokers []string
	Topic   string
}

// Sink writes composite items and the glom parameters announcement to
// Kafka as JSON messages, keyed by source id so all of one source's
// output lands on the same partition.
type Sink struct {
	pipe   string
	writer *kafka.Writer
}

// New returns a Sink writing to cfg.Topic on cfg.Brokers.
func New(pipe string, cfg Config) *Sink {
	return &Sink{
		pipe: pipe,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			BatchSize:    defaultBatchSize,
			BatchTimeout: defaultBatchTimeout,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (s *Sink) WriteParameters(p wire.GlomParameters) error {
	value, err := json.Marshal(map[string]any{
		"pipe":              s.pipe,
		"kind":              "glom_parameters",
		"building":          p.Building,
		"coincidence_ticks": p.CoincidenceTicks,
		"timestamp_policy":  p.TimestampPolicy,
		"source_id":         p.SourceID,
	})
	if err != nil {
		return fmt.Errorf("kafka sink: marshal parameters: %w", err)
	}
	return s.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(s.pipe),
		Value: value,
	})
}

func (s *Sink) WriteComposite(item wire.CompositeItem) error {
	value, err := json.Marshal(map[string]any{
		"pipe":        s.pipe,
		"kind":        "composite",
		"type":        item.Type,
		"timestamp":   item.Timestamp,
		"source_id":   item.SourceID,
		"num_children": len(item.Children),
	})
	if err != nil {
		return fmt.Errorf("kafka sink: marshal composite: %w", err)
	}
	return s.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(fmt.Sprintf("%s:%d", s.pipe, item.SourceID)),
		Value: value,
	})
}

func (s *Sink) Close() error {
	return s.writer.Close()
}
