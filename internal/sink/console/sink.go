// Package console implements a sink.Writer that logs composite items
// instead of shipping them anywhere — useful for the demo binary and
// for tests that don't want a Kafka dependency.
package console

import (
	"daqevb.dev/evbcore/internal/log"
	"daqevb.dev/evbcore/internal/wire"
)

// Sink writes every item it receives as a structured log line.
type Sink struct {
	pipe string
}

// New returns a console Sink labelled with pipe for its log lines.
func New(pipe string) *Sink {
	return &Sink{pipe: pipe}
}

func (s *Sink) WriteParameters(p wire.GlomParameters) error {
	log.GetLogger().
		WithField("pipe", s.pipe).
		WithField("building", p.Building).
		WithField("dt", p.CoincidenceTicks).
		WithField("policy", p.TimestampPolicy).
		Info("glom parameters")
	return nil
}

func (s *Sink) WriteComposite(item wire.CompositeItem) error {
	log.GetLogger().
		WithField("pipe", s.pipe).
		WithField("type", item.Type).
		WithField("source_id", item.SourceID).
		WithField("timestamp", item.Timestamp).
		WithField("children", len(item.Children)).
		Info("composite item")
	return nil
}

func (s *Sink) Close() error {
	return nil
}
