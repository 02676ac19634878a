// Package glom implements the glommer: it consumes the time-ordered
// fragment batches the orderer core emits and groups coincident
// fragments into composite items for a downstream sink, following
// CGlom/glomMain.cpp in original_source/main/daq/evbtools/glom.
package glom

import (
	"daqevb.dev/evbcore/internal/log"
	"daqevb.dev/evbcore/internal/metrics"
	"daqevb.dev/evbcore/internal/wire"
	"daqevb.dev/evbcore/pkg/evb/fragment"
)

// Sink receives the glommer's output: the one-time parameters
// announcement and every composite item it builds.
type Sink interface {
	WriteParameters(p wire.GlomParameters) error
	WriteComposite(item wire.CompositeItem) error
}

// Config configures a Glommer; fields mirror spec.md §6's glommer
// option list, loaded under pipes[].glom.
type Config struct {
	PipeName         string
	Building         bool
	CoincidenceTicks uint64
	Policy           uint32 // wire.TimestampPolicyFirst/Last/Average
	SourceID         uint32
}

// Glommer accumulates coincident physics fragments into composite
// items and forwards barrier fragments as composites of their own.
type Glommer struct {
	cfg  Config
	sink Sink

	accumulated []wire.RawItem
	firstTS     uint64
	lastTS      uint64
	sumTS       uint64
	count       uint64

	announced bool
	nesting   int
}

// New returns a Glommer bound to sink. The EVB_GLOM_INFO parameters
// announcement is deferred until the first fragment arrives (see
// process), rather than sent eagerly here, so a Glommer that never
// receives data never writes anything downstream.
func New(cfg Config, sink Sink) *Glommer {
	return &Glommer{cfg: cfg, sink: sink}
}

// Depth returns the current state-change nesting counter — a
// diagnostic only, mirroring the original's stateChangeNesting. It
// does not gate any emitted event.
func (g *Glommer) Depth() int {
	return g.nesting
}

// OnEvent implements orderer.EventObserver: it is the glommer's sole
// entry point, fed one ordered batch at a time by the orderer task.
// Observers must not throw (SPEC_FULL.md §7), so a sink failure is
// logged here rather than propagated.
func (g *Glommer) OnEvent(batch []*fragment.Fragment) {
	for _, f := range batch {
		if err := g.process(f); err != nil {
			log.GetLogger().WithField("pipe", g.cfg.PipeName).WithError(err).Error("glom: sink write failed")
		}
	}
}

func (g *Glommer) process(f *fragment.Fragment) error {
	if !g.announced {
		if err := g.sink.WriteParameters(wire.GlomParameters{
			Building:         g.cfg.Building,
			CoincidenceTicks: g.cfg.CoincidenceTicks,
			TimestampPolicy:  g.cfg.Policy,
			SourceID:         g.cfg.SourceID,
		}); err != nil {
			return err
		}
		g.announced = true
	}

	if !g.cfg.Building {
		return g.emitSingleton(f)
	}

	if f.IsBarrier() {
		if err := g.flush(); err != nil {
			return err
		}
		return g.emitBarrier(f)
	}

	if len(g.accumulated) == 0 {
		g.startAccumulation(f)
		return nil
	}

	if f.Timestamp-g.firstTS > g.cfg.CoincidenceTicks {
		if err := g.flush(); err != nil {
			return err
		}
		g.startAccumulation(f)
		return nil
	}

	g.appendToAccumulation(f)
	return nil
}

func (g *Glommer) startAccumulation(f *fragment.Fragment) {
	g.firstTS = f.Timestamp
	g.lastTS = f.Timestamp
	g.sumTS = f.Timestamp
	g.count = 1
	g.accumulated = []wire.RawItem{rawItemFromFragment(f)}
}

func (g *Glommer) appendToAccumulation(f *fragment.Fragment) {
	g.lastTS = f.Timestamp
	g.sumTS += f.Timestamp
	g.count++
	g.accumulated = append(g.accumulated, rawItemFromFragment(f))
}

// flush writes the accumulated physics fragments as one composite item
// and resets the accumulator. A noop if nothing is accumulated.
func (g *Glommer) flush() error {
	if len(g.accumulated) == 0 {
		return nil
	}
	ts := g.eventTimestamp()
	item := wire.CompositeItem{
		Type:      wire.CompositeBit | wire.PhysicsEvent,
		Timestamp: ts,
		SourceID:  g.cfg.SourceID,
		Children:  g.accumulated,
	}
	if err := g.sink.WriteComposite(item); err != nil {
		return err
	}
	metrics.CompositesEmittedTotal.WithLabelValues(g.cfg.PipeName).Inc()

	g.accumulated = nil
	g.firstTS, g.lastTS, g.sumTS, g.count = 0, 0, 0, 0
	return nil
}

func (g *Glommer) emitSingleton(f *fragment.Fragment) error {
	item := g.compositeFor(f)
	if err := g.sink.WriteComposite(item); err != nil {
		return err
	}
	g.trackNesting(item.Type)
	metrics.CompositesEmittedTotal.WithLabelValues(g.cfg.PipeName).Inc()
	return nil
}

func (g *Glommer) emitBarrier(f *fragment.Fragment) error {
	item := g.compositeFor(f)
	if err := g.sink.WriteComposite(item); err != nil {
		return err
	}
	g.trackNesting(item.Type)
	metrics.CompositesEmittedTotal.WithLabelValues(g.cfg.PipeName).Inc()
	return nil
}

func (g *Glommer) compositeFor(f *fragment.Fragment) wire.CompositeItem {
	inner := wire.PhysicsEvent
	if f.IsBarrier() {
		inner = f.BarrierType
	}
	return wire.CompositeItem{
		Type:      wire.CompositeBit | inner,
		Timestamp: f.Timestamp,
		SourceID:  f.SourceID,
		Children:  []wire.RawItem{rawItemFromFragment(f)},
	}
}

// trackNesting mirrors the original's read-only stateChangeNesting
// bookkeeping: it resets to zero on an abnormal end-run and otherwise
// tracks begin/end-run pairing, purely for diagnostic logging.
func (g *Glommer) trackNesting(compositeType uint32) {
	switch compositeType {
	case wire.CompositeBit | wire.BeginRun:
		g.nesting++
	case wire.CompositeBit | wire.EndRun:
		g.nesting--
	case wire.CompositeBit | wire.AbnormalEndrun:
		g.nesting = 0
	}
	metrics.GlomDepth.WithLabelValues(g.cfg.PipeName).Set(float64(g.nesting))
}

func (g *Glommer) eventTimestamp() uint64 {
	switch g.cfg.Policy {
	case wire.TimestampPolicyLast:
		return g.lastTS
	case wire.TimestampPolicyAverage:
		if g.count == 0 {
			return g.firstTS
		}
		return g.sumTS / g.count
	default:
		return g.firstTS
	}
}

func rawItemFromFragment(f *fragment.Fragment) wire.RawItem {
	typ := wire.PhysicsEvent
	if f.IsBarrier() {
		typ = f.BarrierType
	}
	return wire.RawItem{
		Type:      typ,
		SourceID:  f.SourceID,
		Timestamp: f.Timestamp,
		Body:      f.Payload,
	}
}

