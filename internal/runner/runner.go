// Package runner wires one pipe's ring-source adapter, orderer, and
// glommer into a running pipeline, following the capture/process
// goroutine split in the teacher's internal/pipeline.Pipeline (a
// dedicated capture loop feeding a buffered channel that a single
// owning loop drains) generalized from packet processing to the
// orderer's ingest-or-flush-or-stop operation set per SPEC_FULL.md §5.
package runner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"daqevb.dev/evbcore/internal/glom"
	"daqevb.dev/evbcore/internal/log"
	"daqevb.dev/evbcore/internal/metrics"
	"daqevb.dev/evbcore/internal/ringsource"
	"daqevb.dev/evbcore/internal/sink"
	"daqevb.dev/evbcore/pkg/evb/fragment"
	"daqevb.dev/evbcore/pkg/evb/orderer"
)

const (
	defaultPollTimeout   = 200 * time.Millisecond
	defaultFlushInterval = 1 * time.Second
	defaultBatchBuffer   = 64
)

// Config wires the components one Pipe owns. The caller (cmd/run.go)
// constructs these from internal/config.
type Config struct {
	Name          string
	Adapter       *ringsource.Adapter
	Orderer       *orderer.Orderer
	Glommer       *glom.Glommer
	Sink          sink.Writer
	PreDeclare    []uint32
	OneShot       bool
	PollTimeout   time.Duration
	FlushInterval time.Duration
}

// Pipe runs one source->orderer->glommer->sink pipeline as two
// goroutines: a capture loop that only talks to the adapter, and the
// orderer task, which is the sole owner of the Orderer value.
type Pipe struct {
	cfg     Config
	batches chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// err is written only by captureLoop, before it cancels ctx and
	// returns; Stop's wg.Wait() happens-after that write, so Err is
	// safe to call once Stop has returned.
	err error
}

// New returns a Pipe ready to Start. It pre-declares cfg.PreDeclare
// source ids on the orderer and registers the glommer as an event
// observer plus logging observers for partial barriers and late data.
func New(cfg Config) *Pipe {
	if cfg.PollTimeout == 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = defaultFlushInterval
	}

	for _, id := range cfg.PreDeclare {
		cfg.Orderer.PreDeclareSource(id)
	}

	_ = cfg.Orderer.AddObserver(orderer.EventObserverKind, orderer.EventObserverFunc(cfg.Glommer.OnEvent))
	_ = cfg.Orderer.AddObserver(orderer.EventObserverKind, orderer.EventObserverFunc(
		func(batch []*fragment.Fragment) {
			metrics.BuiltEventsTotal.WithLabelValues(cfg.Name).Inc()
		}))
	_ = cfg.Orderer.AddObserver(orderer.CompleteBarrierObserverKind, orderer.CompleteBarrierObserverFunc(
		func(present []orderer.BarrierEntry) {
			metrics.CompleteBarriersTotal.WithLabelValues(cfg.Name).Inc()
		}))
	_ = cfg.Orderer.AddObserver(orderer.PartialBarrierObserverKind, orderer.PartialBarrierObserverFunc(
		func(present []orderer.BarrierEntry, missing []uint32) {
			metrics.PartialBarriersTotal.WithLabelValues(cfg.Name).Inc()
			log.GetLogger().
				WithField("pipe", cfg.Name).
				WithField("present", len(present)).
				WithField("missing", missing).
				Warn("partial barrier emitted")
		}))
	_ = cfg.Orderer.AddObserver(orderer.LateDataObserverKind, orderer.LateDataObserverFunc(
		func(f *fragment.Fragment, newest uint64) {
			metrics.LateFragmentsTotal.WithLabelValues(cfg.Name, strconv.FormatUint(uint64(f.SourceID), 10)).Inc()
			log.GetLogger().
				WithField("pipe", cfg.Name).
				WithField("source_id", f.SourceID).
				WithField("timestamp", f.Timestamp).
				WithField("newest", newest).
				Warn("late data received")
		}))

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipe{
		cfg:     cfg,
		batches: make(chan []byte, defaultBatchBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the capture and orderer-task goroutines.
func (p *Pipe) Start() {
	p.wg.Add(2)
	go p.captureLoop()
	go p.ordererLoop()
}

// Stop signals both goroutines to drain and exit, then closes the sink.
func (p *Pipe) Stop() error {
	p.cancel()
	p.wg.Wait()
	return p.cfg.Sink.Close()
}

// Done reports whether the pipe has stopped itself (one-shot mode
// completed, or a fatal adapter error; see Err) or Stop was called.
func (p *Pipe) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Err returns the fatal adapter error that stopped the pipe, if any.
// Only meaningful after Stop has returned.
func (p *Pipe) Err() error {
	return p.err
}

func (p *Pipe) captureLoop() {
	defer p.wg.Done()
	defer close(p.batches)

	for {
		if p.ctx.Err() != nil {
			return
		}
		if !p.cfg.Adapter.DataReady(p.cfg.PollTimeout) {
			if p.cfg.OneShot && p.cfg.Adapter.OneshotComplete() {
				p.cancel()
				return
			}
			continue
		}

		batch, err := p.cfg.Adapter.GetEvents()
		if err != nil {
			var cfgErr *ringsource.ConfigError
			var transportErr *ringsource.TransportError
			if errors.As(err, &cfgErr) || errors.As(err, &transportErr) {
				log.GetLogger().WithField("pipe", p.cfg.Name).WithError(err).Error("fatal adapter error, stopping pipe")
				p.err = err
				p.cancel()
				return
			}
			log.GetLogger().WithField("pipe", p.cfg.Name).WithError(err).Warn("get events failed")
			continue
		}
		if len(batch) == 0 {
			if p.cfg.OneShot && p.cfg.Adapter.OneshotComplete() {
				p.cancel()
				return
			}
			continue
		}

		select {
		case p.batches <- batch:
		case <-p.ctx.Done():
			return
		}

		if p.cfg.OneShot && p.cfg.Adapter.OneshotComplete() {
			p.cancel()
			return
		}
	}
}

// ordererLoop is the orderer task: the single goroutine that owns
// cfg.Orderer, per SPEC_FULL.md §5. It never exposes the Orderer value
// to any other goroutine — only Statistics() snapshots leave this loop.
func (p *Pipe) ordererLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.cfg.Orderer.Flush()
			p.publishStats()
			return

		case batch, ok := <-p.batches:
			if !ok {
				p.cfg.Orderer.Flush()
				p.publishStats()
				return
			}
			if err := p.cfg.Orderer.AddFragments(batch); err != nil {
				log.GetLogger().WithField("pipe", p.cfg.Name).WithError(err).Warn("dropping malformed batch")
			}
			p.publishStats()

		case <-ticker.C:
			p.cfg.Orderer.FlushQueues(false)
			p.publishStats()
		}
	}
}

func (p *Pipe) publishStats() {
	snap := p.cfg.Orderer.Statistics()
	for _, q := range snap.PerQueue {
		metrics.QueueDepth.WithLabelValues(p.cfg.Name, strconv.FormatUint(uint64(q.SourceID), 10)).Set(float64(q.Depth))
	}
}
