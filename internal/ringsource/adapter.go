package ringsource

import (
	"strconv"
	"time"

	"daqevb.dev/evbcore/internal/log"
	"daqevb.dev/evbcore/internal/metrics"
	"daqevb.dev/evbcore/internal/ratelimit"
	"daqevb.dev/evbcore/internal/wire"
	"daqevb.dev/evbcore/pkg/evb/fragment"
)

// nonMonotonicThreshold is the backward timestamp jump, in ticks, past
// which the adapter logs a warning instead of silently reordering — see
// SPEC_FULL.md §4.E. 2^32 matches the threshold the original transform
// uses for its (differently-signed) skip check.
const nonMonotonicThreshold = uint64(1) << 32

// defaultMaxEventBytes is the soft per-GetEvents byte cap; it grows to
// fit an oversized single item, mirroring CRingSource's max_event.
const defaultMaxEventBytes = 10 * 1024 * 1024

// TimestampExtractor maps a physics-event payload to a per-event
// timestamp. spec.md §6 describes this as "a dynamically-loaded
// callback"; this module has no plugin loader, so callers wire one in
// directly when constructing Config instead of naming one in static
// config. ok false means the payload carries no timestamp the extractor
// could find; the event then gets NULL_TIMESTAMP whatever
// ExpectBodyHeaders says, and the item's own timestamp is not consulted.
type TimestampExtractor func(payload []byte) (ts uint64, ok bool)

// Config configures an Adapter. Field names mirror
// internal/config.RingSourceConfig; cmd/ translates between the two so
// this package stays independent of the viper-loaded config shape.
type Config struct {
	Source             string
	PermittedSourceIDs []uint32
	OneShot            bool
	EndRunCount        uint32
	Timeout            time.Duration
	TickOffset         int64
	WarnSuppressWindow time.Duration

	// ExpectBodyHeaders requires every physics event to carry its own
	// timestamp, either via TimestampExtractor or the item's own
	// body-header field. When true, an event with neither is a fatal
	// ConfigError instead of a silent NULL_TIMESTAMP substitution.
	ExpectBodyHeaders  bool
	TimestampExtractor TimestampExtractor
}

// Adapter pulls raw items from a Transport and reframes them as flat
// wire fragments ready for orderer.AddFragments, tracking one-shot
// end-of-run completion along the way.
type Adapter struct {
	cfg       Config
	transport Transport
	permitted map[uint32]bool
	limiter   *ratelimit.Limiter

	endsSeen      uint32
	lastTimestamp uint64 // fragment.NullTimestamp until the first physics timestamp is seen
	maxEventBytes int
	lastDataAt    time.Time
}

// NewAdapter validates cfg and returns an Adapter ready to initialize.
// A missing or duplicate permitted source id is a ConfigError, matching
// the original's "--ids are required" failure.
func NewAdapter(cfg Config, transport Transport) (*Adapter, error) {
	if len(cfg.PermittedSourceIDs) == 0 {
		return nil, &ConfigError{Msg: "permitted source id list must be non-empty"}
	}
	permitted := make(map[uint32]bool, len(cfg.PermittedSourceIDs))
	for _, id := range cfg.PermittedSourceIDs {
		if permitted[id] {
			return nil, &ConfigError{Msg: "duplicate permitted source id"}
		}
		permitted[id] = true
	}
	return &Adapter{
		cfg:           cfg,
		transport:     transport,
		permitted:     permitted,
		limiter:       ratelimit.New(cfg.WarnSuppressWindow),
		lastTimestamp: fragment.NullTimestamp,
		maxEventBytes: defaultMaxEventBytes,
		lastDataAt:    time.Now(),
	}, nil
}

// DataReady polls the transport with the given timeout.
func (a *Adapter) DataReady(timeout time.Duration) bool {
	return a.transport.DataReady(timeout)
}

// GetEvents pulls raw items up to the adapter's soft byte cap, reframes
// each as a flat fragment, and returns the batch pre-encoded for
// orderer.AddFragments. It returns nil, nil when the transport currently
// has nothing available.
func (a *Adapter) GetEvents() ([]byte, error) {
	var batch []byte
	bytesPackaged := 0

	for bytesPackaged < a.maxEventBytes {
		items, err := a.transport.Read(64)
		if err != nil {
			return nil, &TransportError{Err: err}
		}
		if len(items) == 0 {
			break
		}
		a.lastDataAt = time.Now()
		for _, item := range items {
			if item.Type == wire.EndRun {
				a.endsSeen++
			}

			encoded, n, err := a.reframe(item)
			if err != nil {
				return nil, err
			}
			batch = encoded.apply(batch)
			bytesPackaged += n
		}
	}

	return batch, nil
}

// oneshotComplete reports whether the run should be considered
// finished: either end_run_count END_RUN items have been drained, or
// timeout_secs have elapsed since the last item of any kind arrived.
// The idle branch covers sources (e.g. a ring buffer feeding from a
// detector that stopped without a clean end-of-run) that never emit
// the END_RUN item at all.
func (a *Adapter) oneshotComplete() bool {
	if !a.cfg.OneShot {
		return false
	}
	if a.endsSeen >= a.cfg.EndRunCount {
		return true
	}
	return a.cfg.Timeout > 0 && time.Since(a.lastDataAt) >= a.cfg.Timeout
}

// OneshotComplete exposes oneshotComplete to cmd/run.go.
func (a *Adapter) OneshotComplete() bool {
	return a.oneshotComplete()
}

func (a *Adapter) Close() error {
	return a.transport.Close()
}

type reframed struct {
	timestamp   uint64
	sourceID    uint32
	barrierType uint32
	payload     []byte
}

func (r reframed) apply(dst []byte) []byte {
	return wire.EncodeFlatFragment(dst, r.timestamp, r.sourceID, r.barrierType, r.payload)
}

// reframe validates item's source id, derives its barrier type and
// timestamp, and checks monotonicity, matching
// CRingItemToFragmentTransform::operator() in original_source.
func (a *Adapter) reframe(item wire.RawItem) (reframed, int, error) {
	if !a.permitted[item.SourceID] {
		metrics.FragmentsRejectedTotal.WithLabelValues(a.cfg.Source, labelID(item.SourceID)).Inc()
		return reframed{}, 0, &UnauthorizedSource{SourceID: item.SourceID}
	}

	ts := item.Timestamp
	barrierType := uint32(0)
	if item.IsStateChange() {
		barrierType = item.Type
	} else if item.Type == wire.PhysicsEvent {
		var err error
		ts, err = a.physicsTimestamp(item)
		if err != nil {
			return reframed{}, 0, err
		}
		if ts != fragment.NullTimestamp {
			ts += uint64(a.cfg.TickOffset)
			a.checkMonotonic(item, ts)
			a.lastTimestamp = ts
		}
	}

	metrics.FragmentsIngestedTotal.WithLabelValues(a.cfg.Source, labelID(item.SourceID)).Inc()

	return reframed{
		timestamp:   ts,
		sourceID:    item.SourceID,
		barrierType: barrierType,
		payload:     item.Body,
	}, len(item.Body) + 20, nil
}

// physicsTimestamp resolves a physics-event item's timestamp: the
// extractor callback if one is configured, else the item's own
// body-header timestamp. With neither present, ExpectBodyHeaders decides
// whether that is a fatal ConfigError or a silent NULL_TIMESTAMP
// substitution (spec.md §6).
func (a *Adapter) physicsTimestamp(item wire.RawItem) (uint64, error) {
	if a.cfg.TimestampExtractor != nil {
		if v, ok := a.cfg.TimestampExtractor(item.Body); ok {
			return v, nil
		}
		return fragment.NullTimestamp, nil
	}
	if item.Timestamp != 0 {
		return item.Timestamp, nil
	}
	if a.cfg.ExpectBodyHeaders {
		return 0, &ConfigError{Msg: "physics event has no body-header timestamp and no timestamp_extractor is configured"}
	}
	return fragment.NullTimestamp, nil
}

func (a *Adapter) checkMonotonic(item wire.RawItem, ts uint64) {
	if a.lastTimestamp == fragment.NullTimestamp || ts >= a.lastTimestamp {
		return
	}
	if a.lastTimestamp-ts <= nonMonotonicThreshold {
		return
	}
	metrics.LateFragmentsTotal.WithLabelValues(a.cfg.Source, labelID(item.SourceID)).Inc()
	if !a.limiter.Allow(ratelimit.SourceKey(item.SourceID)) {
		return
	}
	log.GetLogger().
		WithField("source", a.cfg.Source).
		WithField("source_id", item.SourceID).
		WithField("from", a.lastTimestamp).
		WithField("to", ts).
		Warn("non-monotonic timestamp")
}

func labelID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
