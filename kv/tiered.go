package kv

import (
	"context"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/reifydb/reifydb/config"
)

// TierStats reports the approximate byte footprint of each storage tier,
// a metric the facade exposes even though the tier-movement policy
// itself is left to the operator.
type TierStats struct {
	HotBytes  uint64
	WarmBytes uint64
	ColdBytes uint64
}

// TieredBackend composes a mandatory hot-tier Backend with optional
// warm/cold backends, tracking approximate per-tier byte counts and serving
// hot-tier point reads through a fastcache front cache. Movement between
// tiers is not implemented here — that policy is left to the
// implementer; this type only provides the accounting a mover would need.
type TieredBackend struct {
	hot  Backend
	warm Backend
	cold Backend

	readCache *fastcache.Cache

	hotBytes  uint64
	warmBytes uint64
	coldBytes uint64

	hotGauge  prometheus.Gauge
	warmGauge prometheus.Gauge
	coldGauge prometheus.Gauge
}

// NewTieredBackend wires hot (required) plus optional warm/cold backends
// behind one Backend façade, with a fastcache read cache sized for the hot
// tier's expected working set.
func NewTieredBackend(hot, warm, cold Backend, cacheBytes int) *TieredBackend {
	if cacheBytes <= 0 {
		cacheBytes = 32 * 1024 * 1024
	}
	t := &TieredBackend{
		hot:       hot,
		warm:      warm,
		cold:      cold,
		readCache: fastcache.New(cacheBytes),
		hotGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reifydb_storage_hot_tier_bytes",
			Help: "Approximate bytes resident in the hot storage tier.",
		}),
		warmGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reifydb_storage_warm_tier_bytes",
			Help: "Approximate bytes resident in the warm storage tier.",
		}),
		coldGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reifydb_storage_cold_tier_bytes",
			Help: "Approximate bytes resident in the cold storage tier.",
		}),
	}
	return t
}

// Collectors returns the prometheus collectors a caller should register.
func (t *TieredBackend) Collectors() []prometheus.Collector {
	return []prometheus.Collector{t.hotGauge, t.warmGauge, t.coldGauge}
}

// Stats returns the current per-tier byte counts.
func (t *TieredBackend) Stats() TierStats {
	return TierStats{
		HotBytes:  atomic.LoadUint64(&t.hotBytes),
		WarmBytes: atomic.LoadUint64(&t.warmBytes),
		ColdBytes: atomic.LoadUint64(&t.coldBytes),
	}
}

func cacheKey(key []byte, snapshot uint64) []byte {
	out := make([]byte, len(key)+8)
	copy(out, key)
	for i := 0; i < 8; i++ {
		out[len(key)+i] = byte(snapshot >> (8 * uint(i)))
	}
	return out
}

func (t *TieredBackend) Get(ctx context.Context, key []byte, snapshot uint64) ([]byte, bool, error) {
	ck := cacheKey(key, snapshot)
	// Cached entries carry a leading presence byte (1 found, 0 missing) so
	// an empty stored value is not mistaken for a missing one.
	if v, ok := t.readCache.HasGet(nil, ck); ok {
		if len(v) == 0 || v[0] == 0 {
			return nil, false, nil
		}
		return v[1:], true, nil
	}
	value, ok, err := t.hot.Get(ctx, key, snapshot)
	if err != nil {
		return nil, false, err
	}
	if ok {
		t.readCache.Set(ck, append([]byte{1}, value...))
	} else {
		t.readCache.Set(ck, []byte{0})
	}
	return value, ok, nil
}

func (t *TieredBackend) Contains(ctx context.Context, key []byte, snapshot uint64) (bool, error) {
	_, ok, err := t.Get(ctx, key, snapshot)
	return ok, err
}

func (t *TieredBackend) RangeBatch(ctx context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	return t.hot.RangeBatch(ctx, start, end, snapshot, limit)
}

func (t *TieredBackend) RangeRevBatch(ctx context.Context, start, end []byte, snapshot uint64, limit int) ([]Tuple, error) {
	return t.hot.RangeRevBatch(ctx, start, end, snapshot, limit)
}

func (t *TieredBackend) Commit(ctx context.Context, deltas []Delta, version uint64) error {
	if err := t.hot.Commit(ctx, deltas, version); err != nil {
		return err
	}
	var delta uint64
	for _, d := range deltas {
		delta += uint64(len(d.Key) + len(d.Value))
	}
	atomic.AddUint64(&t.hotBytes, delta)
	t.hotGauge.Set(float64(atomic.LoadUint64(&t.hotBytes)))
	return nil
}

func (t *TieredBackend) Close() error {
	var err error
	if e := t.hot.Close(); e != nil {
		err = e
	}
	if t.warm != nil {
		if e := t.warm.Close(); e != nil {
			err = e
		}
	}
	if t.cold != nil {
		if e := t.cold.Close(); e != nil {
			err = e
		}
	}
	return err
}

// Tables implements Compactor by delegating to the hot tier, if it supports
// compaction; tiered backends whose hot tier doesn't simply report no
// compactable tables.
func (t *TieredBackend) Tables() []Table {
	if c, ok := t.hot.(Compactor); ok {
		return c.Tables()
	}
	return nil
}

// Keys implements Compactor by delegating to the hot tier.
func (t *TieredBackend) Keys(ctx context.Context, table Table) ([][]byte, error) {
	if c, ok := t.hot.(Compactor); ok {
		return c.Keys(ctx, table)
	}
	return nil, nil
}

// CompactKey implements Compactor by delegating to the hot tier.
func (t *TieredBackend) CompactKey(ctx context.Context, table Table, key []byte, asOf uint64) (int, error) {
	if c, ok := t.hot.(Compactor); ok {
		return c.CompactKey(ctx, table, key, asOf)
	}
	return 0, nil
}

// PurgeKey implements Compactor by delegating to the hot tier.
func (t *TieredBackend) PurgeKey(ctx context.Context, table Table, key []byte) (int, error) {
	if c, ok := t.hot.(Compactor); ok {
		return c.PurgeKey(ctx, table, key)
	}
	return 0, nil
}

// NoopTierMover is the extension point for a tier-movement policy. Its Run
// never moves anything, and TieredBackend itself has no operation that
// moves data between tiers.
type NoopTierMover struct{}

func (NoopTierMover) Run(context.Context, *TieredBackend) error { return nil }

// BackendForMedium constructs the Backend appropriate for a configured tier
// medium (the configured hot_tier_path enumeration).
func BackendForMedium(medium config.TierMedium, path string, createIfMissing bool) (Backend, error) {
	switch medium {
	case config.TierMemory, config.TierTmpfs:
		return NewMemoryBackend(), nil
	case config.TierFile:
		return OpenFileBackend(path, createIfMissing)
	default:
		return NewMemoryBackend(), nil
	}
}
