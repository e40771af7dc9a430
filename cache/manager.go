package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nao1215/sheetsql/domain/model"
)

// TierStats counts the traffic of one tier
type TierStats struct {
	Name          string
	Hits          int64
	Misses        int64
	Puts          int64
	Invalidations int64
	Errors        int64
}

type tierCounters struct {
	hits, misses, puts, invalidations, errors atomic.Int64
}

// Manager walks the tiers fastest first. Reads and writes degrade on tier
// errors; invalidation errors are returned.
type Manager struct {
	tiers    []Tier
	counters []*tierCounters
	logger   *zap.Logger
}

// NewManager composes tiers, fastest first
func NewManager(logger *zap.Logger, tiers ...Tier) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	counters := make([]*tierCounters, len(tiers))
	for i := range counters {
		counters[i] = &tierCounters{}
	}
	return &Manager{tiers: tiers, counters: counters, logger: logger}
}

// NewMemoryOnly builds a manager whose three tiers live in process memory:
// an LRU, a second larger LRU standing in for the shared tier, and a durable
// tier over a MemoryStore.
func NewMemoryOnly(logger *zap.Logger) *Manager {
	return NewManager(logger,
		NewMemoryTier("memory", DefaultMemorySize, DefaultMemoryTTL),
		NewMemoryTier("shared-memory", DefaultMemorySize*10, DefaultSharedTTL),
		NewDurableTier(NewMemoryStore(), DurableTTL(DefaultSharedTTL), CompressionZstd),
	)
}

// Tiers returns the tiers in lookup order
func (m *Manager) Tiers() []Tier {
	return append([]Tier(nil), m.tiers...)
}

// Get looks the key up tier by tier. A hit below the first tier is copied
// into every faster tier. tier is the index of the tier that answered.
func (m *Manager) Get(ctx context.Context, key Key) (result *model.QueryResult, tier int, ok bool) {
	for i, t := range m.tiers {
		e, hit, err := t.Get(ctx, key)
		if err != nil {
			m.counters[i].errors.Add(1)
			m.logger.Warn("cache tier read failed",
				zap.String("tier", t.Name()), zap.String("key", key.String()), zap.Error(err))
		}
		if !hit {
			m.counters[i].misses.Add(1)
			continue
		}
		m.counters[i].hits.Add(1)
		for j := 0; j < i; j++ {
			m.put(ctx, j, key, e.Result)
		}
		return e.Result, i, true
	}
	return nil, -1, false
}

// Put stores a result in every tier
func (m *Manager) Put(ctx context.Context, key Key, result *model.QueryResult) {
	for i := range m.tiers {
		m.put(ctx, i, key, result)
	}
}

func (m *Manager) put(ctx context.Context, i int, key Key, result *model.QueryResult) {
	if err := m.tiers[i].Put(ctx, key, result); err != nil {
		m.counters[i].errors.Add(1)
		m.logger.Warn("cache tier write failed",
			zap.String("tier", m.tiers[i].Name()), zap.String("key", key.String()), zap.Error(err))
		return
	}
	m.counters[i].puts.Add(1)
}

// Invalidate removes the scope from every tier. Every tier is attempted; the
// first error is returned.
func (m *Manager) Invalidate(ctx context.Context, scope Scope) error {
	var first error
	for i, t := range m.tiers {
		if err := t.Invalidate(ctx, scope); err != nil {
			m.counters[i].errors.Add(1)
			if first == nil {
				first = fmt.Errorf("invalidate %s in %s tier: %w", scope, t.Name(), err)
			}
			continue
		}
		m.counters[i].invalidations.Add(1)
	}
	if first == nil {
		m.logger.Debug("cache scope invalidated", zap.Stringer("scope", scope))
	}
	return first
}

// InvalidateAll empties every tier. The first error is returned.
func (m *Manager) InvalidateAll(ctx context.Context) error {
	var first error
	for i, t := range m.tiers {
		if err := t.InvalidateAll(ctx); err != nil {
			m.counters[i].errors.Add(1)
			if first == nil {
				first = fmt.Errorf("clear %s tier: %w", t.Name(), err)
			}
			continue
		}
		m.counters[i].invalidations.Add(1)
	}
	return first
}

// Stats returns a snapshot of the per-tier counters
func (m *Manager) Stats() []TierStats {
	out := make([]TierStats, len(m.tiers))
	for i, t := range m.tiers {
		c := m.counters[i]
		out[i] = TierStats{
			Name:          t.Name(),
			Hits:          c.hits.Load(),
			Misses:        c.misses.Load(),
			Puts:          c.puts.Load(),
			Invalidations: c.invalidations.Load(),
			Errors:        c.errors.Load(),
		}
	}
	return out
}

// Close releases tiers that hold connections
func (m *Manager) Close() error {
	var errs []error
	for _, t := range m.tiers {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
