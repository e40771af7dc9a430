package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/nao1215/sheetsql/domain/model"
)

// MemoryTier is a process-local LRU with per-entry expiry
type MemoryTier struct {
	name string
	ttl  time.Duration
	lru  *expirable.LRU[string, *Entry]
	now  func() time.Time
}

// NewMemoryTier creates a memory tier holding at most size entries for ttl.
func NewMemoryTier(name string, size int, ttl time.Duration) *MemoryTier {
	if size <= 0 {
		size = DefaultMemorySize
	}
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	return &MemoryTier{
		name: name,
		ttl:  ttl,
		lru:  expirable.NewLRU[string, *Entry](size, nil, ttl),
		now:  time.Now,
	}
}

// Name implements Tier
func (m *MemoryTier) Name() string { return m.name }

// Len returns the number of live entries
func (m *MemoryTier) Len() int { return m.lru.Len() }

// Get implements Tier
func (m *MemoryTier) Get(_ context.Context, key Key) (*Entry, bool, error) {
	k := key.String()
	e, ok := m.lru.Get(k)
	if !ok {
		return nil, false, nil
	}
	if e.Expired(m.now()) {
		m.lru.Remove(k)
		return nil, false, nil
	}
	return e, true, nil
}

// Put implements Tier
func (m *MemoryTier) Put(_ context.Context, key Key, result *model.QueryResult) error {
	now := m.now()
	m.lru.Add(key.String(), &Entry{
		Key:       key,
		Result:    result,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	})
	return nil
}

// Invalidate implements Tier
func (m *MemoryTier) Invalidate(_ context.Context, scope Scope) error {
	for _, k := range m.lru.Keys() {
		e, ok := m.lru.Peek(k)
		if ok && scope.Contains(e.Key) {
			m.lru.Remove(k)
		}
	}
	return nil
}

// InvalidateAll implements Tier
func (m *MemoryTier) InvalidateAll(context.Context) error {
	m.lru.Purge()
	return nil
}
