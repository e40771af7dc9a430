package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nao1215/sheetsql/domain/model"
)

// Record is what a DurableStore keeps per key
type Record struct {
	Payload   []byte
	HitCount  int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// DurableStore is the key -> serialized result store behind the durable tier.
// Get counts a hit on the stored record.
type DurableStore interface {
	Get(ctx context.Context, key string) (Record, bool, error)
	Put(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)
}

// DurableTier is the persisted tier
type DurableTier struct {
	store       DurableStore
	ttl         time.Duration
	compression Compression
	now         func() time.Time
}

// NewDurableTier creates the durable tier. ttl is normally DurableTTL of the
// shared tier TTL.
func NewDurableTier(store DurableStore, ttl time.Duration, compression Compression) *DurableTier {
	if ttl <= 0 {
		ttl = DurableTTL(DefaultSharedTTL)
	}
	if compression == "" {
		compression = CompressionZstd
	}
	return &DurableTier{store: store, ttl: ttl, compression: compression, now: time.Now}
}

// Name implements Tier
func (d *DurableTier) Name() string { return "durable" }

// Get implements Tier. Expired records are deleted on sight.
func (d *DurableTier) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	k := key.String()
	rec, ok, err := d.store.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	e := &Entry{Key: key, HitCount: rec.HitCount, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}
	if e.Expired(d.now()) {
		if err := d.store.Delete(ctx, k); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	data, err := decompress(rec.Payload)
	if err != nil {
		return nil, false, err
	}
	e.Result = &model.QueryResult{}
	if err := e.Result.UnmarshalBinary(data); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

// Put implements Tier
func (d *DurableTier) Put(ctx context.Context, key Key, result *model.QueryResult) error {
	data, err := result.MarshalBinary()
	if err != nil {
		return err
	}
	payload, err := compress(d.compression, data)
	if err != nil {
		return err
	}
	now := d.now()
	return d.store.Put(ctx, key.String(), Record{Payload: payload, CreatedAt: now, ExpiresAt: now.Add(d.ttl)})
}

// Invalidate implements Tier
func (d *DurableTier) Invalidate(ctx context.Context, scope Scope) error {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		return err
	}
	var doomed []string
	for _, k := range keys {
		parsed, err := ParseKey(k)
		if err != nil {
			// foreign keys are dropped with everything else
			doomed = append(doomed, k)
			continue
		}
		if scope.Contains(parsed) {
			doomed = append(doomed, k)
		}
	}
	if len(doomed) == 0 {
		return nil
	}
	return d.store.Delete(ctx, doomed...)
}

// InvalidateAll implements Tier
func (d *DurableTier) InvalidateAll(ctx context.Context) error {
	keys, err := d.store.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return d.store.Delete(ctx, keys...)
}

// Close closes the store when it holds resources
func (d *DurableTier) Close() error {
	if c, ok := d.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// MemoryStore is an in-memory DurableStore
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get implements DurableStore
func (s *MemoryStore) Get(_ context.Context, key string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, false, nil
	}
	rec.HitCount++
	s.records[key] = rec
	return rec, true, nil
}

// Put implements DurableStore
func (s *MemoryStore) Put(_ context.Context, key string, rec Record) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrMalformedKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Payload = append([]byte(nil), rec.Payload...)
	s.records[key] = rec
	return nil
}

// Delete implements DurableStore
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.records, k)
	}
	return nil
}

// Keys implements DurableStore
func (s *MemoryStore) Keys(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
