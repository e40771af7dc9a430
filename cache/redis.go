package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/nao1215/sheetsql/domain/model"
)

// Redis key layout
const (
	RedisKeyPrefix   = "sheetsql:cache:"
	RedisScopePrefix = "sheetsql:scope:"
)

// RedisTier is the shared tier. Results are stored as plain strings under
// RedisKeyPrefix; scope sets list the keys of every workbook and
// (workbook, sheet) so that invalidation never scans the keyspace.
type RedisTier struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisTier wraps a connected client
func NewRedisTier(client redis.UniversalClient, ttl time.Duration) *RedisTier {
	if ttl <= 0 {
		ttl = DefaultSharedTTL
	}
	return &RedisTier{client: client, ttl: ttl}
}

// DialRedis connects to addr and checks the connection
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Name implements Tier
func (r *RedisTier) Name() string { return "redis" }

// TTL returns the expiry applied to stored results
func (r *RedisTier) TTL() time.Duration { return r.ttl }

func workbookScopeKey(workbook string) string {
	return RedisScopePrefix + workbook
}

func sheetScopeKey(workbook, sheet string) string {
	return RedisScopePrefix + workbook + ":" + sheet
}

// Get implements Tier
func (r *RedisTier) Get(ctx context.Context, key Key) (*Entry, bool, error) {
	k := RedisKeyPrefix + key.String()
	var (
		get *redis.StringCmd
		ttl *redis.DurationCmd
	)
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", k, err)
	}
	payload, err := get.Bytes()
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", k, err)
	}
	result := &model.QueryResult{}
	if err := result.UnmarshalBinary(payload); err != nil {
		return nil, false, err
	}
	e := &Entry{Key: key, Result: result}
	if remaining := ttl.Val(); remaining > 0 {
		e.ExpiresAt = time.Now().Add(remaining)
	}
	return e, true, nil
}

// Put implements Tier
func (r *RedisTier) Put(ctx context.Context, key Key, result *model.QueryResult) error {
	payload, err := result.MarshalBinary()
	if err != nil {
		return err
	}
	k := RedisKeyPrefix + key.String()
	scopes := []string{workbookScopeKey(key.Workbook)}
	for _, sheet := range key.Sheets {
		scopes = append(scopes, sheetScopeKey(key.Workbook, sheet))
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, k, payload, r.ttl)
		for _, scope := range scopes {
			pipe.SAdd(ctx, scope, k)
			pipe.Expire(ctx, scope, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", k, err)
	}
	return nil
}

// Invalidate implements Tier
func (r *RedisTier) Invalidate(ctx context.Context, scope Scope) error {
	setKey := workbookScopeKey(scope.Workbook)
	if scope.Sheet != "" {
		setKey = sheetScopeKey(scope.Workbook, scope.Sheet)
	}
	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("redis invalidate %s: %w", scope, err)
	}
	if scope.Sheet == "" {
		// the per-sheet sets of the workbook go too
		sheetSets, err := r.scan(ctx, setKey+":*")
		if err != nil {
			return err
		}
		members = append(members, sheetSets...)
	}
	members = append(members, setKey)
	if err := r.client.Del(ctx, members...).Err(); err != nil {
		return fmt.Errorf("redis invalidate %s: %w", scope, err)
	}
	return nil
}

// InvalidateAll implements Tier
func (r *RedisTier) InvalidateAll(ctx context.Context) error {
	for _, pattern := range []string{RedisKeyPrefix + "*", RedisScopePrefix + "*"} {
		keys, err := r.scan(ctx, pattern)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			continue
		}
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis invalidate all: %w", err)
		}
	}
	return nil
}

func (r *RedisTier) scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return keys, nil
}

// Close closes the client
func (r *RedisTier) Close() error {
	return r.client.Close()
}
