package workingmemory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend is the at-scale Backend swap-in: one hash per entry plus a
// sorted set (score = insertion sequence) for FIFO eviction, mirroring the
// session-plus-index pattern Redis-backed session stores use.
type RedisBackend struct {
	client     *redis.Client
	logger     *slog.Logger
	keyPrefix  string
	indexKey   string
	maxEntries int
	maxTokens  int
	seq        int64
}

func entryKey(prefix, id string) string { return prefix + "entry:" + id }

// NewRedisBackend connects to addr (a redis:// URL) and returns a
// RedisBackend bounded by maxEntries/maxTokens; a zero or negative budget
// disables that particular limit.
func NewRedisBackend(addr, keyPrefix string, maxEntries, maxTokens int, logger *slog.Logger) (*RedisBackend, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("workingmemory: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("workingmemory: redis ping: %w", err)
	}

	if keyPrefix == "" {
		keyPrefix = "ccos:workingmemory:"
	}
	return &RedisBackend{
		client:     client,
		logger:     logger,
		keyPrefix:  keyPrefix,
		indexKey:   keyPrefix + "index",
		maxEntries: maxEntries,
		maxTokens:  maxTokens,
	}, nil
}

func (b *RedisBackend) Close() error { return b.client.Close() }

func (b *RedisBackend) Put(e Entry) error {
	if e.ActionID == "" {
		return fmt.Errorf("workingmemory: entry missing action_id")
	}
	ctx := context.Background()
	b.seq++

	fields := map[string]interface{}{
		"action_id":        e.ActionID,
		"kind":             e.Kind,
		"provider":         e.Provider,
		"timestamp_s":      e.TimestampS,
		"summary":          e.Summary,
		"content":          e.Content,
		"plan_id":          e.PlanID,
		"intent_id":        e.IntentID,
		"step_id":          e.StepID,
		"attestation_hash": e.AttestationHash,
		"content_hash":     e.ContentHash,
		"tokens":           e.Tokens,
	}

	pipe := b.client.Pipeline()
	pipe.HSet(ctx, entryKey(b.keyPrefix, e.ActionID), fields)
	pipe.ZAdd(ctx, b.indexKey, redis.Z{Score: float64(b.seq), Member: e.ActionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("workingmemory: redis put: %w", err)
	}
	return b.evict(ctx)
}

func (b *RedisBackend) evict(ctx context.Context) error {
	for {
		count, err := b.client.ZCard(ctx, b.indexKey).Result()
		if err != nil {
			return fmt.Errorf("workingmemory: redis zcard: %w", err)
		}
		overEntries := b.maxEntries > 0 && count > int64(b.maxEntries)
		overTokens := false
		if b.maxTokens > 0 {
			total, err := b.totalTokens(ctx)
			if err != nil {
				return err
			}
			overTokens = total > b.maxTokens
		}
		if !overEntries && !overTokens {
			return nil
		}
		oldest, err := b.client.ZRangeWithScores(ctx, b.indexKey, 0, 0).Result()
		if err != nil {
			return fmt.Errorf("workingmemory: redis range oldest: %w", err)
		}
		if len(oldest) == 0 {
			return nil
		}
		id := oldest[0].Member.(string)
		pipe := b.client.Pipeline()
		pipe.Del(ctx, entryKey(b.keyPrefix, id))
		pipe.ZRem(ctx, b.indexKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("workingmemory: redis evict: %w", err)
		}
		if b.logger != nil {
			b.logger.Debug("workingmemory: evicted entry", "action_id", id)
		}
	}
}

func (b *RedisBackend) totalTokens(ctx context.Context) (int, error) {
	ids, err := b.client.ZRange(ctx, b.indexKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("workingmemory: redis zrange: %w", err)
	}
	total := 0
	for _, id := range ids {
		tokens, err := b.client.HGet(ctx, entryKey(b.keyPrefix, id), "tokens").Int()
		if err != nil && err != redis.Nil {
			return 0, fmt.Errorf("workingmemory: redis hget tokens: %w", err)
		}
		total += tokens
	}
	return total, nil
}

func (b *RedisBackend) Get(id string) (Entry, bool) {
	ctx := context.Background()
	fields, err := b.client.HGetAll(ctx, entryKey(b.keyPrefix, id)).Result()
	if err != nil || len(fields) == 0 {
		return Entry{}, false
	}
	return entryFromFields(id, fields), true
}

func (b *RedisBackend) Delete(id string) error {
	ctx := context.Background()
	pipe := b.client.Pipeline()
	pipe.Del(ctx, entryKey(b.keyPrefix, id))
	pipe.ZRem(ctx, b.indexKey, id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("workingmemory: redis delete: %w", err)
	}
	return nil
}

func (b *RedisBackend) Len() (int, error) {
	ctx := context.Background()
	n, err := b.client.ZCard(ctx, b.indexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("workingmemory: redis zcard: %w", err)
	}
	return int(n), nil
}

func (b *RedisBackend) List() ([]Entry, error) {
	ctx := context.Background()
	ids, err := b.client.ZRange(ctx, b.indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("workingmemory: redis zrange: %w", err)
	}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := b.Get(id); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func entryFromFields(id string, fields map[string]string) Entry {
	ts, _ := strconv.ParseInt(fields["timestamp_s"], 10, 64)
	tokens, _ := strconv.Atoi(fields["tokens"])
	e := Entry{
		ActionID:        id,
		Kind:            fields["kind"],
		Provider:        fields["provider"],
		TimestampS:      ts,
		Summary:         fields["summary"],
		Content:         fields["content"],
		PlanID:          fields["plan_id"],
		IntentID:        fields["intent_id"],
		StepID:          fields["step_id"],
		AttestationHash: fields["attestation_hash"],
		ContentHash:     fields["content_hash"],
		Tokens:          tokens,
	}
	if e.Kind != "" {
		e.Tags = []string{e.Kind}
	}
	return e
}
