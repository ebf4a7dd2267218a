package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// RedisDedupLedger is the shared "already notified" record. SetNX with TTL
// gives the atomic insert-if-absent the dedup contract needs; Redis expiry
// replaces manual pruning.
type RedisDedupLedger struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDedupLedger(rdb *redis.Client, ttl time.Duration) *RedisDedupLedger {
	return &RedisDedupLedger{rdb: rdb, ttl: ttl}
}

func (l *RedisDedupLedger) FirstSeen(ctx context.Context, key string) (bool, error) {
	return l.rdb.SetNX(ctx, "dedup:"+key, "1", l.ttl).Result()
}

var _ usecase.DedupLedger = (*RedisDedupLedger)(nil)
