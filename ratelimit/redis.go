package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/danwin47-sys/ocrflow/observability"
)

// RedisSlidingWindow keeps the trailing window in a redis sorted set per
// client, so several service instances share one admission budget. Entries
// are scored by submission time in nanoseconds; members are opaque unique
// ids. The check and the record are separate round trips, so concurrent
// calls for one client can briefly overshoot the limit. That is acceptable
// for load shedding.
//
// Redis failures fail open: an unreachable limiter must not take job
// submission down with it.
type RedisSlidingWindow struct {
	rdb    *redis.Client
	limit  int
	window time.Duration
	prefix string
	log    observability.Logger
	now    func() time.Time
}

// NewRedisSlidingWindow creates a redis-backed limiter. keyPrefix namespaces
// the sorted sets (e.g. "ocrflow:rl:"); empty selects "ocrflow:rl:".
func NewRedisSlidingWindow(rdb *redis.Client, limit int, window time.Duration, keyPrefix string, log observability.Logger) *RedisSlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	if keyPrefix == "" {
		keyPrefix = "ocrflow:rl:"
	}
	if log == nil {
		log = observability.NopLogger{}
	}
	return &RedisSlidingWindow{
		rdb:    rdb,
		limit:  limit,
		window: window,
		prefix: keyPrefix,
		log:    log,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (r *RedisSlidingWindow) Allow(ctx context.Context, clientID string) bool {
	now := r.now()
	key := r.prefix + clientID
	cutoff := strconv.FormatInt(now.Add(-r.window).UnixNano(), 10)

	pipe := r.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", cutoff)
	card := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Warn("rate limit check failed, admitting",
			observability.String("client", clientID),
			observability.Error("err", err))
		return true
	}
	if card.Val() >= int64(r.limit) {
		return false
	}

	record := r.rdb.TxPipeline()
	record.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: uuid.NewString(),
	})
	record.Expire(ctx, key, r.window)
	if _, err := record.Exec(ctx); err != nil {
		r.log.Warn("rate limit record failed",
			observability.String("client", clientID),
			observability.Error("err", err))
	}
	return true
}
