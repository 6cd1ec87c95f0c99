package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a Redis ZSET sliding-window limiter (§4.9), grounded on the
// same sorted-set-with-score-cutoff algorithm as gomind's Redis rate
// limiter, but at the spec's epoch-second resolution rather than
// microseconds, and fail-open (rather than fail-closed) on backend errors.
type RateLimiter struct {
	rdb *redis.Client
	log *slog.Logger
}

// NewRateLimiter wraps an existing Redis client.
func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, log: slog.With("component", "ratelimiter")}
}

// Decision is the outcome of an Allow call.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter int // seconds, only meaningful when !Allowed
}

// Allow implements §4.9's sliding-window algorithm for category/id under
// limit L over window:
//  1. now = current epoch seconds.
//  2. remove entries with score < now - window.
//  3. n = cardinality of the remaining set.
//  4. if n >= L -> denied, retry-after = window - (now - oldest_score).
//  5. else add (now, now) and accept; remaining = L - n - 1.
//
// On any Redis error, fails open: the request is accepted and a warning is
// logged (§4.9 "If the cache backend is unavailable, fail open").
func (r *RateLimiter) Allow(ctx context.Context, cat RateCategory, id string, limit int, window time.Duration) Decision {
	k := rateKey(cat, id)
	now := time.Now().Unix()
	windowStart := now - int64(window.Seconds())

	if err := r.rdb.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(windowStart, 10)).Err(); err != nil {
		r.log.Warn("rate limiter cleanup failed, failing open", "category", cat, "id", id, "error", err)
		return Decision{Allowed: true, Remaining: limit}
	}

	n, err := r.rdb.ZCard(ctx, k).Result()
	if err != nil {
		r.log.Warn("rate limiter count failed, failing open", "category", cat, "id", id, "error", err)
		return Decision{Allowed: true, Remaining: limit}
	}

	if int(n) >= limit {
		oldest, err := r.oldestScore(ctx, k)
		retryAfter := int(window.Seconds())
		if err == nil {
			retryAfter = int(window.Seconds()) - int(now-oldest)
		}
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{Allowed: false, Remaining: 0, RetryAfter: retryAfter}
	}

	member := fmt.Sprintf("%d-%d", now, n)
	if err := r.rdb.ZAdd(ctx, k, redis.Z{Score: float64(now), Member: member}).Err(); err != nil {
		r.log.Warn("rate limiter add failed, failing open", "category", cat, "id", id, "error", err)
		return Decision{Allowed: true, Remaining: limit}
	}
	r.rdb.Expire(ctx, k, 2*window)

	return Decision{Allowed: true, Remaining: limit - int(n) - 1}
}

func (r *RateLimiter) oldestScore(ctx context.Context, key string) (int64, error) {
	vals, err := r.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
	if err != nil {
		return 0, err
	}
	if len(vals) == 0 {
		return 0, fmt.Errorf("no entries")
	}
	return int64(vals[0].Score), nil
}

// Reset clears the limiter state for a category/id, for tests and admin use.
func (r *RateLimiter) Reset(ctx context.Context, cat RateCategory, id string) error {
	return r.rdb.Del(ctx, rateKey(cat, id)).Err()
}
