package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenScript refills the bucket from elapsed time and takes one token in a
// single atomic eval. KEYS[1] is the bucket hash; ARGV: capacity,
// refill-per-ms, now-ms. Returns 1 if a token was taken, else 0.
const tokenScript = `
local bucket = redis.call('hmget', KEYS[1], 'tokens', 'refilled_at')
local capacity = tonumber(ARGV[1])
local refill_per_ms = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local tokens = tonumber(bucket[1])
local refilled_at = tonumber(bucket[2])
if tokens == nil then
  tokens = capacity
  refilled_at = now
end
local elapsed = now - refilled_at
if elapsed > 0 then
  tokens = math.min(capacity, tokens + elapsed * refill_per_ms)
  refilled_at = now
end
local taken = 0
if tokens >= 1 then
  tokens = tokens - 1
  taken = 1
end
redis.call('hmset', KEYS[1], 'tokens', tokens, 'refilled_at', refilled_at)
redis.call('pexpire', KEYS[1], 120000)
return taken
`

// Limiter is a per-seller token bucket persisted in redis so every process
// syncing a seller draws from the same budget. Capacity equals the
// per-minute connector call limit; refill is continuous.
type Limiter struct {
	client         redis.UniversalClient
	callsPerMinute int
	maxWait        time.Duration
}

func NewLimiter(client redis.UniversalClient, callsPerMinute int, maxWait time.Duration) *Limiter {
	return &Limiter{
		client:         client,
		callsPerMinute: callsPerMinute,
		maxWait:        maxWait,
	}
}

func (l *Limiter) key(sellerID string) string {
	return fmt.Sprintf("ratelimit:%s", sellerID)
}

// TryTake attempts to take one token without waiting.
func (l *Limiter) TryTake(ctx context.Context, sellerID string) (bool, error) {
	refillPerMs := float64(l.callsPerMinute) / float64(time.Minute/time.Millisecond)
	res, err := l.client.Eval(ctx, tokenScript,
		[]string{l.key(sellerID)},
		l.callsPerMinute, refillPerMs, time.Now().UnixMilli(),
	).Result()
	if err != nil {
		return false, err
	}
	return res == int64(1), nil
}

// Take blocks until a token is available or the bounded wait elapses. The
// wait is short by design: a starved pass should fail loudly rather than
// stretch a sync cycle indefinitely.
func (l *Limiter) Take(ctx context.Context, sellerID string) error {
	deadline := time.Now().Add(l.maxWait)
	for {
		ok, err := l.TryTake(ctx, sellerID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("rate limit budget exhausted for seller %s", sellerID)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
