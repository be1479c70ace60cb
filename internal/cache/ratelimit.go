package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket is full again.
	ResetAt time.Time
	// RetryAfter is zero for allowed requests.
	RetryAfter time.Duration
}

// tokenBucket refills at ARGV[1] tokens per second up to ARGV[2] and takes one
// token per call. Times are in milliseconds. It returns
// {allowed, retry_after_ms, remaining, refill_ms}.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'ts')
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now
if now > ts then
	tokens = math.min(burst, tokens + (now - ts) * rate / 1000)
end

local allowed = 0
local retry = 0
if tokens >= 1 then
	tokens = tokens - 1
	allowed = 1
else
	retry = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)

return {allowed, retry, math.floor(tokens), math.ceil((burst - tokens) * 1000 / rate)}
`)

// CheckIPRateLimit takes one token from the bucket of ip within scope.
// Scopes keep independent buckets, e.g. "auth" for the public account routes.
func (c *Cache) CheckIPRateLimit(ctx context.Context, scope, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rate limit: rate %d and burst %d must be positive", ratePerSecond, burst)
	}

	now := time.Now()
	res, err := tokenBucket.Run(ctx, c.client,
		[]string{rateLimitKey(scope, ip)},
		ratePerSecond, burst, now.UnixMilli(), bucketTTL(ratePerSecond, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
		RetryAfter: time.Duration(res[1]) * time.Millisecond,
	}, nil
}

// rateLimitKey hashes ip so raw client addresses are never stored in Redis.
func rateLimitKey(scope, ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return rateLimitPrefix + scope + ":" + hex.EncodeToString(sum[:8])
}

// bucketTTL keeps a bucket until it would be full again, plus a second of slack.
// A missing key and a full bucket behave the same.
func bucketTTL(ratePerSecond, burst int) time.Duration {
	refill := time.Duration(burst) * time.Second / time.Duration(ratePerSecond)
	return refill + time.Second
}
