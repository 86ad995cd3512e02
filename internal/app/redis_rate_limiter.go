package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window key is created with its expiry before the first increment, so a
// crash between the two calls can never leave an immortal counter behind.
var smsWindowScript = redis.NewScript(`
redis.call("SET", KEYS[1], 0, "NX", "PX", ARGV[1])
local hits = redis.call("INCR", KEYS[1])
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 0 then
  remaining = tonumber(ARGV[1])
end
return {hits, remaining}
`)

// RedisSMSRateLimiter counts SMS dispatches per subject in fixed windows
// shared across all service instances.
type RedisSMSRateLimiter struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

func NewRedisSMSRateLimiter(client redis.UniversalClient, prefix string) *RedisSMSRateLimiter {
	cleaned := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if cleaned == "" {
		cleaned = "lumapay:rate_limit"
	}
	return &RedisSMSRateLimiter{rdb: client, keyPrefix: cleaned}
}

// ConsumeRateLimit records one dispatch attempt for the subject and returns
// the attempt count within the current window plus the seconds until the
// window resets. Misconfigured inputs (no client, non-positive limit or
// window, blank scope or subject) disable limiting rather than failing the
// caller.
func (r *RedisSMSRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if r == nil || r.rdb == nil || limit <= 0 || window <= 0 {
		return 0, 0, nil
	}
	scope = strings.TrimSpace(scope)
	subject = strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}

	windowMs := window.Milliseconds()
	if windowMs < 1000 {
		windowMs = 1000
	}

	key := r.keyPrefix + ":" + scope + ":" + subject
	raw, err := smsWindowScript.Run(ctx, r.rdb, []string{key}, windowMs).Result()
	if err != nil {
		return 0, 0, err
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) != 2 {
		return 0, 0, fmt.Errorf("unexpected limiter reply shape: %T", raw)
	}
	hits, err := replyInt64(reply[0])
	if err != nil {
		return 0, 0, fmt.Errorf("limiter count: %w", err)
	}
	remainingMs, err := replyInt64(reply[1])
	if err != nil {
		return int(hits), 0, fmt.Errorf("limiter ttl: %w", err)
	}
	if remainingMs < 0 {
		remainingMs = windowMs
	}

	// Round the reset up to whole seconds; a Retry-After of zero invites an
	// immediate retry that would still be inside the window.
	retryAfter := int((remainingMs + 999) / 1000)
	if retryAfter < 1 {
		retryAfter = 1
	}
	return int(hits), retryAfter, nil
}

func replyInt64(value interface{}) (int64, error) {
	number, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("got %T, want int64", value)
	}
	return number, nil
}
