package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// MinActionGap is the minimum delay between consecutive approve/reject
// actions by one user.
const MinActionGap = 2 * time.Second

// QuotaBackoff is the hint sent with a strict-quota (429) violation.
const QuotaBackoff = 30 * time.Second

// ActionLimiter enforces the per-user inter-action gap with one
// token-bucket limiter per user.
type ActionLimiter struct {
	mu       sync.Mutex
	users    map[string]*userLimiter
	interval time.Duration
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewActionLimiter creates a limiter with the given minimum gap.
func NewActionLimiter(gap time.Duration) *ActionLimiter {
	if gap <= 0 {
		gap = MinActionGap
	}
	return &ActionLimiter{
		users:    make(map[string]*userLimiter),
		interval: gap,
	}
}

// Allow reports whether the user may act now. When denied it returns the
// wait before the next permitted action.
func (l *ActionLimiter) Allow(userID string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	u, ok := l.users[userID]
	if !ok {
		u = &userLimiter{limiter: rate.NewLimiter(rate.Every(l.interval), 1)}
		l.users[userID] = u
	}
	u.lastSeen = time.Now()

	r := u.limiter.Reserve()
	delay := r.Delay()
	if delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// Cleanup drops limiters idle longer than maxIdle. Callers run this
// periodically; there is no background goroutine to leak.
func (l *ActionLimiter) Cleanup(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := time.Now().Add(-maxIdle)
	for id, u := range l.users {
		if u.lastSeen.Before(cutoff) {
			delete(l.users, id)
		}
	}
}

// QuotaLimiter is the stricter server-side quota behind the 429 path.
// Exceeding it means repeated gap violations, not one eager click.
type QuotaLimiter interface {
	// Allow consumes one quota token for the user.
	Allow(ctx context.Context, userID string) (bool, error)
}

// quotaTokenBucket runs the token bucket atomically in Redis so the
// quota holds across replicas.
// KEYS[1] = bucket key; ARGV[1] = refill rate (tokens/sec);
// ARGV[2] = capacity; ARGV[3] = now (unix seconds, fractional).
var quotaTokenBucket = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local state = redis.call("HMGET", key, "tokens", "last_refill")
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if not tokens or not last_refill then
    tokens = capacity
    last_refill = now
end

local elapsed = now - last_refill
if elapsed > 0 then
    tokens = math.min(capacity, tokens + elapsed * rate)
    last_refill = now
end

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "last_refill", last_refill)
redis.call("EXPIRE", key, 120)

return allowed
`)

// RedisQuota implements QuotaLimiter on Redis.
type RedisQuota struct {
	client   *redis.Client
	perMin   float64
	capacity int
}

// NewRedisQuota creates a quota allowing perMinute actions with the
// given burst capacity.
func NewRedisQuota(client *redis.Client, perMinute, burst int) *RedisQuota {
	return &RedisQuota{client: client, perMin: float64(perMinute), capacity: burst}
}

// Allow consumes one token from the user's bucket.
func (q *RedisQuota) Allow(ctx context.Context, userID string) (bool, error) {
	key := fmt.Sprintf("review_quota:%s", userID)
	now := float64(time.Now().UnixMicro()) / 1e6
	res, err := quotaTokenBucket.Run(ctx, q.client, []string{key}, q.perMin/60.0, q.capacity, now).Result()
	if err != nil {
		return false, fmt.Errorf("review: redis quota: %w", err)
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("review: unexpected quota script result %T", res)
	}
	return allowed == 1, nil
}

// UnlimitedQuota is the QuotaLimiter used when Redis is not configured.
type UnlimitedQuota struct{}

func (UnlimitedQuota) Allow(context.Context, string) (bool, error) { return true, nil }
