package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// acquireScript trims the provider's log to the window, then admits and
// records the call or reports the wait until the oldest entry expires.
// Scores are server time in microseconds.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]

local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000000 + tonumber(t[2])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
if redis.call('ZCARD', key) < limit then
	redis.call('ZADD', key, now, member)
	redis.call('PEXPIRE', key, math.ceil(window / 1000) + 1000)
	return {1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, tonumber(oldest[2]) + window - now}
`)

// Redis is a sliding-log limiter shared by every process using the same
// server and prefix.
type Redis struct {
	client redis.UniversalClient
	rules  Rules
	prefix string
}

// NewRedis returns a limiter storing its logs under prefix.
func NewRedis(client redis.UniversalClient, rules Rules, prefix string) *Redis {
	return &Redis{client: client, rules: rules, prefix: prefix}
}

func (r *Redis) key(provider string) string { return r.prefix + "ratelimit:" + provider }

func (r *Redis) Acquire(ctx context.Context, provider string) (Decision, error) {
	rule := r.rules.For(provider)
	res, err := acquireScript.Run(ctx, r.client,
		[]string{r.key(provider)},
		rule.Limit, rule.Window.Microseconds(), uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return Decision{Wait: rule.Window}, fmt.Errorf("acquire %s: %w", provider, err)
	}
	if len(res) != 2 {
		return Decision{Wait: rule.Window}, fmt.Errorf("acquire %s: unexpected reply %v", provider, res)
	}
	if res[0] == 1 {
		return Decision{Allowed: true}, nil
	}
	wait := time.Duration(res[1]) * time.Microsecond
	if wait <= 0 {
		wait = time.Millisecond
	}
	return Decision{Wait: wait}, nil
}

var _ Limiter = (*Redis)(nil)
