package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// completeScript records the job id in the done set and decrements the
// counter only if the id was new. A drained counter is deleted.
var completeScript = redis.NewScript(`
local count = KEYS[1]
local done = KEYS[2]

if redis.call('EXISTS', count) == 0 then
	return 0
end
if redis.call('SADD', done, ARGV[1]) == 0 then
	return tonumber(redis.call('GET', count))
end
local ttl = redis.call('PTTL', count)
if ttl > 0 then
	redis.call('PEXPIRE', done, ttl)
end
local n = redis.call('DECR', count)
if n <= 0 then
	redis.call('DEL', count, done)
	return 0
end
return n
`)

// Redis is a Tracker shared by every process using the same server and
// prefix. Both keys of an artifact share a hash tag so scripts work on a
// cluster.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedis returns a tracker storing counters under prefix.
func NewRedis(client redis.UniversalClient, ttl time.Duration, prefix string) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (r *Redis) keys(id string) (count, done string) {
	base := r.prefix + "status:{" + id + "}"
	return base + ":count", base + ":done"
}

func (r *Redis) Begin(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return nil
	}
	count, done := r.keys(id)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.IncrBy(ctx, count, int64(n))
		p.PExpire(ctx, count, r.ttl)
		p.PExpire(ctx, done, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("begin %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Complete(ctx context.Context, id, jobID string) (int, error) {
	count, done := r.keys(id)
	n, err := completeScript.Run(ctx, r.client, []string{count, done}, jobID).Int()
	if err != nil {
		return 0, fmt.Errorf("complete %s: %w", id, err)
	}
	return n, nil
}

func (r *Redis) IsUpdating(ctx context.Context, id string) (bool, error) {
	n, err := r.Outstanding(ctx, id)
	return n > 0, err
}

func (r *Redis) Outstanding(ctx context.Context, id string) (int, error) {
	count, _ := r.keys(id)
	n, err := r.client.Get(ctx, count).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("outstanding %s: %w", id, err)
	}
	return max(n, 0), nil
}

var _ Tracker = (*Redis)(nil)
