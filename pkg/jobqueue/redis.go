package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pushScript schedules a job on the delayed set at server time plus delay.
var pushScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
redis.call('ZADD', KEYS[1], now + tonumber(ARGV[1]), ARGV[2])
return 1
`)

// promoteScript moves due jobs from a delayed set to its ready list.
var promoteScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', now, 'LIMIT', 0, tonumber(ARGV[1]))
for _, job in ipairs(due) do
	redis.call('RPUSH', KEYS[2], job)
	redis.call('ZREM', KEYS[1], job)
end
return #due
`)

const promoteBatch = 100

// DefaultPollInterval bounds how long a delayed job can sit due but
// undelivered.
const DefaultPollInterval = time.Second

// Redis is a Queue shared by every worker using the same server and prefix.
// Each priority has a delayed sorted set scored by due time and a ready
// list; Pop promotes due jobs and then blocks on the ready lists, high
// first.
type Redis struct {
	client redis.UniversalClient
	prefix string
	poll   time.Duration
}

// NewRedis returns a queue under prefix.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, poll: DefaultPollInterval}
}

func (r *Redis) delayedKey(p Priority) string { return r.prefix + "queue:delayed:" + p.String() }
func (r *Redis) readyKey(p Priority) string   { return r.prefix + "queue:ready:" + p.String() }

func (r *Redis) Push(ctx context.Context, job Job, delay time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if delay <= 0 {
		err = r.client.RPush(ctx, r.readyKey(job.Priority), data).Err()
	} else {
		err = pushScript.Run(ctx, r.client, []string{r.delayedKey(job.Priority)}, delay.Milliseconds(), data).Err()
	}
	if err != nil {
		return fmt.Errorf("push job %s: %w", job.ID, err)
	}
	return nil
}

func (r *Redis) promote(ctx context.Context) error {
	for _, p := range []Priority{High, Low} {
		keys := []string{r.delayedKey(p), r.readyKey(p)}
		if err := promoteScript.Run(ctx, r.client, keys, promoteBatch).Err(); err != nil {
			return fmt.Errorf("promote %s jobs: %w", p, err)
		}
	}
	return nil
}

func (r *Redis) Pop(ctx context.Context) (*Job, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.promote(ctx); err != nil {
			return nil, err
		}
		res, err := r.client.BLPop(ctx, r.poll, r.readyKey(High), r.readyKey(Low)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("pop job: %w", err)
		}
		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return nil, fmt.Errorf("decode job: %w", err)
		}
		return &job, nil
	}
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	cmds, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, pr := range []Priority{High, Low} {
			p.LLen(ctx, r.readyKey(pr))
			p.ZCard(ctx, r.delayedKey(pr))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	n := 0
	for _, c := range cmds {
		n += int(c.(*redis.IntCmd).Val())
	}
	return n, nil
}

// Close does nothing; the client belongs to the caller.
func (r *Redis) Close() error { return nil }

// arriveScript marks a job done for its stage and reports whether this
// arrival drained the stage.
var arriveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 0 then
	return 0
end
redis.call('PEXPIRE', KEYS[2], tonumber(ARGV[2]))
if redis.call('HINCRBY', KEYS[1], ARGV[3], -1) == 0 then
	return 1
end
return 0
`)

// DefaultRunTTL is how long a run's barrier state is kept.
const DefaultRunTTL = 24 * time.Hour

// RedisBarrier is a Barrier shared by every worker using the same server
// and prefix. A run's keys share a hash tag.
type RedisBarrier struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBarrier returns a barrier under prefix.
func NewRedisBarrier(client redis.UniversalClient, prefix string) *RedisBarrier {
	return &RedisBarrier{client: client, prefix: prefix, ttl: DefaultRunTTL}
}

func (b *RedisBarrier) keys(runID string) (layout, left, done string) {
	base := b.prefix + "run:{" + runID + "}"
	return base + ":layout", base + ":left", base + ":done"
}

func (b *RedisBarrier) SaveRun(ctx context.Context, run *Run) error {
	if len(run.Stages) == 0 {
		return nil
	}
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	layout, left, _ := b.keys(run.ID)
	counts := make(map[string]any, len(run.Stages))
	for i, s := range run.Stages {
		counts[fmt.Sprint(i)] = len(s)
	}
	_, err = b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, layout, data, b.ttl)
		p.HSet(ctx, left, counts)
		p.PExpire(ctx, left, b.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

func (b *RedisBarrier) Arrive(ctx context.Context, runID string, stage int, jobID string) ([]Job, error) {
	layout, left, done := b.keys(runID)
	member := fmt.Sprintf("%d/%s", stage, jobID)
	drained, err := arriveScript.Run(ctx, b.client, []string{left, done},
		member, b.ttl.Milliseconds(), stage).Int()
	if err != nil {
		return nil, fmt.Errorf("arrive %s: %w", runID, err)
	}
	switch drained {
	case -1:
		return nil, fmt.Errorf("arrive: unknown run %s", runID)
	case 0:
		return nil, nil
	}

	data, err := b.client.Get(ctx, layout).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", runID, err)
	}
	for next := stage + 1; next < len(run.Stages); next++ {
		if len(run.Stages[next]) > 0 {
			return run.Stages[next], nil
		}
	}
	b.client.Del(ctx, layout, left, done)
	return nil, nil
}

var (
	_ Queue   = (*Redis)(nil)
	_ Barrier = (*RedisBarrier)(nil)
)
