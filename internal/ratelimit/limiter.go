package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
)

// Actions throttled per author.
const (
	ActionCreatePost = "create_post"
	ActionComment    = "comment"
)

// Limiter gates rate-limited actions per user.
type Limiter interface {
	// Allow reports whether the user may perform the action now and, when it
	// may, records the attempt.
	Allow(ctx context.Context, action, userID string) (bool, error)
}

// Rule is a sliding window: at most Limit actions per rolling Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// DefaultRules matches the product limits: one post per minute, three
// comments per minute.
func DefaultRules() map[string]Rule {
	return map[string]Rule{
		ActionCreatePost: {Limit: 1, Window: time.Minute},
		ActionComment:    {Limit: 3, Window: time.Minute},
	}
}

// RedisLimiter implements a sliding window over a redis sorted set per
// (action, user) key. Timestamps are the members; expired ones are trimmed
// before counting, so the window truly slides instead of resetting on a
// fixed boundary. The whole trim-count-record sequence runs as one Lua
// script, so concurrent callers serialize on the key and the budget can
// never be overspent.
type RedisLimiter struct {
	client *redis.Client
	rules  map[string]Rule
	seq    int64
}

// KEYS[1] window key; ARGV: now ns, window ns, limit, member, window ms.
var slidingWindowScript = redis.NewScript(`
	redis.call("ZREMRANGEBYSCORE", KEYS[1], 0, tonumber(ARGV[1]) - tonumber(ARGV[2]))
	if redis.call("ZCARD", KEYS[1]) >= tonumber(ARGV[3]) then
		return 0
	end
	redis.call("ZADD", KEYS[1], ARGV[1], ARGV[4])
	redis.call("PEXPIRE", KEYS[1], ARGV[5])
	return 1
`)

func NewRedisLimiter(addr string, rules map[string]Rule) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to Redis: %v", err)
	}

	return &RedisLimiter{
		client: client,
		rules:  rules,
	}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, action, userID string) (bool, error) {
	rule, ok := l.rules[action]
	if !ok {
		return true, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", action, userID)
	now := time.Now().UnixNano()
	// The sequence suffix keeps members distinct when two calls land on the
	// same nanosecond.
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatInt(atomic.AddInt64(&l.seq, 1), 10)

	allowed, err := slidingWindowScript.Run(ctx, l.client, []string{key},
		now,
		rule.Window.Nanoseconds(),
		rule.Limit,
		member,
		rule.Window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}

	return allowed == 1, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
