package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/shop_payments/services/payment/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "payment:intent:"
	deadlineKey = "payment:intent:deadlines"
	sweepBatch  = 500
)

// KEYS[1] intent key, KEYS[2] deadline index
// ARGV[1] payload, ARGV[2] ttl ms, ARGV[3] deadline unix ms, ARGV[4] token
var putScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
  redis.call('ZADD', KEYS[2], ARGV[3], ARGV[4])
  return 1
end
return 0
`)

// KEYS[1] intent key, KEYS[2] deadline index, ARGV[1] token
var takeScript = redis.NewScript(`
local v = redis.call('GET', KEYS[1])
if v then
  redis.call('DEL', KEYS[1])
end
redis.call('ZREM', KEYS[2], ARGV[1])
return v
`)

// KEYS[1] deadline index, ARGV[1] now unix ms, ARGV[2] batch, ARGV[3] key prefix
var sweepScript = redis.NewScript(`
local tokens = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, t in ipairs(tokens) do
  redis.call('DEL', ARGV[3] .. t)
  redis.call('ZREM', KEYS[1], t)
end
return #tokens
`)

// RedisStore shares staged intents between service instances. Every
// operation runs as a single server side script.
type RedisStore struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	o := buildOptions(opts)
	return &RedisStore{client: client, now: o.now}
}

func intentKey(token string) string {
	return keyPrefix + token
}

func (s *RedisStore) Put(ctx context.Context, p domain.PendingIntent) error {
	ttl := p.Deadline.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal intent failed: %w", err)
	}

	ok, err := putScript.Run(ctx, s.client,
		[]string{intentKey(p.Token), deadlineKey},
		payload, ttl.Milliseconds(), p.Deadline.UnixMilli(), p.Token,
	).Int()
	if err != nil {
		return fmt.Errorf("redis put intent failed: %w", err)
	}
	if ok == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateToken, p.Token)
	}
	return nil
}

func (s *RedisStore) TakeIfPresent(ctx context.Context, token string) (domain.PendingIntent, error) {
	data, err := takeScript.Run(ctx, s.client, []string{intentKey(token), deadlineKey}, token).Text()
	if errors.Is(err, redis.Nil) {
		return domain.PendingIntent{}, ErrNotFound
	}
	if err != nil {
		return domain.PendingIntent{}, fmt.Errorf("redis take intent failed: %w", err)
	}

	var p domain.PendingIntent
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return domain.PendingIntent{}, fmt.Errorf("unmarshal intent failed: %w", err)
	}
	if p.Expired(s.now()) {
		return domain.PendingIntent{}, ErrNotFound
	}
	return p, nil
}

// Sweep drops intents whose deadline passed, in batches, and returns how
// many were removed.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := sweepScript.Run(ctx, s.client,
			[]string{deadlineKey},
			s.now().UnixMilli(), sweepBatch, keyPrefix,
		).Int()
		if err != nil {
			return total, fmt.Errorf("redis sweep failed: %w", err)
		}
		total += n
		if n < sweepBatch {
			return total, nil
		}
	}
}
