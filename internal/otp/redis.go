package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/rbacauth/internal/models"
	"github.com/example/rbacauth/internal/store"
)

// retention keeps a challenge readable past its expiry so verification
// can still report "expired" instead of "not found".
const retention = time.Hour

// replaceChallengeLua drops the challenge currently indexed for the email,
// then writes the new hash and index with a shared TTL. The old challenge
// key is only known inside the script; it is built from the same
// hash-tagged prefix as KEYS, so it lives in the same cluster slot.
// KEYS[1] = challenge key, KEYS[2] = email index key
// ARGV[1] = challenge key prefix, ARGV[2] = id, ARGV[3] = ttl ms, ARGV[4..] = hash field/value pairs
var replaceChallengeLua = redis.NewScript(`
local old = redis.call('GET', KEYS[2])
if old then
  redis.call('DEL', ARGV[1] .. old)
end
redis.call('DEL', KEYS[1])
redis.call('HSET', KEYS[1], unpack(ARGV, 4))
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// incrAttemptsLua increments attempts only on an existing challenge.
var incrAttemptsLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], 'attempts', 1)
`)

// deleteChallengeLua removes a challenge and its email index entry.
// KEYS[1] = challenge key
// ARGV[1] = email index prefix, ARGV[2] = id, ARGV[3] = required email or ""
// Returns 1 when a challenge was removed, 0 otherwise.
var deleteChallengeLua = redis.NewScript(`
local email = redis.call('HGET', KEYS[1], 'email')
if not email then
  return 0
end
if ARGV[3] ~= '' and ARGV[3] ~= email then
  return 0
end
redis.call('DEL', KEYS[1])
local idx = ARGV[1] .. email
if redis.call('GET', idx) == ARGV[2] then
  redis.call('DEL', idx)
end
return 1
`)

// RedisStore keeps OTP challenges in Redis hashes. It satisfies
// store.Challenges so the OTP service can use it in place of SQL.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rbac"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

var _ store.Challenges = (*RedisStore)(nil)

// Keys are "{prefix}:otp:..." so every key a script touches hashes to
// one Redis Cluster slot.
func (r *RedisStore) challengePrefix() string { return "{" + r.prefix + "}:otp:id:" }
func (r *RedisStore) emailPrefix() string     { return "{" + r.prefix + "}:otp:email:" }

func (r *RedisStore) ReplaceChallenge(ctx context.Context, c *models.Challenge) error {
	ttl := c.ExpiresAt.Sub(r.now()) + retention
	if ttl <= 0 {
		ttl = retention
	}
	args := []any{
		r.challengePrefix(), c.ID, ttl.Milliseconds(),
		"email", c.Email,
		"code", c.Code,
		"username", c.Username,
		"password_hash", c.PasswordHash,
		"visitor_id", c.VisitorID,
		"purpose", string(c.Purpose),
		"attempts", c.Attempts,
		"expires_at", c.ExpiresAt.UnixMilli(),
		"created_at", c.CreatedAt.UnixMilli(),
	}
	keys := []string{r.challengePrefix() + c.ID, r.emailPrefix() + c.Email}
	if err := replaceChallengeLua.Run(ctx, r.rdb, keys, args...).Err(); err != nil {
		return fmt.Errorf("redis replace challenge: %w", err)
	}
	return nil
}

func (r *RedisStore) GetChallenge(ctx context.Context, id string) (*models.Challenge, error) {
	m, err := r.rdb.HGetAll(ctx, r.challengePrefix()+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get challenge: %w", err)
	}
	if len(m) == 0 {
		return nil, store.ErrNotFound
	}
	attempts, _ := strconv.Atoi(m["attempts"])
	expires, _ := strconv.ParseInt(m["expires_at"], 10, 64)
	created, _ := strconv.ParseInt(m["created_at"], 10, 64)
	return &models.Challenge{
		ID:           id,
		Email:        m["email"],
		Code:         m["code"],
		Username:     m["username"],
		PasswordHash: m["password_hash"],
		VisitorID:    m["visitor_id"],
		Purpose:      models.Purpose(m["purpose"]),
		Attempts:     attempts,
		ExpiresAt:    time.UnixMilli(expires).UTC(),
		CreatedAt:    time.UnixMilli(created).UTC(),
	}, nil
}

func (r *RedisStore) IncrementChallengeAttempts(ctx context.Context, id string) (int, error) {
	n, err := incrAttemptsLua.Run(ctx, r.rdb, []string{r.challengePrefix() + id}).Int()
	if err != nil {
		return 0, fmt.Errorf("redis increment attempts: %w", err)
	}
	if n < 0 {
		return 0, store.ErrNotFound
	}
	return n, nil
}

func (r *RedisStore) ConsumeChallenge(ctx context.Context, id string) error {
	return r.remove(ctx, "", id)
}

func (r *RedisStore) DeleteChallenge(ctx context.Context, email, id string) error {
	return r.remove(ctx, email, id)
}

func (r *RedisStore) remove(ctx context.Context, email, id string) error {
	n, err := deleteChallengeLua.Run(ctx, r.rdb, []string{r.challengePrefix() + id}, r.emailPrefix(), id, email).Int()
	if err != nil {
		return fmt.Errorf("redis delete challenge: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteExpiredChallenges is a no-op: Redis expires keys on its own.
func (r *RedisStore) DeleteExpiredChallenges(context.Context, time.Time) (int64, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
