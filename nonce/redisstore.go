package nonce

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStore is the distributed nonce-store extension spec.md §4.2's
// "Extensibility note" calls for: a backend usable across multiple verifier
// processes that still preserves MarkUsed's compare-and-swap semantics. A
// naive get-then-set loop loses single-use under races the same way the
// in-memory store would if it used a read-modify-write instead of a
// mutex-guarded mutation; here the CAS is pushed into a Lua script so Redis
// itself performs the atomic check-and-flip server-side.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore wraps an existing redis client. The caller owns the
// client's lifecycle (connection pool, TLS, auth).
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

type redisRecord struct {
	ExpiresAt int64 `json:"expires_at"`
	Used      bool  `json:"used"`
}

func toRedisRecord(r Record) redisRecord {
	return redisRecord{ExpiresAt: r.ExpiresAt.Unix(), Used: r.Used}
}

func (rr redisRecord) toRecord() Record {
	return Record{ExpiresAt: time.Unix(rr.ExpiresAt, 0).UTC(), Used: rr.Used}
}

// tryAddScript sets key to value only if it does not already exist,
// returning 1 on success and 0 on collision — Redis's SET NX behavior,
// scripted so the value encoding stays in one place.
var tryAddScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
return 1
`)

// markUsedScript atomically flips the used flag from false to true,
// returning 1 on success and 0 if the key is absent or already used.
var markUsedScript = redis.NewScript(`
local raw = redis.call("GET", KEYS[1])
if raw == false then
  return 0
end
local rec = cjson.decode(raw)
if rec.used then
  return 0
end
rec.used = true
redis.call("SET", KEYS[1], cjson.encode(rec))
return 1
`)

func (s *RedisStore) TryAdd(nonceVal string, record Record) bool {
	b, err := json.Marshal(toRedisRecord(record))
	if err != nil {
		return false
	}
	res, err := tryAddScript.Run(context.Background(), s.client, []string{nonceVal}, string(b)).Int()
	return err == nil && res == 1
}

func (s *RedisStore) TryGet(nonceVal string) (Record, bool) {
	raw, err := s.client.Get(context.Background(), nonceVal).Result()
	if err != nil {
		return Record{}, false
	}
	var rr redisRecord
	if err := json.Unmarshal([]byte(raw), &rr); err != nil {
		return Record{}, false
	}
	return rr.toRecord(), true
}

func (s *RedisStore) MarkUsed(nonceVal string) bool {
	res, err := markUsedScript.Run(context.Background(), s.client, []string{nonceVal}).Int()
	return err == nil && res == 1
}

var _ Store = &RedisStore{}
