package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// NilError is returned by Get when the key does not exist.
var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// RedisAdapter narrows the go-redis client to the operations this module
// performs: a small key-value surface for locks and markers, and the
// stream operations backing the event queue. Every key is namespaced with
// the prefix given at construction.
type RedisAdapter interface {
	Set(key string, value []byte, ttl time.Duration) error
	SetNX(key string, value []byte, ttl time.Duration) (bool, error)
	Get(key string) ([]byte, error)
	Del(key string) error

	XAdd(key string, values map[string]interface{}) (string, error)
	XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error)
	XAck(key, group string, ids ...string) error
	XGroupCreateMkStream(key, group, start string) error
	XLen(key string) (int64, error)
	XTrimApprox(key string, maxLen int64) error
	XPending(key, group string) (*goredis.XPending, error)
	XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error)
	XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type adapter struct {
	conn   goredis.UniversalClient
	prefix string
}

// NewRedisAdapter connects, pings, and returns an adapter whose keys are
// all prefixed with keysPrefix.
func NewRedisAdapter(keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	c := goredis.NewUniversalClient(opts)
	if cmd := c.Ping(context.Background()); cmd.Err() != nil {
		return nil, cmd.Err()
	}
	return &adapter{conn: c, prefix: keysPrefix}, nil
}

func (a *adapter) Set(key string, value []byte, ttl time.Duration) error {
	return a.conn.Set(context.Background(), a.prefix+key, value, ttl).Err()
}

func (a *adapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := a.conn.SetNX(context.Background(), a.prefix+key, value, ttl)
	if err := cmd.Err(); err != nil {
		return false, err
	}
	return cmd.Val(), nil
}

func (a *adapter) Get(key string) ([]byte, error) {
	cmd := a.conn.Get(context.Background(), a.prefix+key)
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return cmd.Bytes()
}

func (a *adapter) Del(key string) error {
	return a.conn.Del(context.Background(), a.prefix+key).Err()
}
