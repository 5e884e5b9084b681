package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// StreamMessage is one entry read from a redis stream.
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

func toStreamMessages(msgs []goredis.XMessage) []StreamMessage {
	out := make([]StreamMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, StreamMessage{ID: m.ID, Values: m.Values})
	}
	return out
}

func (a *adapter) XAdd(key string, values map[string]interface{}) (string, error) {
	cmd := a.conn.XAdd(context.Background(), &goredis.XAddArgs{
		Stream: a.prefix + key,
		ID:     "*",
		Values: values,
	})
	if err := cmd.Err(); err != nil {
		return "", err
	}
	return cmd.Val(), nil
}

func (a *adapter) XReadGroup(group, consumer, key, id string, count int64) ([]StreamMessage, error) {
	cmd := a.conn.XReadGroup(context.Background(), &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{a.prefix + key, id},
		Count:    count,
		Block:    0,
	})
	if err := cmd.Err(); err != nil {
		return nil, err
	}

	var out []StreamMessage
	for _, stream := range cmd.Val() {
		out = append(out, toStreamMessages(stream.Messages)...)
	}
	return out, nil
}

func (a *adapter) XAck(key, group string, ids ...string) error {
	return a.conn.XAck(context.Background(), a.prefix+key, group, ids...).Err()
}

func (a *adapter) XGroupCreateMkStream(key, group, start string) error {
	return a.conn.XGroupCreateMkStream(context.Background(), a.prefix+key, group, start).Err()
}

func (a *adapter) XLen(key string) (int64, error) {
	cmd := a.conn.XLen(context.Background(), a.prefix+key)
	if err := cmd.Err(); err != nil {
		return 0, err
	}
	return cmd.Val(), nil
}

func (a *adapter) XTrimApprox(key string, maxLen int64) error {
	return a.conn.XTrimMaxLenApprox(context.Background(), a.prefix+key, maxLen, 0).Err()
}

func (a *adapter) XPending(key, group string) (*goredis.XPending, error) {
	cmd := a.conn.XPending(context.Background(), a.prefix+key, group)
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return cmd.Val(), nil
}

func (a *adapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	cmd := a.conn.XPendingExt(context.Background(), &goredis.XPendingExtArgs{
		Stream: a.prefix + key,
		Group:  group,
		Start:  start,
		End:    end,
		Count:  count,
	})
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return cmd.Val(), nil
}

func (a *adapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	cmd := a.conn.XClaim(context.Background(), &goredis.XClaimArgs{
		Stream:   a.prefix + key,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	})
	if err := cmd.Err(); err != nil {
		return nil, err
	}
	return toStreamMessages(cmd.Val()), nil
}
