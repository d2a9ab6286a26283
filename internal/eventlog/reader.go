package eventlog

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Replay 按写入顺序返回一局的所有事件。
// 没有日志的对局返回空切片。
func Replay(ctx context.Context, rdb redis.Cmdable, gameID int64) ([]Event, error) {
	msgs, err := rdb.XRange(ctx, StreamKey(gameID), "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read event log for game %d: %w", gameID, err)
	}

	events := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		ev, err := decodeEvent(m.Values)
		if err != nil {
			return nil, fmt.Errorf("decode event %s of game %d: %w", m.ID, gameID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}
