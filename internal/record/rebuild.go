package record

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Rebuild 用 games 的内容替换所有派生键，games 必须来自归档这类持久化来源。
// 重建过程不发送通知。
// ID计数器会被抬高，保证新对局不会复用已归档的ID。
func (g *Gateway) Rebuild(ctx context.Context, games []GameRecord) error {
	sorted := append([]GameRecord(nil), games...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].GameID < sorted[j].GameID })

	var maxID int64
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, DerivedKeys...)
		for _, rec := range sorted {
			g.writeGame(ctx, pipe, rec)
			if rec.GameID > maxID {
				maxID = rec.GameID
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild derived keys: %w", err)
	}

	if maxID > 0 {
		if err := raiseCounter(ctx, g.rdb, maxID); err != nil {
			return err
		}
	}
	g.logger.Info("derived keys rebuilt", zap.Int("games", len(sorted)), zap.Int64("max_game_id", maxID))
	return nil
}

// raiseCounter 将ID计数器至少设为 floor
func raiseCounter(ctx context.Context, rdb *redis.Client, floor int64) error {
	return rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, GameIDCounterKey).Int64()
		if err != nil && err != redis.Nil {
			return err
		}
		if cur >= floor {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, GameIDCounterKey, strconv.FormatInt(floor, 10), 0)
			return nil
		})
		return err
	}, GameIDCounterKey)
}
