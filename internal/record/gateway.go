// Package record 将已结束的战斗恰好一次地持久化到Redis。
//
// 提交时先用 WATCH 观察 game:{id}，记录已存在则直接返回，
// 否则在同一个 MULTI/EXEC 中写入记录、所有计数器、两个排行榜以及完成通知。
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HealthReporter 在访问存储之前被查询。
type HealthReporter interface {
	IsRedisHealthy() bool
}

// Options 调整网关参数。
type Options struct {
	Retries  int
	TTL      time.Duration
	Location *time.Location
}

// Gateway 是已结束对局的唯一写入者。
type Gateway struct {
	rdb    *redis.Client
	health HealthReporter
	opts   Options
	logger *zap.Logger

	// afterObserve 在 EXISTS 检查与 EXEC 之间运行，
	// 测试用它模拟竞争的写入者
	afterObserve func(ctx context.Context, tx *redis.Tx, gameID int64) error
}

// NewGateway 创建网关。health 可为 nil。
func NewGateway(rdb *redis.Client, health HealthReporter, opts Options, logger *zap.Logger) *Gateway {
	if opts.Retries < 1 {
		opts.Retries = 3
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * 24 * time.Hour
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Gateway{
		rdb:    rdb,
		health: health,
		opts:   opts,
		logger: logging.OrNop(logger).Named("record"),
	}
}

// CommitGame 记录 r。
// 一旦写入过任何数据就不会返回 AlreadyCommitted，返回 Failure 时存储保持不变。
func (g *Gateway) CommitGame(ctx context.Context, r GameResult) CommitResult {
	log := g.logger.With(zap.Int64("game_id", r.GameID))

	if g.health != nil && !g.health.IsRedisHealthy() {
		log.Warn("store marked unavailable, game not recorded")
		return CommitResult{Status: Failure, Err: ErrStoreUnavailable}
	}

	rec := NewGameRecord(r, g.opts.Location)
	payload, err := json.Marshal(NewNotification(r, g.opts.Location))
	if err != nil {
		return CommitResult{Status: Failure, Err: fmt.Errorf("encode notification: %w", err)}
	}

	key := GameKey(r.GameID)
	var exists bool
	attempts, err := retryOnConflict(ctx, g.opts.Retries, func(attempt int) error {
		exists = false
		err := g.rdb.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				exists = true
				return nil
			}
			if g.afterObserve != nil {
				if err := g.afterObserve(ctx, tx, r.GameID); err != nil {
					return err
				}
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				g.writeGame(ctx, pipe, rec)
				pipe.Publish(ctx, NotificationChannel, payload)
				return nil
			})
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			log.Debug("commit aborted by concurrent writer", zap.Int("attempt", attempt))
		}
		return err
	})

	switch {
	case err == nil && exists:
		log.Info("game already recorded", zap.Int("attempts", attempts))
		return CommitResult{Status: AlreadyCommitted, Attempts: attempts}
	case err == nil:
		log.Info("game recorded",
			zap.String("winner", rec.Winner), zap.Int("total_rounds", rec.TotalRounds), zap.Int("attempts", attempts))
		return CommitResult{Status: Committed, Attempts: attempts}
	case errors.Is(err, ErrConflictExceededRetries):
		log.Warn("commit conflicted on every attempt, treating game as recorded", zap.Int("attempts", attempts))
		return CommitResult{Status: Conflict, Attempts: attempts, Err: err}
	default:
		log.Error("commit failed", zap.Int("attempts", attempts), zap.Error(err))
		return CommitResult{Status: Failure, Attempts: attempts, Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)}
	}
}

// writeGame 将属于一局的所有写操作加入队列，通知除外
func (g *Gateway) writeGame(ctx context.Context, pipe redis.Pipeliner, rec GameRecord) {
	key := GameKey(rec.GameID)
	member := strconv.FormatInt(rec.GameID, 10)

	pipe.HSet(ctx, key, rec.Fields())
	pipe.Expire(ctx, key, g.opts.TTL)
	pipe.LPush(ctx, GameListKey, member)
	pipe.HIncrBy(ctx, WinsKey, rec.Winner, 1)
	pipe.HIncrBy(ctx, TotalRoundsKey, "sum", int64(rec.TotalRounds))
	pipe.Incr(ctx, TotalGamesKey)
	pipe.ZAdd(ctx, LongestRoundsKey, redis.Z{Score: float64(rec.TotalRounds), Member: member})
	pipe.ZAdd(ctx, MaxDamageKey, redis.Z{Score: float64(rec.PersonDamage), Member: member})
}

// NextGameID 从共享计数器发放一个新ID。
func (g *Gateway) NextGameID(ctx context.Context) (int64, error) {
	if g.health != nil && !g.health.IsRedisHealthy() {
		return 0, ErrStoreUnavailable
	}
	id, err := g.rdb.Incr(ctx, GameIDCounterKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return id, nil
}
