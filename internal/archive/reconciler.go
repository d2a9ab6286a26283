package archive

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/metadata"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Reconciler 将Redis中已记录的对局复制到归档。
// 它响应完成通知，并定期扫描 game:list 补上漏掉的通知。
type Reconciler struct {
	rdb    redis.UniversalClient
	store  *Store
	health record.HealthReporter
	batch  int64
	logger *zap.Logger

	mu sync.Mutex
}

// NewReconciler 组装对账器。health 可为 nil。
func NewReconciler(rdb redis.UniversalClient, store *Store, health record.HealthReporter, batch int64, logger *zap.Logger) *Reconciler {
	if batch <= 0 {
		batch = 500
	}
	return &Reconciler{
		rdb:    rdb,
		store:  store,
		health: health,
		batch:  batch,
		logger: logging.OrNop(logger).Named("archive"),
	}
}

// HandleNotification 归档完成通知中指明的对局。
func (r *Reconciler) HandleNotification(ctx context.Context, n record.Notification) error {
	recs, err := r.load(ctx, []int64{n.GameID})
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("game %d vanished before it could be archived", n.GameID)
	}
	_, err = r.store.Save(ctx, recs...)
	return err
}

// Reconcile 归档自上次扫描以来推入 game:list 的所有对局。
// 返回本次新归档的对局数。
func (r *Reconciler) Reconcile(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	db := r.store.DB()
	seen, err := metadata.GetInt64(ctx, db, metadata.ArchivedListLengthKey)
	if err != nil {
		return 0, err
	}
	length, err := r.rdb.LLen(ctx, record.GameListKey).Result()
	if err != nil {
		return 0, fmt.Errorf("read game list length: %w", err)
	}
	// 列表变短说明Redis被重建或清空过，需要全部检查
	if length < seen {
		seen = 0
	}

	// LPUSH 从头部插入，因此从尾部计算偏移，
	// 这样新对局提交时已计数的条目位置不变
	var archived int64
	for offset := seen; offset < length; offset += r.batch {
		end := min(offset+r.batch, length)
		members, err := r.rdb.LRange(ctx, record.GameListKey, -end, -(offset + 1)).Result()
		if err != nil {
			return archived, fmt.Errorf("read game list: %w", err)
		}
		ids := make([]int64, 0, len(members))
		for _, m := range members {
			if id, err := strconv.ParseInt(m, 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		missing, err := r.store.Missing(ctx, ids)
		if err != nil {
			return archived, err
		}
		recs, err := r.load(ctx, missing)
		if err != nil {
			return archived, err
		}
		n, err := r.store.Save(ctx, recs...)
		if err != nil {
			return archived, err
		}
		archived += n
	}

	if err := metadata.SetInt64(ctx, db, metadata.ArchivedListLengthKey, length); err != nil {
		return archived, err
	}
	if archived > 0 {
		r.logger.Info("archive reconciled", zap.Int64("archived", archived), zap.Int64("list_length", length))
	}
	return archived, nil
}

func (r *Reconciler) load(ctx context.Context, ids []int64) ([]record.GameRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, record.GameKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load games for archive: %w", err)
	}
	recs := make([]record.GameRecord, 0, len(ids))
	for i, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			r.logger.Warn("game expired before archiving", zap.Int64("game_id", ids[i]))
			continue
		}
		var rec record.GameRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, fmt.Errorf("decode game %d: %w", ids[i], err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Run 按固定间隔对账，直到 handle 被取消。
func (r *Reconciler) Run(h *lifecycle.Handle, interval time.Duration) {
	defer h.Close()
	r.logger.Info("archive reconciler started", zap.Duration("interval", interval))

	for {
		if err := h.Sleep(interval); err != nil {
			r.logger.Info("archive reconciler stopped")
			return
		}
		if r.health != nil && !r.health.IsRedisHealthy() {
			r.logger.Debug("redis unavailable, skipping reconcile")
			continue
		}
		if _, err := r.Reconcile(h.Ctx()); err != nil && h.Err() == nil {
			r.logger.Error("reconcile failed", zap.Error(err))
		}
	}
}
