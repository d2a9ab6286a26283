// Package startup 在服务器接收流量前准备好各存储，
// 并在Redis重启后重建派生状态。
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/archive"
	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/metadata"
	"github.com/SlpAus/dragon-duel-backend/internal/query"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bootstrapper 持有初始化和重建涉及的依赖。
type Bootstrapper struct {
	rdb       *redis.Client
	archive   *archive.Store
	gateway   *record.Gateway
	templates *combatant.TemplateStore
	logger    *zap.Logger
	now       func() time.Time
}

// New 组装 Bootstrapper。
func New(rdb *redis.Client, store *archive.Store, gw *record.Gateway, templates *combatant.TemplateStore, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		rdb:       rdb,
		archive:   store,
		gateway:   gw,
		templates: templates,
		logger:    logging.OrNop(logger).Named("startup"),
		now:       time.Now,
	}
}

// Initialize 在进程启动时执行一次。
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	b.logger.Info("initializing application")

	if err := b.archive.Migrate(); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	if err := b.templates.Seed(ctx); err != nil {
		return fmt.Errorf("seed character templates: %w", err)
	}

	// 服务停机期间Redis可能已经丢失数据
	n, err := b.rdb.LLen(ctx, record.GameListKey).Result()
	if err != nil {
		return fmt.Errorf("inspect game list: %w", err)
	}
	archived, err := b.archive.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 && archived > 0 {
		b.logger.Warn("redis is empty but the archive is not, rebuilding", zap.Int64("archived", archived))
		if err := b.RebuildCache(ctx); err != nil {
			return err
		}
	} else {
		b.ensureIndex(ctx)
	}

	b.logger.Info("application initialized")
	return nil
}

func (b *Bootstrapper) ensureIndex(ctx context.Context) {
	ok, err := query.EnsureIndex(ctx, b.rdb)
	switch {
	case err != nil:
		b.logger.Warn("search index unavailable", zap.Error(err))
	case !ok:
		b.logger.Info("redis has no search module, character stats will scan")
	}
}

// RebuildCache 从归档恢复所有派生的Redis结构。
func (b *Bootstrapper) RebuildCache(ctx context.Context) error {
	start := b.now()
	b.logger.Info("rebuilding cache from archive")

	games, err := b.archive.All(ctx)
	if err != nil {
		return fmt.Errorf("load archive: %w", err)
	}
	if err := b.templates.Seed(ctx); err != nil {
		return fmt.Errorf("seed character templates: %w", err)
	}
	if err := b.gateway.Rebuild(ctx, games); err != nil {
		return fmt.Errorf("rebuild redis: %w", err)
	}
	b.ensureIndex(ctx)

	if err := metadata.SetValue(ctx, b.archive.DB(), metadata.LastRebuildAtKey, b.now().UTC().Format(time.RFC3339)); err != nil {
		b.logger.Warn("could not record rebuild time", zap.Error(err))
	}
	b.logger.Info("cache rebuilt", zap.Int("games", len(games)), zap.Duration("took", time.Since(start)))
	return nil
}
