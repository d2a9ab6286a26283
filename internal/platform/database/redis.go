package database

import (
	"context"
	"fmt"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OpenRedis 连接共享的战斗存储，并用 PING 验证连接。
// 强制使用 RESP2，使 FT.AGGREGATE 的回复保持扁平数组格式。
func OpenRedis(cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		Protocol:     2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Address, err)
	}

	if logger != nil {
		logger.Info("redis connected", zap.String("addr", cfg.Address), zap.Int("db", cfg.DB), zap.Int("pool_size", cfg.PoolSize))
	}
	return rdb, nil
}
