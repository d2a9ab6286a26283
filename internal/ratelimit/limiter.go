// Package ratelimit 在Redis中为每个客户端维护请求的滑动窗口。
package ratelimit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "ratelimit:"

var ErrInvalidClient = errors.New("ratelimit: invalid client address")

// HealthReporter 让限流器在Redis已知不可用时跳过它。
type HealthReporter interface {
	IsRedisHealthy() bool
}

// Options 配置 Limiter。
type Options struct {
	Scope  string
	Window time.Duration
	Max    int64
}

// Limiter 在 Window 内最多允许每个客户端 Max 次请求。
type Limiter struct {
	rdb    redis.UniversalClient
	health HealthReporter
	opts   Options
	now    func() time.Time
	logger *zap.Logger
}

// New 创建限流器。health 可为 nil。
func New(rdb redis.UniversalClient, health HealthReporter, opts Options, logger *zap.Logger) *Limiter {
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	return &Limiter{
		rdb:    rdb,
		health: health,
		opts:   opts,
		now:    time.Now,
		logger: logging.OrNop(logger).Named("ratelimit"),
	}
}

func (l *Limiter) key(client string) string {
	return keyPrefix + l.opts.Scope + ":" + client
}

// memberID 由8字节时间戳加8字节随机数组成，
// 同一纳秒内的两个请求也不会冲突。
func memberID(t time.Time) (string, error) {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], uint64(t.UnixNano()))
	if _, err := rand.Read(b[8:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Allow 为 client 记录一次请求，返回是否在窗口限额内以及包含本次在内的计数。
// 被拒绝的请求会再次移除，不会延长惩罚时间。
func (l *Limiter) Allow(ctx context.Context, client string) (bool, int64, error) {
	if net.ParseIP(client) == nil {
		return false, 0, ErrInvalidClient
	}
	if l.opts.Max <= 0 {
		return true, 0, nil
	}

	now := l.now()
	member, err := memberID(now)
	if err != nil {
		return false, 0, err
	}
	key := l.key(client)
	floor := now.Add(-l.opts.Window).UnixMicro()

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(floor, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: member})
	pipe.Expire(ctx, key, l.opts.Window+time.Minute)
	count := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("rate limit window: %w", err)
	}

	n := count.Val()
	if n <= l.opts.Max {
		return true, n, nil
	}
	if err := l.rdb.ZRem(ctx, key, member).Err(); err != nil {
		l.logger.Warn("could not undo rejected request", zap.String("client", client), zap.Error(err))
	}
	return false, n - 1, nil
}

// Middleware 以429拒绝超限的请求。
// Redis不可用时直接放行。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.health != nil && !l.health.IsRedisHealthy() {
			c.Next()
			return
		}
		ok, _, err := l.Allow(c.Request.Context(), c.ClientIP())
		switch {
		case errors.Is(err, ErrInvalidClient):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid client address"})
			return
		case err != nil:
			l.logger.Warn("rate limiter unavailable, admitting request", zap.Error(err))
		case !ok:
			c.Header("Retry-After", strconv.Itoa(int(l.opts.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many battles started, slow down"})
			return
		}
		c.Next()
	}
}
