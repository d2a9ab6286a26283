// Package health 定期检查Redis，通过 run_id 发现重启，
// 并从持久化归档重建派生状态。
package health

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/database"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Second
	pingTimeout     = 2 * time.Second
)

var (
	ErrNoRunID = errors.New("health: run_id missing from INFO server")

	runIDPattern = regexp.MustCompile(`run_id:([a-f0-9]+)`)
)

// RunIDFunc 返回当前运行的Redis实例标识。
type RunIDFunc func(ctx context.Context) (string, error)

// RebuildFunc 在Redis丢失派生状态后将其恢复。
type RebuildFunc func(ctx context.Context) error

// RedisRunID 从 INFO server 中读取 run_id。
func RedisRunID(rdb redis.UniversalClient) RunIDFunc {
	return func(ctx context.Context) (string, error) {
		info, err := rdb.Info(ctx, "server").Result()
		if err != nil {
			return "", err
		}
		return parseRunID(info)
	}
}

func parseRunID(info string) (string, error) {
	m := runIDPattern.FindStringSubmatch(info)
	if len(m) < 2 {
		return "", ErrNoRunID
	}
	return m[1], nil
}

// Checker 运行健康检查循环。
type Checker struct {
	runID   RunIDFunc
	rebuild RebuildFunc
	status  *database.Status
	machine *machine
	logger  *zap.Logger
}

// NewChecker 组装检查器。每次检查结论都会写入 status。
func NewChecker(runID RunIDFunc, rebuild RebuildFunc, status *database.Status, logger *zap.Logger) *Checker {
	logger = logging.OrNop(logger).Named("health")
	return &Checker{
		runID:   runID,
		rebuild: rebuild,
		status:  status,
		machine: &machine{logger: logger},
		logger:  logger,
	}
}

// State 返回当前状态。
func (c *Checker) State() State {
	return c.machine.State()
}

// Initialize 记录启动时的 run_id。此时Redis必须可达。
func (c *Checker) Initialize(ctx context.Context) error {
	id, err := c.ping(ctx)
	if err != nil {
		return err
	}
	c.machine.setInitialRunID(id)
	c.status.SetInitialRunID(id)
	c.logger.Info("initial redis run_id", zap.String("run_id", id))
	return nil
}

func (c *Checker) ping(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.runID(ctx)
}

// Check 执行一次检查，必要时尝试一次重建。
func (c *Checker) Check(ctx context.Context) State {
	id, err := c.ping(ctx)
	connected := err == nil
	if err != nil {
		c.logger.Debug("redis ping failed", zap.Error(err))
	}

	if c.machine.assess(connected, id) {
		c.status.Update(false, "")
		rerr := c.rebuild(ctx)
		if rerr != nil {
			c.logger.Error("cache rebuild failed", zap.Error(rerr))
		}
		after, perr := c.ping(ctx)
		c.machine.rebuilt(rerr == nil && perr == nil, after)
	}

	state := c.machine.State()
	c.status.Update(state == StateHealthy, id)
	return state
}

// Run 按 interval 定期检查，直到 handle 被取消。
func (c *Checker) Run(h *lifecycle.Handle, interval time.Duration) {
	defer h.Close()
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.logger.Info("health checker started", zap.Duration("interval", interval))
	for {
		if err := h.Sleep(interval); err != nil {
			c.logger.Info("health checker stopped")
			return
		}
		c.Check(h.Ctx())
	}
}
