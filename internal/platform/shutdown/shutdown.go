// Package shutdown 负责编排进程的优雅退出。
package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"go.uber.org/zap"
)

const (
	httpTimeout     = 15 * time.Second
	gracefulTimeout = 30 * time.Second
	forcefulTimeout = time.Second
	finalTimeout    = 10 * time.Second
)

// FinalStep 在所有后台任务停止后执行。
type FinalStep struct {
	Name string
	Run  func(ctx context.Context) error
}

// Coordinator 先关闭HTTP服务器，再停止优雅停机的后台任务，
// 对迟迟不退出的任务使用强制停机管理器。
type Coordinator struct {
	GracefulManager *lifecycle.Manager
	ForcefulManager *lifecycle.Manager
	steps           []FinalStep
	logger          *zap.Logger
}

// NewCoordinator 基于外部创建的管理器构造协调器。
func NewCoordinator(gracefulMgr, forcefulMgr *lifecycle.Manager, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		GracefulManager: gracefulMgr,
		ForcefulManager: forcefulMgr,
		logger:          logging.OrNop(logger).Named("shutdown"),
	}
}

// Finally 追加一个在后台任务全部退出后执行的步骤。
func (c *Coordinator) Finally(name string, run func(ctx context.Context) error) {
	c.steps = append(c.steps, FinalStep{Name: name, Run: run})
}

// ListenForSignalsAndShutdown 阻塞直到收到 SIGINT 或 SIGTERM，然后执行关闭流程。
func (c *Coordinator) ListenForSignalsAndShutdown(server *http.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	c.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	c.Shutdown(server)
}

// Shutdown 执行完整的关闭流程。server 可为 nil。
func (c *Coordinator) Shutdown(server *http.Server) {
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpTimeout)
		if err := server.Shutdown(ctx); err != nil {
			c.logger.Error("http server shutdown", zap.Error(err))
		} else {
			c.logger.Info("http server closed")
		}
		cancel()
	}

	c.GracefulManager.Shutdown()
	remaining := c.GracefulManager.WaitWithTimeout(gracefulTimeout)
	if len(remaining) == 0 {
		c.logger.Info("background services stopped")
	} else {
		c.logger.Warn("graceful phase timed out, forcing", zap.Strings("remaining", remaining))
		c.ForcefulManager.Shutdown()
		if left := c.ForcefulManager.WaitWithTimeout(forcefulTimeout); len(left) > 0 {
			c.logger.Error("services did not stop", zap.Strings("remaining", left))
		}
	}

	for _, step := range c.steps {
		ctx, cancel := context.WithTimeout(context.Background(), finalTimeout)
		if err := step.Run(ctx); err != nil {
			c.logger.Error("final step failed", zap.String("step", step.Name), zap.Error(err))
		} else {
			c.logger.Info("final step done", zap.String("step", step.Name))
		}
		cancel()
	}
	c.logger.Info("shutdown complete")
}
