package database

import (
	"sync"

	"go.uber.org/zap"
)

// Status 跟踪Redis当前是否可用。
// 健康检查器负责写入，提交流程和各处理器读取它以便快速失败。
type Status struct {
	mu             sync.RWMutex
	healthy        bool
	lastKnownRunID string
	logger         *zap.Logger
}

// NewStatus 初始为健康状态，第一次检查会在需要时修正。
func NewStatus(logger *zap.Logger) *Status {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Status{healthy: true, logger: logger}
}

// IsRedisHealthy 返回最近一次观察到的状态。nil 的 Status 视为健康。
func (s *Status) IsRedisHealthy() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// SetInitialRunID 记录启动时观察到的 run_id。
func (s *Status) SetInitialRunID(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastKnownRunID = runID
}

// Update 保存一次检查结果。只有健康时才记录 run_id。
func (s *Status) Update(healthy bool, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.healthy != healthy {
		s.healthy = healthy
		if healthy {
			s.logger.Info("redis marked available")
		} else {
			s.logger.Warn("redis marked unavailable")
		}
	}
	if healthy {
		s.lastKnownRunID = runID
	}
}

// LastKnownRunID 返回最近一次信任的Redis实例的 run_id。
func (s *Status) LastKnownRunID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastKnownRunID
}
