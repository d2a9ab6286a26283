package health

import (
	"sync"

	"go.uber.org/zap"
)

// State 是检查器眼中共享存储的状态。
type State int

const (
	StateHealthy State = iota
	StateDegraded
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "unknown"
	}
}

// machine 跟踪状态转换。
// run_id 变化说明Redis重启并丢失了数据，派生状态必须重建后才能信任。
type machine struct {
	mu             sync.RWMutex
	state          State
	lastKnownRunID string
	logger         *zap.Logger
}

func (m *machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *machine) setInitialRunID(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastKnownRunID = runID
}

// assess 将一次检查结果并入状态，并返回是否需要重建。
func (m *machine) assess(connected bool, runID string) (needsRebuild bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	restarted := connected && m.lastKnownRunID != "" && m.lastKnownRunID != runID

	switch m.state {
	case StateHealthy:
		if !connected {
			m.state = StateDegraded
			m.logger.Warn("redis connection lost", zap.Stringer("state", m.state))
		} else if restarted {
			m.state = StateRebuilding
			needsRebuild = true
			m.logger.Warn("redis restart detected",
				zap.String("old_run_id", m.lastKnownRunID), zap.String("new_run_id", runID))
		}
	case StateDegraded:
		if restarted {
			m.state = StateRebuilding
			needsRebuild = true
			m.logger.Warn("redis back after restart",
				zap.String("old_run_id", m.lastKnownRunID), zap.String("new_run_id", runID))
		} else if connected {
			m.state = StateHealthy
			m.logger.Info("redis connection restored")
		}
	case StateRebuilding:
		if !connected {
			m.state = StateDegraded
			m.logger.Warn("redis lost during rebuild")
		} else {
			needsRebuild = true
			m.logger.Info("retrying cache rebuild")
		}
	}

	if connected {
		m.lastKnownRunID = runID
	}
	return needsRebuild
}

// rebuilt 记录一次重建尝试。
// 只有Redis在整个过程中 run_id 未变，重建才算有效。
func (m *machine) rebuilt(success bool, runIDAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateRebuilding {
		return
	}
	if success && m.lastKnownRunID != runIDAfter {
		m.logger.Warn("redis restarted again during rebuild",
			zap.String("old_run_id", m.lastKnownRunID), zap.String("new_run_id", runIDAfter))
		m.lastKnownRunID = runIDAfter
		return
	}
	if success {
		m.state = StateHealthy
		m.logger.Info("cache rebuild complete")
		return
	}
	m.logger.Warn("cache rebuild failed, will retry")
}
