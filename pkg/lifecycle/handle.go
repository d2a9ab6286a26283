package lifecycle

import (
	"context"
	"time"
)

// Handle 分配给单个后台任务。
// 任务监听 Done，完全停止后调用 Close（通常使用 defer）。
type Handle struct {
	ctx   context.Context
	Close func()
}

// Ctx 返回在所属 Manager 关闭时被取消的上下文。
func (h *Handle) Ctx() context.Context {
	return h.ctx
}

// Done 在广播关闭信号后被关闭。
func (h *Handle) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Err 返回 Done 被关闭的原因。
func (h *Handle) Err() error {
	return h.ctx.Err()
}

// Sleep 等待 d，关闭时提前返回上下文错误。
func (h *Handle) Sleep(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-h.Done():
		return h.Err()
	case <-timer.C:
		return nil
	}
}
