// Package eventlog 维护有序且限长的战斗动作日志。
//
// 写入是即发即弃的：回合引擎只负责入队，由单个工作协程把队列写入Redis Stream。
// 无法写入的事件记录日志后直接丢弃。
package eventlog

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options 调整写入器参数。
type Options struct {
	MaxLen        int64
	QueueSize     int
	AppendTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxLen <= 0 {
		o.MaxLen = 1000
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.AppendTimeout <= 0 {
		o.AppendTimeout = 500 * time.Millisecond
	}
	return o
}

type job struct {
	gameID int64
	event  Event
	flush  chan struct{}
}

// Appender 缓冲事件并用 XADD ... MAXLEN 写入。
type Appender struct {
	rdb    redis.Cmdable
	opts   Options
	queue  chan job
	logger *zap.Logger

	written atomic.Int64
	dropped atomic.Int64
}

// NewAppender 创建写入器。必须启动 Run，事件才会写入Redis。
func NewAppender(rdb redis.Cmdable, opts Options, logger *zap.Logger) *Appender {
	opts = opts.withDefaults()
	return &Appender{
		rdb:    rdb,
		opts:   opts,
		queue:  make(chan job, opts.QueueSize),
		logger: logging.OrNop(logger).Named("eventlog"),
	}
}

// Record 以非阻塞方式将 ev 入队。事件被丢弃时返回 false。
func (a *Appender) Record(gameID int64, ev Event) bool {
	select {
	case a.queue <- job{gameID: gameID, event: ev}:
		return true
	default:
		a.dropped.Add(1)
		a.logger.Warn("event queue full, dropping event",
			zap.Int64("game_id", gameID), zap.Int("turn", ev.Turn), zap.String("actor", ev.Actor))
		return false
	}
}

// Flush 等待调用前入队的所有事件都被尝试写入。
func (a *Appender) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case a.queue <- job{flush: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run 持续消费队列直到 graceful 被取消，然后写出仍在缓冲中的事件。
// forceful 被取消时立即停止最后的排空，剩余事件计为丢弃。
func (a *Appender) Run(graceful, forceful *lifecycle.Handle) {
	defer graceful.Close()
	defer forceful.Close()
	a.logger.Info("event writer started", zap.Int("queue_size", a.opts.QueueSize))

	for {
		select {
		case j := <-a.queue:
			a.handle(forceful.Ctx(), j)
		case <-graceful.Done():
			a.drain(forceful)
			a.logger.Info("event writer stopped",
				zap.Int64("written", a.written.Load()), zap.Int64("dropped", a.dropped.Load()))
			return
		}
	}
}

func (a *Appender) drain(forceful *lifecycle.Handle) {
	for {
		select {
		case <-forceful.Done():
			left := int64(len(a.queue))
			a.dropped.Add(left)
			a.logger.Warn("event drain interrupted", zap.Int64("abandoned", left))
			return
		default:
		}
		select {
		case j := <-a.queue:
			a.handle(forceful.Ctx(), j)
		default:
			return
		}
	}
}

func (a *Appender) handle(parent context.Context, j job) {
	if j.flush != nil {
		close(j.flush)
		return
	}

	ctx, cancel := context.WithTimeout(parent, a.opts.AppendTimeout)
	defer cancel()

	err := a.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(j.gameID),
		MaxLen: a.opts.MaxLen,
		Approx: false,
		Values: j.event.values(),
	}).Err()
	if err != nil {
		a.dropped.Add(1)
		a.logger.Warn("append event failed",
			zap.Int64("game_id", j.gameID), zap.Int("turn", j.event.Turn), zap.Error(err))
		return
	}
	a.written.Add(1)
}

// Stats 返回目前已写入和已丢弃的事件数。
func (a *Appender) Stats() (written, dropped int64) {
	return a.written.Load(), a.dropped.Load()
}
