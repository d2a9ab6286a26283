package record

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Status 是一次提交尝试的结果。
type Status int

const (
	Committed Status = iota
	AlreadyCommitted
	Conflict
	Failure
)

func (s Status) String() string {
	switch s {
	case Committed:
		return "committed"
	case AlreadyCommitted:
		return "already_committed"
	case Conflict:
		return "conflict"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// CommitResult 代替 error 返回，调用方根据 Status 分支处理。
type CommitResult struct {
	Status   Status
	Attempts int
	Err      error
}

// Settled 判断该对局是否无需再次提交。
// 冲突也视为已了结，因为只有重复的提交者才会造成冲突。
func (r CommitResult) Settled() bool {
	return r.Status != Failure
}

// Recorded 判断本次调用是否写入了该对局。
func (r CommitResult) Recorded() bool {
	return r.Status == Committed
}

// retryOnConflict 在事务被中止时重试 op，最多 attempts 次。
// 返回尝试次数和最终错误，所有尝试都被中止时返回 ErrConflictExceededRetries
func retryOnConflict(ctx context.Context, attempts int, op func(attempt int) error) (int, error) {
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := op(attempt)
		if !errors.Is(err, redis.TxFailedErr) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
	}
	return attempts, ErrConflictExceededRetries
}
