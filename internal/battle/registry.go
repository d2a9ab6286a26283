package battle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/eventlog"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"go.uber.org/zap"
)

// Committer 负责持久化已结束的战斗。
type Committer interface {
	CommitGame(ctx context.Context, r record.GameResult) record.CommitResult
}

// IDSource 发放所有服务器共享的对局ID。
type IDSource interface {
	NextGameID(ctx context.Context) (int64, error)
}

// TemplateSource 加载角色模板。
type TemplateSource interface {
	Load(ctx context.Context, id string) combatant.Template
}

type defaultTemplates struct{}

func (defaultTemplates) Load(_ context.Context, id string) combatant.Template {
	t, _ := combatant.DefaultTemplate(id)
	return t
}

// Options 配置 Registry。
type Options struct {
	CommitTimeout time.Duration
	// NewRoller 为每个会话提供独立的随机源
	NewRoller func() combatant.Roller
	Now       func() time.Time
}

// Registry 持有所有进行中的战斗。
// 会话只能通过它的方法访问。
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	touched  map[int64]time.Time

	ids       IDSource
	templates TemplateSource
	committer Committer
	sink      EventSink
	opts      Options
	localID   atomic.Int64
	logger    *zap.Logger
}

// NewRegistry 组装注册表。ids、templates 和 sink 均可为 nil。
func NewRegistry(committer Committer, ids IDSource, templates TemplateSource, sink EventSink, opts Options, logger *zap.Logger) *Registry {
	if templates == nil {
		templates = defaultTemplates{}
	}
	if sink == nil {
		sink = discardSink{}
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRoller == nil {
		opts.NewRoller = func() combatant.Roller {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	return &Registry{
		sessions:  make(map[int64]*Session),
		touched:   make(map[int64]time.Time),
		ids:       ids,
		templates: templates,
		committer: committer,
		sink:      sink,
		opts:      opts,
		logger:    logging.OrNop(logger).Named("battle"),
	}
}

// Start 开启一场新战斗并返回首个快照。
// 共享ID计数器不可达时返回 record.ErrStoreUnavailable。
func (r *Registry) Start(ctx context.Context, playerName string, difficulty combatant.Difficulty) (Snapshot, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		r.logger.Warn("cannot allocate game id", zap.Error(err))
		return Snapshot{}, err
	}

	s := NewSession(SessionConfig{
		ID:         id,
		PlayerName: playerName,
		Difficulty: difficulty,
		Person:     r.templates.Load(ctx, combatant.PersonID),
		Dragon:     r.templates.Load(ctx, combatant.DragonID),
		Roller:     r.opts.NewRoller(),
		Sink:       r.sink,
		Now:        r.opts.Now,
	})

	r.mu.Lock()
	if _, taken := r.sessions[id]; taken {
		r.mu.Unlock()
		r.logger.Error("game id already in use", zap.Int64("game_id", id))
		return Snapshot{}, fmt.Errorf("%w: %d", ErrDuplicateGameID, id)
	}
	r.sessions[id] = s
	r.touched[id] = r.opts.Now()
	r.mu.Unlock()

	r.logger.Info("battle started",
		zap.Int64("game_id", id), zap.String("player", playerName), zap.String("difficulty", string(difficulty)))
	return s.Snapshot(), nil
}

// nextID 从共享计数器取号。
// 只有在没有配置共享计数器时才使用本地序列。
func (r *Registry) nextID(ctx context.Context) (int64, error) {
	if r.ids == nil {
		return r.localID.Add(1), nil
	}
	id, err := r.ids.NextGameID(ctx)
	if err != nil {
		if !errors.Is(err, record.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", record.ErrStoreUnavailable, err)
		}
		return 0, fmt.Errorf("battle: allocate game id: %w", err)
	}
	return id, nil
}

func (r *Registry) lookup(id int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.touched[id] = r.opts.Now()
	return s, nil
}

// Get 返回一场进行中战斗的当前状态。
func (r *Registry) Get(id int64) (Snapshot, error) {
	s, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Snapshot(), nil
}

// Act 将战斗推进一个回合。
// 如果该回合结束了对局，会在返回前提交结果，提交时不持有会话锁。
// 对提交失败的已结束战斗调用 Act 会重试提交。
func (r *Registry) Act(ctx context.Context, id int64, in TurnInput) (Snapshot, error) {
	s, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}

	s.mu.Lock()
	if s.IsOver() && s.pendingSave {
		s.mu.Unlock()
		return r.settle(ctx, s, nil)
	}
	snap, err := s.ProcessTurn(in)
	if err != nil {
		s.mu.Unlock()
		return snap, err
	}
	_, over := s.Result()
	s.mu.Unlock()

	if !over {
		return snap, nil
	}
	r.logger.Info("battle finished",
		zap.Int64("game_id", id), zap.String("winner", string(snap.Winner)), zap.Int("round", snap.Round))
	return r.settle(ctx, s, snap.TurnEvents)
}

// Recommit 为提交失败的已结束战斗重试持久化。
func (r *Registry) Recommit(ctx context.Context, id int64) (Snapshot, error) {
	s, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	if !s.IsOver() {
		s.mu.Unlock()
		return Snapshot{}, ErrInvalidAction
	}
	if !s.pendingSave && s.commit != nil {
		snap := s.Snapshot()
		s.mu.Unlock()
		return snap, nil
	}
	s.mu.Unlock()
	return r.settle(ctx, s, nil)
}

// settle 提交已结束的会话，处理完毕后将其移出注册表
func (r *Registry) settle(ctx context.Context, s *Session, events []eventlog.Event) (Snapshot, error) {
	s.mu.Lock()
	result, _ := s.Result()
	s.mu.Unlock()

	res := r.commit(ctx, result)

	s.mu.Lock()
	s.setCommit(res)
	snap := s.snapshot(events)
	s.mu.Unlock()

	if res.Settled() {
		r.evict(s.ID)
	}
	return snap, nil
}

func (r *Registry) commit(ctx context.Context, result record.GameResult) record.CommitResult {
	if r.committer == nil {
		return record.CommitResult{Status: record.Failure, Err: record.ErrStoreUnavailable}
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.CommitTimeout)
	defer cancel()

	res := r.committer.CommitGame(ctx, result)
	if res.Status == record.Failure {
		r.logger.Warn("battle result kept in memory until the store recovers",
			zap.Int64("game_id", result.GameID), zap.Error(res.Err))
	}
	return res
}

func (r *Registry) evict(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	delete(r.touched, id)
}

// Active 返回当前持有的会话数。
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Pending 列出仍在等待成功提交的已结束战斗。
func (r *Registry) Pending() []int64 {
	r.mu.RLock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.RUnlock()

	var ids []int64
	for _, s := range candidates {
		s.mu.Lock()
		if s.IsOver() && s.pendingSave {
			ids = append(ids, s.ID)
		}
		s.mu.Unlock()
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// RetryPending 重新提交所有保存失败的已结束战斗，
// 返回之后仍待提交的数量。
func (r *Registry) RetryPending(ctx context.Context) int {
	for _, id := range r.Pending() {
		if _, err := r.Recommit(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			r.logger.Warn("recommit failed", zap.Int64("game_id", id), zap.Error(err))
		}
	}
	return len(r.Pending())
}

// Sweep 重试待提交的对局，并丢弃空闲超过 maxIdle 的未结束战斗。
// 返回被丢弃的会话数。
func (r *Registry) Sweep(ctx context.Context, maxIdle time.Duration) int {
	r.RetryPending(ctx)

	cutoff := r.opts.Now().Add(-maxIdle)
	r.mu.Lock()
	var stale []int64
	for id, at := range r.touched {
		if at.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	dropped := 0
	for _, id := range stale {
		r.mu.Lock()
		s, ok := r.sessions[id]
		r.mu.Unlock()
		if !ok {
			continue
		}
		s.mu.Lock()
		keep := s.IsOver() && s.pendingSave
		s.mu.Unlock()
		if keep {
			continue
		}
		r.evict(id)
		dropped++
		r.logger.Info("abandoned battle dropped", zap.Int64("game_id", id))
	}
	return dropped
}

// RunJanitor 按固定间隔清理，直到 handle 被取消。
func (r *Registry) RunJanitor(h *lifecycle.Handle, interval, maxIdle time.Duration) {
	defer h.Close()
	for {
		if err := h.Sleep(interval); err != nil {
			return
		}
		if n := r.Sweep(h.Ctx(), maxIdle); n > 0 {
			r.logger.Info("janitor pass", zap.Int("dropped", n), zap.Int("active", r.Active()))
		}
	}
}
