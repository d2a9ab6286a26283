// Package notify 消费持久化网关发布的对局完成通知，
// 并在进程内分发。
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/logging"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HandlerFunc 处理一条通知。错误只记录日志，不会重试。
type HandlerFunc func(ctx context.Context, n record.Notification) error

// Subscriber 监听通知频道。
type Subscriber struct {
	rdb      redis.UniversalClient
	handlers map[string]HandlerFunc
	timeout  time.Duration
	logger   *zap.Logger
	ready    chan struct{}

	retryMin time.Duration
	retryMax time.Duration
}

// NewSubscriber 创建一个没有处理器的订阅者。
func NewSubscriber(rdb redis.UniversalClient, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		rdb:      rdb,
		handlers: make(map[string]HandlerFunc),
		timeout:  5 * time.Second,
		logger:   logging.OrNop(logger).Named("notify"),
		ready:    make(chan struct{}),
		retryMin: time.Second,
		retryMax: 30 * time.Second,
	}
}

// Handle 以 name 注册 fn。必须在 Run 之前调用。
func (s *Subscriber) Handle(name string, fn HandlerFunc) {
	s.handlers[name] = fn
}

// Ready 在Redis确认订阅后关闭。
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run 订阅并分发通知，直到 handle 被取消。
// 订阅失败时按退避间隔重试。
func (s *Subscriber) Run(h *lifecycle.Handle) {
	defer h.Close()

	sub := s.subscribe(h)
	if sub == nil {
		s.logger.Info("notification subscriber stopped before subscribing")
		return
	}
	defer sub.Close()
	close(s.ready)
	s.logger.Info("listening for game notifications", zap.Int("handlers", len(s.handlers)))

	msgs := sub.Channel()
	for {
		select {
		case <-h.Done():
			s.logger.Info("notification subscriber stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			s.dispatch(h.Ctx(), msg.Payload)
		}
	}
}

func (s *Subscriber) subscribe(h *lifecycle.Handle) *redis.PubSub {
	delay := s.retryMin
	for {
		sub := s.rdb.Subscribe(h.Ctx(), record.NotificationChannel)
		_, err := sub.Receive(h.Ctx())
		if err == nil {
			return sub
		}
		_ = sub.Close()
		if h.Err() != nil {
			return nil
		}
		s.logger.Warn("subscribe failed, retrying", zap.Duration("retry_in", delay), zap.Error(err))
		if h.Sleep(delay) != nil {
			return nil
		}
		delay = min(delay*2, s.retryMax)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, payload string) {
	var n record.Notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		s.logger.Warn("undecodable notification", zap.Error(err))
		return
	}
	if n.Event != record.EventGameCompleted {
		s.logger.Debug("ignoring notification", zap.String("event", n.Event))
		return
	}
	for name, fn := range s.handlers {
		hctx, cancel := context.WithTimeout(ctx, s.timeout)
		err := fn(hctx, n)
		cancel()
		if err != nil {
			s.logger.Warn("notification handler failed",
				zap.String("handler", name), zap.Int64("game_id", n.GameID), zap.Error(err))
		}
	}
}
