package notify

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/gin-gonic/gin"
)

const subscriberBuffer = 16

// Broadcaster 将通知转发给在线的监听者。
// 处理慢的监听者会错过消息，而不会拖慢其他监听者。
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[chan record.Notification]struct{}
	closed    bool
}

// NewBroadcaster 创建一个空的广播器。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[chan record.Notification]struct{})}
}

// Listen 注册一个监听者，调用返回的函数即可注销。
// 注销或广播器关闭时通道会被关闭。
func (b *Broadcaster) Listen() (<-chan record.Notification, func()) {
	ch := make(chan record.Notification, subscriberBuffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.listeners[ch] = struct{}{}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.listeners[ch]; ok {
			delete(b.listeners, ch)
			close(ch)
		}
	}
}

// Close 断开所有监听者以结束打开的流，之后不再接受新的监听者。
// 用于 http.Server.RegisterOnShutdown。
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.listeners {
		delete(b.listeners, ch)
		close(ch)
	}
}

// Publish 满足 HandlerFunc。
func (b *Broadcaster) Publish(_ context.Context, n record.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// Listeners 返回当前的监听者数量。
func (b *Broadcaster) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Stream 以SSE推送通知，直到客户端断开。
func (b *Broadcaster) Stream(c *gin.Context) {
	ch, stop := b.Listen()
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(n.Event, n)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", gin.H{"at": time.Now().Unix()})
			return true
		}
	})
}
