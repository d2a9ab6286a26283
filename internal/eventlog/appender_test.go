package eventlog

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/SlpAus/dragon-duel-backend/pkg/lifecycle"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startAppender(t *testing.T, a *Appender) (graceful, forceful *lifecycle.Manager) {
	t.Helper()
	graceful = lifecycle.NewManager("graceful", nil)
	forceful = lifecycle.NewManager("forceful", nil)
	gh, err := graceful.NewServiceHandle("eventlog")
	require.NoError(t, err)
	fh, err := forceful.NewServiceHandle("eventlog")
	require.NoError(t, err)
	go a.Run(gh, fh)
	t.Cleanup(func() {
		graceful.Shutdown()
		forceful.Shutdown()
		forceful.WaitWithTimeout(time.Second)
	})
	return graceful, forceful
}

// silentRedis 接受连接但从不应答，每条命令都会读超时。
func silentRedis(t *testing.T) *redis.Client {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	rdb := redis.NewClient(&redis.Options{
		Addr:        ln.Addr().String(),
		ReadTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		_ = rdb.Close()
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return rdb
}

func TestReplayPreservesOrderAndFields(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	a := NewAppender(rdb, Options{}, nil)
	startAppender(t, a)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Turn: 1, Actor: "A", Side: "person", Action: "Basic", Value: 2, Timestamp: at},
		{Turn: 1, Actor: "B", Side: "dragon", Action: "Heal", Value: 4, Detail: "Recovered HP", Timestamp: at.Add(time.Millisecond)},
	}
	for _, ev := range events {
		require.True(t, a.Record(42, ev))
	}
	require.NoError(t, a.Flush(context.Background()))

	got, err := Replay(context.Background(), rdb, 42)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range events {
		assert.Equal(t, events[i].Turn, got[i].Turn)
		assert.Equal(t, events[i].Actor, got[i].Actor)
		assert.Equal(t, events[i].Side, got[i].Side)
		assert.Equal(t, events[i].Action, got[i].Action)
		assert.Equal(t, events[i].Value, got[i].Value)
		assert.Equal(t, events[i].Detail, got[i].Detail)
		assert.True(t, events[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestStreamIsCapped(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	a := NewAppender(rdb, Options{MaxLen: 3}, nil)
	startAppender(t, a)

	for turn := 1; turn <= 5; turn++ {
		a.Record(7, Event{Turn: turn, Actor: "person", Action: "Basic Attack", Value: 2})
	}
	require.NoError(t, a.Flush(context.Background()))

	got, err := Replay(context.Background(), rdb, 7)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3, got[0].Turn)
	assert.Equal(t, 5, got[2].Turn)
}

func TestRecordNeverBlocksWhenQueueIsFull(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	a := NewAppender(rdb, Options{QueueSize: 1}, nil) // worker not started

	assert.True(t, a.Record(1, Event{Turn: 1}))
	assert.False(t, a.Record(1, Event{Turn: 2}))

	_, dropped := a.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestStoreDownIsSwallowed(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	a := NewAppender(rdb, Options{AppendTimeout: 100 * time.Millisecond}, nil)
	startAppender(t, a)

	mr.Close()
	assert.True(t, a.Record(3, Event{Turn: 1}))
	require.NoError(t, a.Flush(context.Background()))

	written, dropped := a.Stats()
	assert.Zero(t, written)
	assert.Equal(t, int64(1), dropped)
}

func TestReplayOfUnknownGameIsEmpty(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	got, err := Replay(context.Background(), rdb, 999)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGracefulStopDrainsQueue(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	a := NewAppender(rdb, Options{}, nil)
	for turn := 1; turn <= 20; turn++ {
		require.True(t, a.Record(5, Event{Turn: turn}))
	}

	graceful, _ := startAppender(t, a)
	graceful.Shutdown()
	assert.Empty(t, graceful.WaitWithTimeout(2*time.Second))

	written, dropped := a.Stats()
	assert.Equal(t, int64(20), written)
	assert.Zero(t, dropped)
}

func TestForcefulStopAbandonsDrain(t *testing.T) {
	a := NewAppender(silentRedis(t), Options{QueueSize: 64, AppendTimeout: 200 * time.Millisecond}, nil)
	for turn := 1; turn <= 50; turn++ {
		require.True(t, a.Record(9, Event{Turn: turn}))
	}

	graceful, forceful := startAppender(t, a)
	graceful.Shutdown()
	time.Sleep(300 * time.Millisecond)

	begin := time.Now()
	forceful.Shutdown()
	assert.Empty(t, forceful.WaitWithTimeout(2*time.Second), "drain stops once forced")
	assert.Less(t, time.Since(begin), 2*time.Second)

	written, dropped := a.Stats()
	assert.Zero(t, written)
	assert.Equal(t, int64(50), dropped)
}
