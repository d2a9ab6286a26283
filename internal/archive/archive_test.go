package archive

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SlpAus/dragon-duel-backend/internal/combatant"
	"github.com/SlpAus/dragon-duel-backend/internal/platform/metadata"
	"github.com/SlpAus/dragon-duel-backend/internal/record"
	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commit(t *testing.T, gw *record.Gateway, id int64, player string) {
	t.Helper()
	res := gw.CommitGame(context.Background(), record.GameResult{
		GameID:      id,
		PlayerName:  player,
		Difficulty:  combatant.Hard,
		Winner:      record.WinnerPlayer,
		TotalRounds: int(id) + 3,
		FinishedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Person:      combatant.Stats{TotalDamageDealt: 20, CriticalHits: 2},
		Dragon:      combatant.Stats{TotalDamageDealt: 12, FinalHP: 0},
	})
	require.Equal(t, record.Committed, res.Status)
}

func setup(t *testing.T) (*Store, *Reconciler, *record.Gateway, *redis.Client) {
	t.Helper()
	_, rdb := testutil.NewRedis(t)
	store := NewStore(testutil.NewSQLite(t))
	require.NoError(t, store.Migrate())
	gw := record.NewGateway(rdb, nil, record.Options{}, nil)
	return store, NewReconciler(rdb, store, nil, 2, nil), gw, rdb
}

func TestReconcileArchivesNewGamesOnce(t *testing.T) {
	store, rec, gw, _ := setup(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		commit(t, gw, id, "ada")
	}

	n, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	seen, err := metadata.GetInt64(ctx, store.DB(), metadata.ArchivedListLengthKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), seen)

	commit(t, gw, 6, "bob")
	n, err = rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.Get(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.PlayerName)
	assert.Equal(t, 9, got.TotalRounds)
	assert.Equal(t, "hard", got.Difficulty)
	assert.Equal(t, 20, got.PersonDamage)
}

// commitAfterLength 在下一次 LLEN game:list 返回后立即提交新的对局，
// 模拟另一台服务器并发写入。
type commitAfterLength struct {
	fired  atomic.Bool
	commit func()
}

func (h *commitAfterLength) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *commitAfterLength) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == "llen" && h.fired.CompareAndSwap(false, true) {
			h.commit()
		}
		return err
	}
}

func (h *commitAfterLength) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestReconcileKeepsGamesCommittedDuringPass(t *testing.T) {
	store, rec, gw, rdb := setup(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		commit(t, gw, id, "ada")
	}
	n, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	commit(t, gw, 6, "bob")
	commit(t, gw, 7, "bob")
	rdb.AddHook(&commitAfterLength{commit: func() {
		commit(t, gw, 8, "cy")
		commit(t, gw, 9, "cy")
	}})

	n, err = rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "games counted by LLEN are archived")

	n, err = rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "games pushed mid-pass are picked up next time")

	for id := int64(1); id <= 9; id++ {
		_, err := store.Get(ctx, id)
		assert.NoError(t, err, "game %d archived", id)
	}
	seen, err := metadata.GetInt64(ctx, store.DB(), metadata.ArchivedListLengthKey)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seen)
}

func TestReconcileRescansShorterList(t *testing.T) {
	store, rec, gw, rdb := setup(t)
	ctx := context.Background()
	require.NoError(t, metadata.SetInt64(ctx, store.DB(), metadata.ArchivedListLengthKey, 40))

	commit(t, gw, 1, "ada")
	commit(t, gw, 2, "ada")
	require.Equal(t, int64(2), rdb.LLen(ctx, record.GameListKey).Val())

	n, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestHandleNotificationArchivesGame(t *testing.T) {
	store, rec, gw, _ := setup(t)
	ctx := context.Background()
	commit(t, gw, 3, "cy")

	require.NoError(t, rec.HandleNotification(ctx, record.Notification{GameID: 3}))
	require.NoError(t, rec.HandleNotification(ctx, record.Notification{GameID: 3}), "duplicates are ignored")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	assert.Error(t, rec.HandleNotification(ctx, record.Notification{GameID: 77}))

	n, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "already archived by the notification")
}

func TestArchiveRebuildsRedis(t *testing.T) {
	store, rec, gw, rdb := setup(t)
	ctx := context.Background()
	for id := int64(1); id <= 3; id++ {
		commit(t, gw, id, "ada")
	}
	_, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	require.NoError(t, rdb.FlushAll(ctx).Err())

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, int64(1), all[0].GameID)
	require.NoError(t, gw.Rebuild(ctx, all))

	assert.Equal(t, "3", rdb.Get(ctx, record.TotalGamesKey).Val())
	assert.Equal(t, "ada", rdb.HGet(ctx, record.GameKey(2), "player_name").Val())

	n, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMissingAndGet(t *testing.T) {
	store, _, _, _ := setup(t)
	ctx := context.Background()

	_, err := store.Save(ctx, record.GameRecord{GameID: 2, PlayerName: "x"})
	require.NoError(t, err)

	missing, err := store.Missing(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, missing)

	_, err = store.Get(ctx, 1)
	assert.ErrorIs(t, err, record.ErrGameNotFound)
}
