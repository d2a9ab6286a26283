package health

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/internal/platform/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu       sync.Mutex
	ids      []string
	errs     []error
	rebuilds int
	fail     error
}

func (f *fakeRedis) runID(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, err := f.ids[0], f.errs[0]
	if len(f.ids) > 1 {
		f.ids, f.errs = f.ids[1:], f.errs[1:]
	}
	return id, err
}

func (f *fakeRedis) script(ids []string, errs []error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids, f.errs = ids, errs
}

func (f *fakeRedis) rebuild(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
	return f.fail
}

var errDown = errors.New("connection refused")

func newChecker(t *testing.T, f *fakeRedis) (*Checker, *database.Status) {
	t.Helper()
	status := database.NewStatus(nil)
	c := NewChecker(f.runID, f.rebuild, status, nil)
	f.script([]string{"aaa"}, []error{nil})
	require.NoError(t, c.Initialize(context.Background()))
	return c, status
}

func TestCheckerStaysHealthyOnSameRunID(t *testing.T) {
	f := &fakeRedis{}
	c, status := newChecker(t, f)

	assert.Equal(t, StateHealthy, c.Check(context.Background()))
	assert.True(t, status.IsRedisHealthy())
	assert.Zero(t, f.rebuilds)
}

func TestCheckerDegradesAndRecovers(t *testing.T) {
	f := &fakeRedis{}
	c, status := newChecker(t, f)
	ctx := context.Background()

	f.script([]string{""}, []error{errDown})
	assert.Equal(t, StateDegraded, c.Check(ctx))
	assert.False(t, status.IsRedisHealthy())

	f.script([]string{"aaa"}, []error{nil})
	assert.Equal(t, StateHealthy, c.Check(ctx))
	assert.True(t, status.IsRedisHealthy())
	assert.Zero(t, f.rebuilds)
}

func TestCheckerRebuildsAfterRestart(t *testing.T) {
	f := &fakeRedis{}
	c, status := newChecker(t, f)

	f.script([]string{"bbb"}, []error{nil})
	assert.Equal(t, StateHealthy, c.Check(context.Background()))
	assert.Equal(t, 1, f.rebuilds)
	assert.Equal(t, "bbb", status.LastKnownRunID())
}

func TestCheckerRetriesFailedRebuild(t *testing.T) {
	f := &fakeRedis{fail: errors.New("archive offline")}
	c, status := newChecker(t, f)
	ctx := context.Background()

	f.script([]string{"bbb"}, []error{nil})
	assert.Equal(t, StateRebuilding, c.Check(ctx))
	assert.False(t, status.IsRedisHealthy())

	f.fail = nil
	assert.Equal(t, StateHealthy, c.Check(ctx))
	assert.Equal(t, 2, f.rebuilds)
	assert.True(t, status.IsRedisHealthy())
}

func TestCheckerDiscardsRebuildAcrossSecondRestart(t *testing.T) {
	f := &fakeRedis{}
	c, _ := newChecker(t, f)
	ctx := context.Background()

	// 第一次检查看到 bbb，重建后的检查已经看到 ccc
	f.script([]string{"bbb", "ccc"}, []error{nil, nil})
	assert.Equal(t, StateRebuilding, c.Check(ctx))

	assert.Equal(t, StateHealthy, c.Check(ctx))
	assert.Equal(t, 2, f.rebuilds)
}

func TestParseRunID(t *testing.T) {
	id, err := parseRunID("# Server\r\nredis_version:7.2.4\r\nrun_id:3f9a0c11b2\r\ntcp_port:6379\r\n")
	require.NoError(t, err)
	assert.Equal(t, "3f9a0c11b2", id)

	_, err = parseRunID("# Server\r\nredis_version:7.2.4\r\n")
	assert.ErrorIs(t, err, ErrNoRunID)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "rebuilding", StateRebuilding.String())
	assert.Equal(t, "unknown", State(9).String())
}
