package combatant

import (
	"context"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateStoreFallsBackToDefaults(t *testing.T) {
	_, rdb := testutil.NewRedis(t)
	store := NewTemplateStore(rdb, nil)

	got := store.Load(context.Background(), DragonID)
	want, _ := DefaultTemplate(DragonID)
	assert.Equal(t, want, got)
}

func TestTemplateStoreSeedKeepsCustomFields(t *testing.T) {
	ctx := context.Background()
	_, rdb := testutil.NewRedis(t)
	require.NoError(t, rdb.HSet(ctx, TemplateKey(PersonID), "name", "Ada's Knight", "base_hp", "24").Err())

	store := NewTemplateStore(rdb, nil)
	require.NoError(t, store.Seed(ctx))

	person := store.Load(ctx, PersonID)
	assert.Equal(t, "Ada's Knight", person.Name)
	assert.Equal(t, 24, person.BaseHP)
	assert.Equal(t, "Light Slash", person.SkillNames[0])

	dragon := store.Load(ctx, DragonID)
	assert.Equal(t, "Dragon King", dragon.Name)
}

func TestTemplateStoreRedisDown(t *testing.T) {
	mr, rdb := testutil.NewRedis(t)
	mr.Close()

	got := NewTemplateStore(rdb, nil).Load(context.Background(), PersonID)
	assert.Equal(t, "Hero", got.Name)
}

func TestSpawnAppliesOffset(t *testing.T) {
	tpl, _ := DefaultTemplate(DragonID)
	c := tpl.Spawn(Hard, 3)
	assert.Equal(t, 23, c.HP)
	assert.Equal(t, 23, c.InitialHP)
	assert.Equal(t, 5, c.CritRateBonus)
}
