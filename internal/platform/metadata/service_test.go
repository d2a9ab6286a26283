package metadata

import (
	"context"
	"testing"

	"github.com/SlpAus/dragon-duel-backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuesRoundTrip(t *testing.T) {
	db := testutil.NewSQLite(t)
	require.NoError(t, Migrate(db))
	ctx := context.Background()

	v, err := GetValue(ctx, db, ArchivedListLengthKey)
	require.NoError(t, err)
	assert.Empty(t, v)

	n, err := GetInt64(ctx, db, ArchivedListLengthKey)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, SetInt64(ctx, db, ArchivedListLengthKey, 12))
	require.NoError(t, SetInt64(ctx, db, ArchivedListLengthKey, 15))
	n, err = GetInt64(ctx, db, ArchivedListLengthKey)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)

	require.NoError(t, SetValue(ctx, db, LastRebuildAtKey, "garbage"))
	_, err = GetInt64(ctx, db, LastRebuildAtKey)
	assert.Error(t, err)
}
