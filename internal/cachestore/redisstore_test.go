package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/airware/buzzard-go/internal/geomodel"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr
}

func TestRedisStore_WriteThenRead(t *testing.T) {
	mr := setupTestRedis(t)
	store, err := NewRedisStore("redis://"+mr.Addr()+"/0", time.Hour)
	require.NoError(t, err)

	fp := geomodel.Footprint{OriginX: 0, OriginY: 0, ScaleX: 1, ScaleY: -1, Width: 4, Height: 4}
	ctx := context.Background()

	exists, err := store.Exists(ctx, fp)
	require.NoError(t, err)
	require.False(t, exists)

	arr := Array{Data: []float64{1, 2, 3, 4}, Width: 2, Height: 2, Bands: 1}
	require.NoError(t, store.WriteAtomic(ctx, fp, arr))

	exists, err = store.Exists(ctx, fp)
	require.NoError(t, err)
	require.True(t, exists)

	got, err := store.Read(ctx, fp)
	require.NoError(t, err)
	require.Equal(t, arr, got)
}

func TestRedisStore_ReadMissIsError(t *testing.T) {
	mr := setupTestRedis(t)
	store, err := NewRedisStore("redis://"+mr.Addr()+"/0", time.Hour)
	require.NoError(t, err)

	fp := geomodel.Footprint{OriginX: 0, OriginY: 0, ScaleX: 1, ScaleY: -1, Width: 4, Height: 4}
	_, err = store.Read(context.Background(), fp)
	require.Error(t, err)
}

func TestRedisStore_TTLExpiresEntries(t *testing.T) {
	mr := setupTestRedis(t)
	store, err := NewRedisStore("redis://"+mr.Addr()+"/0", time.Second)
	require.NoError(t, err)

	fp := geomodel.Footprint{OriginX: 0, OriginY: 0, ScaleX: 1, ScaleY: -1, Width: 4, Height: 4}
	require.NoError(t, store.WriteAtomic(context.Background(), fp, Array{Data: []float64{1}, Width: 1, Height: 1, Bands: 1}))

	mr.FastForward(2 * time.Second)

	exists, err := store.Exists(context.Background(), fp)
	require.NoError(t, err)
	require.False(t, exists, "entry should have expired")
}
