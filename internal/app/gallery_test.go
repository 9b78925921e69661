package app_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/storage/memory"
)

func seedImages(t *testing.T, store *memory.Store, imgs ...domain.Record) {
	t.Helper()
	_, err := store.Insert(context.Background(), domain.TableGalleryImages, imgs)
	require.NoError(t, err)
}

func TestGallery_ListByCategory(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedImages(t, store,
		domain.Record{"title": "pool", "category": "Pool", "url": "u1", "sort_order": 2},
		domain.Record{"title": "room", "category": "Rooms", "url": "u2", "sort_order": 1},
		domain.Record{"title": "deck", "category": "Pool", "url": "u3", "sort_order": 3},
	)
	svc := app.NewGalleryService(store, newFakeObjects(), &fakeCache{}, time.Minute)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Rooms", "Pool"}, all.Categories)
	require.Len(t, all.Images, 3)
	assert.Equal(t, "room", all.Images[0].Title)

	pool, err := svc.List(ctx, "Pool")
	require.NoError(t, err)
	assert.Len(t, pool.Images, 2)
	assert.Equal(t, all.Categories, pool.Categories)

	same, err := svc.List(ctx, domain.CategoryAll)
	require.NoError(t, err)
	assert.Len(t, same.Images, 3)

	none, err := svc.List(ctx, "Lawn")
	require.NoError(t, err)
	assert.Empty(t, none.Images)
}

func TestGallery_Delete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	objects := newFakeObjects()
	require.NoError(t, objects.Upload(ctx, domain.BucketGallery, "gallery/a.jpg", "image/jpeg", strings.NewReader("jpeg")))
	seedImages(t, store, domain.Record{"title": "a", "category": "Lawn", "url": "u", "storage_path": "gallery/a.jpg"})
	cache := &fakeCache{}
	svc := app.NewGalleryService(store, objects, cache, time.Minute)

	require.NoError(t, svc.Delete(ctx, "1"))
	assert.Empty(t, objects.keys())
	assert.Contains(t, cache.dels, "gallery:images")

	err := svc.Delete(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
