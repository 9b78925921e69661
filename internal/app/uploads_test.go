package app_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woodheaven_farms/internal/app"
	"woodheaven_farms/internal/domain"
	"woodheaven_farms/internal/storage/memory"
)

func newQueue(t *testing.T, store domain.RecordStore, objects domain.ObjectStore) *app.UploadQueue {
	t.Helper()
	q := app.NewUploadQueue(store, objects, nil, app.UploadQueueConfig{
		Concurrency: 2,
		MaxBytes:    64,
		Retention:   time.Minute,
		TempDir:     t.TempDir(),
	})
	t.Cleanup(func() { _ = q.Close(context.Background()) })
	return q
}

func imageFile(name string, extra ...string) app.UploadFile {
	body := append([]byte(nil), png...)
	body = append(body, strings.Join(extra, "")...)
	return app.UploadFile{Filename: name, Body: bytes.NewReader(body)}
}

func TestUploadQueue_Batch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	objects := newFakeObjects()
	objects.failOn = "FAIL"
	q := newQueue(t, store, objects)

	files := []app.UploadFile{
		imageFile("sunset.lawn.jpg"),
		{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("hello")},
		{Filename: "huge.png", Body: bytes.NewReader(bytes.Repeat([]byte("x"), 65))},
		imageFile("broken.png", "FAIL"),
		func() app.UploadFile { f := imageFile("pool.png"); f.Category = "Pool"; return f }(),
	}
	first, err := q.Enqueue(ctx, files, "Lawn")
	require.NoError(t, err)
	require.Len(t, first.Jobs, 5)
	assert.Equal(t, "sunset", first.Jobs[0].Title)
	assert.Equal(t, "Lawn", first.Jobs[0].Category)
	assert.Equal(t, "Pool", first.Jobs[4].Category)
	assert.Equal(t, domain.JobError, first.Jobs[1].Status, "non-images fail on intake")
	assert.Equal(t, domain.JobError, first.Jobs[2].Status, "oversized files fail on intake")

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done, err := q.Wait(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, done.Done())
	require.NotNil(t, done.FinishedAt)

	counts := done.Counts()
	assert.Equal(t, 2, counts[domain.JobCompleted])
	assert.Equal(t, 3, counts[domain.JobError])
	assert.Contains(t, done.Jobs[3].Error, "storage rejected")

	ok := done.Jobs[0]
	require.NotNil(t, ok.Image)
	assert.Equal(t, 100, ok.Progress)
	assert.True(t, strings.HasPrefix(ok.Image.StoragePath, "gallery/"))
	assert.True(t, strings.HasSuffix(ok.Image.StoragePath, ".jpg"))
	assert.Equal(t, "https://cdn.test/gallery/"+ok.Image.StoragePath, ok.Image.URL)

	rows, err := store.Select(ctx, domain.TableGalleryImages, domain.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, objects.keys(), 2)

	snap, err := q.Batch(first.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Counts(), snap.Counts())
}

func TestUploadQueue_FailedInsertRemovesObject(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	q := newQueue(t, failingStore{RecordStore: memory.New(), table: domain.TableGalleryImages}, objects)

	b, err := q.Enqueue(ctx, []app.UploadFile{imageFile("a.png")}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultGalleryCategory, b.Jobs[0].Category)

	done, err := q.Wait(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobError, done.Jobs[0].Status)
	assert.Empty(t, objects.keys())
	assert.Len(t, objects.removed, 1)
}

func TestUploadQueue_Subscribe(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, memory.New(), newFakeObjects())

	b, err := q.Enqueue(ctx, []app.UploadFile{imageFile("a.png"), imageFile("b.png")}, "Rooms")
	require.NoError(t, err)

	ch, cancel, err := q.Subscribe(b.ID)
	require.NoError(t, err)
	defer cancel()

	var last domain.UploadBatch
	timeout := time.After(5 * time.Second)
	for open := true; open; {
		select {
		case snap, ok := <-ch:
			if ok {
				last = snap
			}
			open = ok
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
	assert.True(t, last.Done())
	assert.Equal(t, 2, last.Counts()[domain.JobCompleted])

	// a finished batch yields one snapshot and closes
	ch, _, err = q.Subscribe(b.ID)
	require.NoError(t, err)
	snap, ok := <-ch
	require.True(t, ok)
	assert.True(t, snap.Done())
	_, ok = <-ch
	assert.False(t, ok)
}

func TestUploadQueue_UnknownAndClosed(t *testing.T) {
	ctx := context.Background()
	q := newQueue(t, memory.New(), newFakeObjects())

	_, err := q.Batch("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = q.Subscribe("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = q.Enqueue(ctx, nil, "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	require.NoError(t, q.Close(ctx))
	_, err = q.Enqueue(ctx, []app.UploadFile{imageFile("a.png")}, "")
	assert.ErrorIs(t, err, domain.ErrUnavailable)
}

// gatedObjects holds every Upload until the gate is closed and records the
// peak number of uploads running at once.
type gatedObjects struct {
	*fakeObjects
	gate chan struct{}

	mu       sync.Mutex
	inFlight int
	peak     int
}

func (g *gatedObjects) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) error {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.peak {
		g.peak = g.inFlight
	}
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.inFlight--
		g.mu.Unlock()
	}()

	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.fakeObjects.Upload(ctx, bucket, path, contentType, body)
}

func (g *gatedObjects) running() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight, g.peak
}

func TestUploadQueue_ConcurrencyLimit(t *testing.T) {
	ctx := context.Background()
	objects := &gatedObjects{fakeObjects: newFakeObjects(), gate: make(chan struct{})}
	q := app.NewUploadQueue(memory.New(), objects, nil, app.UploadQueueConfig{
		Concurrency: 2,
		MaxBytes:    64,
		Retention:   time.Minute,
		TempDir:     t.TempDir(),
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = q.Close(ctx)
	})

	var files []app.UploadFile
	for _, n := range []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"} {
		files = append(files, imageFile(n))
	}
	b, err := q.Enqueue(ctx, files, "Rooms")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, _ := objects.running()
		return n == 2
	}, 5*time.Second, 5*time.Millisecond)
	// the other four stay queued while the gate is shut
	time.Sleep(50 * time.Millisecond)
	n, peak := objects.running()
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, peak)

	snap, err := q.Batch(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Counts()[domain.JobUploading])

	close(objects.gate)
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done, err := q.Wait(wctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, done.Counts()[domain.JobCompleted])

	_, peak = objects.running()
	assert.LessOrEqual(t, peak, 2)
}

func TestUploadQueue_FinishedBatchExpires(t *testing.T) {
	ctx := context.Background()
	q := app.NewUploadQueue(memory.New(), newFakeObjects(), nil, app.UploadQueueConfig{
		Concurrency: 1,
		MaxBytes:    64,
		Retention:   200 * time.Millisecond,
		TempDir:     t.TempDir(),
	})
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	b, err := q.Enqueue(ctx, []app.UploadFile{imageFile("a.png")}, "")
	require.NoError(t, err)
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = q.Wait(wctx, b.ID)
	require.NoError(t, err)

	_, err = q.Batch(b.ID)
	require.NoError(t, err, "finished batch is queryable until retention ends")

	require.Eventually(t, func() bool {
		_, err := q.Batch(b.ID)
		return errors.Is(err, domain.ErrNotFound)
	}, 5*time.Second, 10*time.Millisecond)
	_, _, err = q.Subscribe(b.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUploadQueue_ExtensionFollowsContentType(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	q := newQueue(t, memory.New(), objects)

	files := []app.UploadFile{
		{Filename: "x.html", ContentType: "image/png", Body: bytes.NewReader(png)},
		{Filename: "photo.a?b", ContentType: "image/jpeg", Body: bytes.NewReader(png)},
		{Filename: "logo.svg", ContentType: "image/svg+xml", Body: strings.NewReader(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)},
	}
	b, err := q.Enqueue(ctx, files, "")
	require.NoError(t, err)
	assert.Equal(t, domain.JobError, b.Jobs[2].Status, "svg is refused")

	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	done, err := q.Wait(wctx, b.ID)
	require.NoError(t, err)

	require.NotNil(t, done.Jobs[0].Image)
	assert.True(t, strings.HasSuffix(done.Jobs[0].Image.StoragePath, ".png"), done.Jobs[0].Image.StoragePath)
	require.NotNil(t, done.Jobs[1].Image)
	assert.True(t, strings.HasSuffix(done.Jobs[1].Image.StoragePath, ".jpg"), done.Jobs[1].Image.StoragePath)
	for _, k := range objects.keys() {
		assert.NotContains(t, k, "?")
		assert.NotContains(t, k, ".html")
	}
}
