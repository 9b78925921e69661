package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"woodheaven_farms/internal/adapters/observability"
	"woodheaven_farms/internal/domain"
)

// UploadFile is one file handed to the queue. Title and Category are
// optional.
type UploadFile struct {
	Filename    string
	ContentType string
	Title       string
	Category    string
	Body        io.Reader
}

type UploadQueueConfig struct {
	Concurrency int
	MaxBytes    int64
	// Retention is how long finished batches stay queryable.
	Retention time.Duration
	// TempDir holds spooled files until their job runs; empty means os.TempDir.
	TempDir string
}

// UploadQueue runs bulk gallery uploads in the background. Each batch is a
// set of independent jobs; a failing job never stops its siblings.
type UploadQueue struct {
	records domain.RecordStore
	objects domain.ObjectStore
	cache   domain.Cache
	cfg     UploadQueueConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	batches map[string]*batch
	now     func() time.Time
}

type batch struct {
	snap    domain.UploadBatch
	spools  []string // temp file per job, "" when the job failed on intake
	types   []string
	subs    map[int]chan domain.UploadBatch
	nextSub int
	done    chan struct{}
	expiry  *time.Timer
}

func NewUploadQueue(r domain.RecordStore, o domain.ObjectStore, c domain.Cache, cfg UploadQueueConfig) *UploadQueue {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 15 << 20
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &UploadQueue{
		records: r, objects: o, cache: c, cfg: cfg,
		ctx: ctx, cancel: cancel,
		batches: map[string]*batch{},
		now:     time.Now,
	}
}

// Enqueue spools the files and starts the batch. It returns the first
// snapshot, with every accepted job pending.
func (q *UploadQueue) Enqueue(ctx context.Context, files []UploadFile, defaultCategory string) (domain.UploadBatch, error) {
	if len(files) == 0 {
		return domain.UploadBatch{}, domain.Invalid("files", "at least one file is required")
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return domain.UploadBatch{}, fmt.Errorf("%w: upload queue closed", domain.ErrUnavailable)
	}

	b := &batch{
		snap: domain.UploadBatch{ID: uuid.NewString(), CreatedAt: q.now().UTC()},
		subs: map[int]chan domain.UploadBatch{},
		done: make(chan struct{}),
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			b.cleanup()
			return domain.UploadBatch{}, err
		}
		job := domain.UploadJob{
			ID:       uuid.NewString(),
			Filename: f.Filename,
			Title:    strings.TrimSpace(f.Title),
			Category: pickCategory(f.Category, defaultCategory),
			Status:   domain.JobPending,
		}
		if job.Title == "" {
			job.Title = titleFromFilename(f.Filename)
		}
		spool, ct, err := q.spool(f)
		if err != nil {
			job.Status = domain.JobError
			job.Error = err.Error()
			observability.ObserveUpload(string(domain.JobError))
		}
		b.snap.Jobs = append(b.snap.Jobs, job)
		b.spools = append(b.spools, spool)
		b.types = append(b.types, ct)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		b.cleanup()
		return domain.UploadBatch{}, fmt.Errorf("%w: upload queue closed", domain.ErrUnavailable)
	}
	q.batches[b.snap.ID] = b
	snap := b.snapshot()
	q.wg.Add(1)
	q.mu.Unlock()

	log.Info().Str("batch", snap.ID).Int("files", len(files)).Msg("upload batch queued")
	go q.run(b)
	return snap, nil
}

// spool copies the file to disk so the job can outlive the request. Files
// that are too large or not images are refused here.
func (q *UploadQueue) spool(f UploadFile) (string, string, error) {
	tmp, err := os.CreateTemp(q.cfg.TempDir, "whf-upload-*")
	if err != nil {
		return "", "", fmt.Errorf("spool upload: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(f.Body, q.cfg.MaxBytes+1))
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	fail := func(e error) (string, string, error) {
		os.Remove(tmp.Name())
		return "", "", e
	}
	if err != nil {
		return fail(fmt.Errorf("spool upload: %w", err))
	}
	if n > q.cfg.MaxBytes {
		return fail(fmt.Errorf("file is larger than %d MB", q.cfg.MaxBytes>>20))
	}

	head, err := readHead(tmp.Name())
	if err != nil {
		return fail(err)
	}
	ct, ok := imageType(f.Filename, f.ContentType, head)
	if !ok {
		return fail(errors.New("file is not an image"))
	}
	return tmp.Name(), ct, nil
}

func readHead(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(fh, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}

func (q *UploadQueue) run(b *batch) {
	defer q.wg.Done()

	g := new(errgroup.Group)
	g.SetLimit(q.cfg.Concurrency)
	for i := range b.snap.Jobs {
		if b.spools[i] == "" {
			continue
		}
		g.Go(func() error {
			q.runJob(b, i)
			return nil
		})
	}
	_ = g.Wait()

	q.mu.Lock()
	fin := q.now().UTC()
	b.snap.FinishedAt = &fin
	q.publish(b)
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	close(b.done)
	if !q.closed {
		id := b.snap.ID
		b.expiry = time.AfterFunc(q.cfg.Retention, func() { q.forget(id) })
	}
	counts := b.snap.Counts()
	q.mu.Unlock()

	log.Info().
		Str("batch", b.snap.ID).
		Int("completed", counts[domain.JobCompleted]).
		Int("failed", counts[domain.JobError]).
		Msg("upload batch finished")
}

func (q *UploadQueue) runJob(b *batch, i int) {
	observability.UploadsInFlight.Inc()
	defer observability.UploadsInFlight.Dec()
	defer os.Remove(b.spools[i])

	q.mu.Lock()
	b.snap.Jobs[i].Status = domain.JobUploading
	job := b.snap.Jobs[i]
	q.publish(b)
	q.mu.Unlock()

	img, err := q.store(job, b.spools[i], b.types[i])

	q.mu.Lock()
	j := &b.snap.Jobs[i]
	if err != nil {
		j.Status = domain.JobError
		j.Error = err.Error()
		log.Warn().Err(err).Str("batch", b.snap.ID).Str("file", job.Filename).Msg("gallery upload failed")
	} else {
		j.Status = domain.JobCompleted
		j.Progress = 100
		j.Image = &img
	}
	observability.ObserveUpload(string(j.Status))
	q.publish(b)
	q.mu.Unlock()

	if err == nil {
		evict(q.ctx, q.cache, galleryKey)
	}
}

// store uploads the object and records it. The object is removed again
// when the row cannot be written.
func (q *UploadQueue) store(job domain.UploadJob, spool, contentType string) (domain.GalleryImage, error) {
	fh, err := os.Open(spool)
	if err != nil {
		return domain.GalleryImage{}, err
	}
	defer fh.Close()

	path := fmt.Sprintf("gallery/%s.%s", uuid.NewString(), extension(contentType))
	if err := q.objects.Upload(q.ctx, domain.BucketGallery, path, contentType, fh); err != nil {
		return domain.GalleryImage{}, fmt.Errorf("store %s: %w", job.Filename, err)
	}
	img := domain.GalleryImage{
		Title:       job.Title,
		Category:    job.Category,
		StoragePath: path,
		URL:         q.objects.PublicURL(domain.BucketGallery, path),
	}
	rec := domain.Record{
		"title":        img.Title,
		"category":     img.Category,
		"storage_path": img.StoragePath,
		"url":          img.URL,
	}
	rows, err := q.records.Insert(q.ctx, domain.TableGalleryImages, []domain.Record{rec})
	if err != nil {
		if rerr := q.objects.Remove(context.WithoutCancel(q.ctx), domain.BucketGallery, path); rerr != nil {
			log.Warn().Err(rerr).Str("path", path).Msg("orphaned gallery object")
		}
		return domain.GalleryImage{}, fmt.Errorf("record %s: %w", job.Filename, err)
	}
	if len(rows) > 0 {
		if err := domain.FromRecord(rows[0], &img); err != nil {
			return domain.GalleryImage{}, err
		}
	}
	return img, nil
}

// Batch returns a snapshot of a known batch.
func (q *UploadQueue) Batch(id string) (domain.UploadBatch, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.batches[id]
	if !ok {
		return domain.UploadBatch{}, fmt.Errorf("%w: upload batch %s", domain.ErrNotFound, id)
	}
	return b.snapshot(), nil
}

// Subscribe streams snapshots of a batch. The current snapshot is delivered
// first; a slow reader only sees the latest one. The channel is closed once
// the batch has finished, or by the returned cancel func.
func (q *UploadQueue) Subscribe(id string) (<-chan domain.UploadBatch, func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.batches[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: upload batch %s", domain.ErrNotFound, id)
	}
	ch := make(chan domain.UploadBatch, 1)
	ch <- b.snapshot()
	select {
	case <-b.done:
		close(ch)
		return ch, func() {}, nil
	default:
	}

	sub := b.nextSub
	b.nextSub++
	b.subs[sub] = ch
	return ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if c, ok := b.subs[sub]; ok {
			delete(b.subs, sub)
			close(c)
		}
	}, nil
}

// Wait blocks until the batch has finished.
func (q *UploadQueue) Wait(ctx context.Context, id string) (domain.UploadBatch, error) {
	q.mu.Lock()
	b, ok := q.batches[id]
	q.mu.Unlock()
	if !ok {
		return domain.UploadBatch{}, fmt.Errorf("%w: upload batch %s", domain.ErrNotFound, id)
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		return domain.UploadBatch{}, ctx.Err()
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return b.snapshot(), nil
}

// Close refuses new batches and waits for running ones. When ctx ends
// first, in-flight jobs are cancelled.
func (q *UploadQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	for _, b := range q.batches {
		if b.expiry != nil {
			b.expiry.Stop()
		}
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *UploadQueue) forget(id string) {
	q.mu.Lock()
	delete(q.batches, id)
	q.mu.Unlock()
}

// publish hands the latest snapshot to every subscriber. q.mu must be held.
func (q *UploadQueue) publish(b *batch) {
	if len(b.subs) == 0 {
		return
	}
	snap := b.snapshot()
	for _, ch := range b.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (b *batch) snapshot() domain.UploadBatch {
	s := b.snap
	s.Jobs = append([]domain.UploadJob(nil), b.snap.Jobs...)
	return s
}

func (b *batch) cleanup() {
	for _, p := range b.spools {
		if p != "" {
			os.Remove(p)
		}
	}
}

func pickCategory(c, def string) string {
	if c = strings.TrimSpace(c); domain.IsGalleryCategory(c) {
		return c
	}
	if def = strings.TrimSpace(def); domain.IsGalleryCategory(def) {
		return def
	}
	return domain.DefaultGalleryCategory
}
