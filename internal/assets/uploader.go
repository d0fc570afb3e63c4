package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = time.Second
)

// ObjectStore writes objects to a bucket. GCSObjectStore is the production
// implementation; tests substitute an in-memory one.
type ObjectStore interface {
	NewWriter(ctx context.Context, object, contentType string) (io.WriteCloser, error)
}

// GCSObjectStore adapts a Cloud Storage bucket handle to ObjectStore.
type GCSObjectStore struct {
	Bucket *storage.BucketHandle
}

func (s GCSObjectStore) NewWriter(ctx context.Context, object, contentType string) (io.WriteCloser, error) {
	if s.Bucket == nil {
		return nil, errors.New("assets: bucket is required")
	}
	w := s.Bucket.Object(object).NewWriter(ctx)
	w.ContentType = contentType
	return w, nil
}

// Asset is one object to upload.
type Asset struct {
	Object      string
	ContentType string
	Data        []byte
}

// UploadFailure records one asset that could not be written.
type UploadFailure struct {
	Object string
	Err    error
}

// UploadReport summarises a batched upload run.
type UploadReport struct {
	Uploaded int
	Failures []UploadFailure
}

// Uploader writes assets in small bounded batches with an inter-batch delay
// to respect the upstream rate limit.
type Uploader struct {
	store     ObjectStore
	batchSize int
	delay     time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	logger    func(context.Context, string, map[string]any)
}

type UploaderDeps struct {
	Store      ObjectStore
	BatchSize  int
	BatchDelay time.Duration
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     func(context.Context, string, map[string]any)
}

func NewUploader(deps UploaderDeps) (*Uploader, error) {
	if deps.Store == nil {
		return nil, errors.New("assets: object store is required")
	}
	batchSize := deps.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	delay := deps.BatchDelay
	if delay <= 0 {
		delay = defaultBatchDelay
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &Uploader{
		store:     deps.Store,
		batchSize: batchSize,
		delay:     delay,
		sleep:     sleep,
		logger:    logger,
	}, nil
}

// UploadAll writes every asset, batch by batch. Individual failures are
// collected in the report; only context cancellation aborts the run.
func (u *Uploader) UploadAll(ctx context.Context, assets []Asset) (UploadReport, error) {
	var report UploadReport
	for start := 0; start < len(assets); start += u.batchSize {
		if start > 0 && u.delay > 0 {
			if err := u.sleep(ctx, u.delay); err != nil {
				return report, err
			}
		}
		end := start + u.batchSize
		if end > len(assets) {
			end = len(assets)
		}

		batch := assets[start:end]
		failures := make([]error, len(batch))
		var wg sync.WaitGroup
		for i, asset := range batch {
			wg.Add(1)
			go func(i int, asset Asset) {
				defer wg.Done()
				failures[i] = u.upload(ctx, asset)
			}(i, asset)
		}
		wg.Wait()

		for i, err := range failures {
			if err != nil {
				u.logger(ctx, "assets.upload.failed", map[string]any{
					"object": batch[i].Object,
					"error":  err.Error(),
				})
				report.Failures = append(report.Failures, UploadFailure{Object: batch[i].Object, Err: err})
				continue
			}
			report.Uploaded++
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (u *Uploader) upload(ctx context.Context, asset Asset) error {
	if asset.Object == "" {
		return errors.New("assets: object name is required")
	}
	w, err := u.store.NewWriter(ctx, asset.Object, asset.ContentType)
	if err != nil {
		return err
	}
	if _, err := w.Write(asset.Data); err != nil {
		_ = w.Close()
		return fmt.Errorf("assets: write %s: %w", asset.Object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("assets: close %s: %w", asset.Object, err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
