package enclave

import (
	"context"
	"fmt"
	"time"
)

// pollInterval is how often the bucket watcher checks for an expected
// object, shortened to a tenth of the timeout when that is smaller. The
// original health checker (pkg/health/exec.go) polls on a fixed cadence
// under a context timeout; this follows the same shape.
const pollInterval = 5 * time.Second

// ResultFileName and TransactionFileName are the two objects the enclave
// collaborator writes into the order's bucket once it finishes.
const (
	ResultFileName      = "result.txt"
	TransactionFileName = "transaction.txt"
)

// ResultTimeout and TransactionTimeout are execution timeouts.
const (
	ResultTimeout      = 3600 * time.Second
	TransactionTimeout = 60 * time.Second
)

// ObjectStore is the subset of internal/objectstore.Client the bucket
// watcher needs. Declared here so this package can be tested without a
// live bucket service.
type ObjectStore interface {
	IsObjectInBucket(ctx context.Context, bucket, objectName string) (bool, error)
	DownloadFile(ctx context.Context, bucket, objectName, localPath string) error
}

// BucketWatcher polls an S3-compatible bucket for files the enclave
// collaborator is expected to produce.
type BucketWatcher struct {
	store  ObjectStore
	bucket string
}

// NewBucketWatcher returns a watcher over bucket.
func NewBucketWatcher(store ObjectStore, bucket string) *BucketWatcher {
	return &BucketWatcher{store: store, bucket: bucket}
}

// AwaitObject blocks, polling every pollInterval (or every timeout/10 when
// that is shorter), until objectName appears in the bucket, ctx is
// cancelled, or timeout elapses.
func (w *BucketWatcher) AwaitObject(ctx context.Context, objectName string, timeout time.Duration) error {
	deadlineCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := pollInterval
	if short := timeout / 10; short < interval {
		interval = short
	}
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		present, err := w.store.IsObjectInBucket(deadlineCtx, w.bucket, objectName)
		if err == nil && present {
			return nil
		}
		select {
		case <-deadlineCtx.Done():
			return fmt.Errorf("timed out waiting for %s/%s: %w", w.bucket, objectName, deadlineCtx.Err())
		case <-ticker.C:
		}
	}
}

// FetchResult downloads result.txt to localPath.
func (w *BucketWatcher) FetchResult(ctx context.Context, localPath string) error {
	return w.store.DownloadFile(ctx, w.bucket, ResultFileName, localPath)
}

// FetchTransaction downloads transaction.txt to localPath.
func (w *BucketWatcher) FetchTransaction(ctx context.Context, localPath string) error {
	return w.store.DownloadFile(ctx, w.bucket, TransactionFileName, localPath)
}
