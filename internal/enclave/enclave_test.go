package enclave

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestEnvVarsRender(t *testing.T) {
	e := EnvVars{
		ChainID:         137,
		ContractAddress: "0xabc",
		ProviderAddress: "0xdef",
		ChallengeCID:    "bafychallenge",
		OrderID:         "42",
	}
	rendered := e.Render()
	require.Contains(t, rendered, "CHAIN_ID=137")
	require.Contains(t, rendered, "CONTRACT_ADDRESS=0xabc")
	require.Contains(t, rendered, "ORDER_ID=42")
}

func TestWriteComposeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "docker-compose-etny-pynithy.yml")
	job := Job{OrderID: "7", ComposeCID: "cidA", ChallengeCID: "cidB", ResultAddress: "0x1", ResultPrivateKey: "0x2"}

	require.NoError(t, writeComposeFile(path, job))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "on-failure:20")
	require.Contains(t, string(data), "cidA")
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]bool)}
}

func (f *fakeStore) put(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[name] = true
}

func (f *fakeStore) IsObjectInBucket(ctx context.Context, bucket, objectName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[objectName], nil
}

func (f *fakeStore) DownloadFile(ctx context.Context, bucket, objectName, localPath string) error {
	f.mu.Lock()
	present := f.objects[objectName]
	f.mu.Unlock()
	if !present {
		return errors.New("not found")
	}
	return os.WriteFile(localPath, []byte("data"), 0o644)
}

func (f *fakeStore) CreateBucket(ctx context.Context, bucket string) error {
	return nil
}

func (f *fakeStore) UploadFile(ctx context.Context, bucket, objectName, localPath string) error {
	f.put(objectName)
	return nil
}

func TestBucketWatcherAwaitObjectSucceeds(t *testing.T) {
	store := newFakeStore()
	watcher := &BucketWatcher{store: store, bucket: "b"}

	go func() {
		time.Sleep(20 * time.Millisecond)
		store.put(ResultFileName)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, watcher.AwaitObject(ctx, ResultFileName, time.Second))
}

func TestBucketWatcherAwaitObjectTimesOut(t *testing.T) {
	store := newFakeStore()
	watcher := &BucketWatcher{store: store, bucket: "b"}

	ctx := context.Background()
	err := watcher.AwaitObject(ctx, ResultFileName, 10*time.Millisecond)
	require.Error(t, err)
}

type fakeExecutor struct {
	resetCalled bool
	runCalled   bool
	stopCalled  bool
}

func (f *fakeExecutor) ResetRegistry(ctx context.Context, job Job) error { f.resetCalled = true; return nil }
func (f *fakeExecutor) Run(ctx context.Context, job Job) error          { f.runCalled = true; return nil }
func (f *fakeExecutor) Stop(ctx context.Context, job Job) error         { f.stopCalled = true; return nil }

func TestRunHappyPath(t *testing.T) {
	store := newFakeStore()
	exec := &fakeExecutor{}
	dir := t.TempDir()

	payload := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(payload, []byte("payload"), 0o644))

	go func() {
		time.Sleep(10 * time.Millisecond)
		store.put(ResultFileName)
		time.Sleep(10 * time.Millisecond)
		store.put(TransactionFileName)
	}()

	cfg := RunConfig{
		Job:         Job{OrderID: "1", ComposeCID: "cidA", ChallengeCID: "cidB"},
		Bucket:      "order-1",
		PayloadPath: payload,
		Env:         EnvVars{ChainID: 1, OrderID: "1"},
		WorkDir:     dir,
	}
	cfg.resultTimeout = 500 * time.Millisecond
	cfg.transactionTimeout = 500 * time.Millisecond

	_, err := run(context.Background(), store, exec, cfg, testLogger())
	require.NoError(t, err)
	require.True(t, exec.resetCalled)
	require.True(t, exec.runCalled)
}
