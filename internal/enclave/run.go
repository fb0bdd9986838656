package enclave

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Store is the bucket CRUD surface Run needs beyond ObjectStore's polling
// subset (create the bucket, upload the inputs).
type Store interface {
	ObjectStore
	CreateBucket(ctx context.Context, bucket string) error
	UploadFile(ctx context.Context, bucket, objectName, localPath string) error
}

// RunConfig carries everything a single order execution needs to hand the
// enclave its inputs and collect its output.
type RunConfig struct {
	Job         Job
	Bucket      string
	PayloadPath string
	InputPath   string // optional, empty if the order carries no input
	Env         EnvVars
	WorkDir     string // scratch dir for the rendered .env file

	// resultTimeout and transactionTimeout default to ResultTimeout and
	// TransactionTimeout; tests override them to keep runs fast.
	resultTimeout      time.Duration
	transactionTimeout time.Duration
}

// Result is what an enclave run produced.
type Result struct {
	ResultLocalPath      string
	TransactionLocalPath string
}

// Run prepares the order's bucket, brings the enclave up, and waits for it
// to hand back a result and transaction. It does not interpret or submit
// those files; that belongs to the order lifecycle.
func Run(ctx context.Context, store Store, exec Executor, cfg RunConfig, log zerolog.Logger) (*Result, error) {
	return run(ctx, store, exec, cfg, log)
}

func run(ctx context.Context, store Store, exec Executor, cfg RunConfig, log zerolog.Logger) (*Result, error) {
	resultTimeout, txTimeout := cfg.resultTimeout, cfg.transactionTimeout
	if resultTimeout == 0 {
		resultTimeout = ResultTimeout
	}
	if txTimeout == 0 {
		txTimeout = TransactionTimeout
	}
	log = log.With().Str("component", "enclave.run").Str("order_id", cfg.Job.OrderID).Logger()

	if err := store.CreateBucket(ctx, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
	}

	envPath := filepath.Join(cfg.WorkDir, ".env")
	if err := cfg.Env.WriteFile(envPath); err != nil {
		return nil, fmt.Errorf("write env file: %w", err)
	}

	uploads := map[string]string{
		"payload":  cfg.PayloadPath,
		".env":     envPath,
	}
	if cfg.InputPath != "" {
		uploads["input"] = cfg.InputPath
	}
	for name, path := range uploads {
		if err := store.UploadFile(ctx, cfg.Bucket, name, path); err != nil {
			return nil, fmt.Errorf("upload %s to bucket: %w", name, err)
		}
	}

	log.Info().Msg("resetting docker registry")
	if err := exec.ResetRegistry(ctx, cfg.Job); err != nil {
		return nil, fmt.Errorf("reset registry: %w", err)
	}

	log.Info().Msg("starting enclave compose stack")
	if err := exec.Run(ctx, cfg.Job); err != nil {
		return nil, fmt.Errorf("run enclave: %w", err)
	}

	watcher := NewBucketWatcher(store, cfg.Bucket)

	log.Info().Msg("waiting for result")
	if err := watcher.AwaitObject(ctx, ResultFileName, resultTimeout); err != nil {
		return nil, fmt.Errorf("await result: %w", err)
	}
	resultPath := filepath.Join(cfg.WorkDir, ResultFileName)
	if err := watcher.FetchResult(ctx, resultPath); err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}

	log.Info().Msg("waiting for transaction")
	if err := watcher.AwaitObject(ctx, TransactionFileName, txTimeout); err != nil {
		return nil, fmt.Errorf("await transaction: %w", err)
	}
	txPath := filepath.Join(cfg.WorkDir, TransactionFileName)
	if err := watcher.FetchTransaction(ctx, txPath); err != nil {
		return nil, fmt.Errorf("fetch transaction: %w", err)
	}

	return &Result{ResultLocalPath: resultPath, TransactionLocalPath: txPath}, nil
}
