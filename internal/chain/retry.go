package chain

import (
	"context"
	"time"

	"github.com/ethernity-cloud/mvp-pox-node/internal/retry"
)

// sendPolicy is retry policy: up to 20 attempts, 5s fixed
// delay between them.
var sendPolicy = retry.FixedDelay(20, 5*time.Second)

func retryDo(ctx context.Context, op func(attempt int) error) error {
	return retry.Do(ctx, sendPolicy, op)
}

// stopRetry wraps err so retry.Do aborts immediately instead of consuming
// the remaining attempts, for non-transient failures like a contract
// logic revert or an unresolvable fee ceiling breach.
func stopRetry(err error) error {
	return &retry.Stop{Err: err}
}
