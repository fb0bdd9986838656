package order

import (
	"strconv"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
)

// MaxRetries is the number of times an order's enclave execution may fail
// before the node gives up and synthesizes a failure result instead of
// trying again.
const MaxRetries = 10

// FailureResult is the synthetic result.txt body written for an order
// that has exceeded MaxRetries, standing in for the enclave output the
// node never managed to produce.
const FailureResult = "[Warn] Order execution failed more than 10 times"

// RetryLedger persists the per-order retry count across node restarts, so
// a crash mid-retry doesn't forget how many attempts an order already
// burned through.
type RetryLedger struct {
	kv *cache.KV
}

// OpenRetryLedger opens the retry ledger backed by path.
func OpenRetryLedger(path string) (*RetryLedger, error) {
	kv, err := cache.NewKV(path, 0)
	if err != nil {
		return nil, err
	}
	return &RetryLedger{kv: kv}, nil
}

func key(orderID uint64) string {
	return strconv.FormatUint(orderID, 10)
}

// Count returns the number of attempts already recorded for orderID.
func (l *RetryLedger) Count(orderID uint64) int {
	v, ok := l.kv.Get(key(orderID))
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// RecordAttempt increments orderID's attempt count and returns the new
// total.
func (l *RetryLedger) RecordAttempt(orderID uint64) (int, error) {
	n := l.Count(orderID) + 1
	if err := l.kv.Add(key(orderID), strconv.Itoa(n)); err != nil {
		return n, err
	}
	return n, nil
}

// Exhausted reports whether orderID has already failed more than
// MaxRetries times and should receive the synthetic failure result
// instead of another enclave attempt.
func (l *RetryLedger) Exhausted(orderID uint64) bool {
	return l.Count(orderID) > MaxRetries
}

// Forget removes orderID's retry count, once it has either succeeded or
// been given its synthetic failure result.
func (l *RetryLedger) Forget(orderID uint64) error {
	return l.kv.Remove(key(orderID))
}
