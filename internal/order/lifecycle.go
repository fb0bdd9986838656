package order

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ethernity-cloud/mvp-pox-node/internal/retry"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// Caller is the read-only chain surface GetOrder needs.
type Caller interface {
	Call(ctx context.Context, results *[]interface{}, method string, args ...interface{}) error
}

// GetOrder reads one order's current on-chain state.
func GetOrder(ctx context.Context, chain Caller, orderID uint64) (types.Order, error) {
	var results []interface{}
	if err := chain.Call(ctx, &results, "getOrder", orderID); err != nil {
		return types.Order{}, fmt.Errorf("get order %d: %w", orderID, err)
	}
	if len(results) < 1 {
		return types.Order{}, fmt.Errorf("get order %d: empty response", orderID)
	}
	order, ok := results[0].(types.Order)
	if !ok {
		return types.Order{}, fmt.Errorf("get order %d: unexpected result shape", orderID)
	}
	return order, nil
}

// AwaitApproval polls the order's status every blockTime seconds, up to
// ceil(60/blockTime) attempts, the same budget as the 10-attempt/5s
// polling loop the order-placement flow originally used, rescaled to this
// network's block cadence rather than a fixed 5s step.
func AwaitApproval(ctx context.Context, orderID uint64, blockTime time.Duration, getStatus func(ctx context.Context) (types.OrderStatus, error)) (bool, error) {
	attempts := int(math.Ceil(60 / blockTime.Seconds()))
	if attempts < 1 {
		attempts = 1
	}

	policy := retry.FixedDelay(attempts, blockTime)
	approved := false

	err := retry.Do(ctx, policy, func(attempt int) error {
		status, err := getStatus(ctx)
		if err != nil {
			return err
		}
		if status == types.OrderOpen {
			return fmt.Errorf("order %d still open", orderID)
		}
		approved = true
		return nil
	})
	if approved {
		return true, nil
	}
	return false, err
}
