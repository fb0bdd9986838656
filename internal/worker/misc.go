package worker

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethernity-cloud/mvp-pox-node/internal/order"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

func key(id uint64) string    { return strconv.FormatUint(id, 10) }
func fmtUint(id uint64) string { return strconv.FormatUint(id, 10) }
func parseUint(s string) (uint64, error) { return strconv.ParseUint(s, 10, 64) }

func blockDuration(cfg types.NetworkConfig) time.Duration {
	if cfg.BlockTimeSeconds <= 0 {
		return time.Second
	}
	return time.Duration(cfg.BlockTimeSeconds) * time.Second
}

// sendHeartbeatIfDue is wired into discovery.Hooks.Heartbeat so a long
// reconciliation pass still keeps the node's on-chain liveness signal
// current.
func (w *Worker) sendHeartbeatIfDue(ctx context.Context) error {
	return w.beat.MaybeSend(ctx, time.Now(), "")
}

// dpRequest reads one DP request's current on-chain state. Shared by the
// dispatch path and the order lifecycle; discovery.Pipeline has its own
// unexported copy because it must not depend on internal/worker.
func (w *Worker) dpRequest(ctx context.Context, id uint64) (types.DPRequest, error) {
	var results []interface{}
	if err := w.cfg.Chain.Call(ctx, &results, "_getDPRequest", id); err != nil {
		return types.DPRequest{}, fmt.Errorf("get dp request %d: %w", id, err)
	}
	if len(results) == 0 {
		return types.DPRequest{}, fmt.Errorf("_getDPRequest: empty response")
	}
	req, ok := results[0].(types.DPRequest)
	if !ok {
		return types.DPRequest{}, fmt.Errorf("_getDPRequest: unexpected result shape %T", results[0])
	}
	return req, nil
}

// doRequest reads one DO request's current on-chain state.
func (w *Worker) doRequest(ctx context.Context, id uint64) (types.DORequest, error) {
	var results []interface{}
	if err := w.cfg.Chain.Call(ctx, &results, "_getDORequest", id); err != nil {
		return types.DORequest{}, fmt.Errorf("get do request %d: %w", id, err)
	}
	if len(results) == 0 {
		return types.DORequest{}, fmt.Errorf("_getDORequest: empty response")
	}
	req, ok := results[0].(types.DORequest)
	if !ok {
		return types.DORequest{}, fmt.Errorf("_getDORequest: unexpected result shape %T", results[0])
	}
	return req, nil
}

// openDORequestIDs lists every DO request currently Available on this
// network. getOpenDORequestIds has no original-source precedent in the
// same way getDPRequestIdsForOperator does not; it is the dispatch-side
// counterpart of the same reasoned-ABI choice.
func (w *Worker) openDORequestIDs(ctx context.Context) ([]uint64, error) {
	var results []interface{}
	if err := w.cfg.Chain.Call(ctx, &results, "getOpenDORequestIds"); err != nil {
		return nil, fmt.Errorf("list open do requests: %w", err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("getOpenDORequestIds: empty response")
	}
	ids, ok := results[0].([]uint64)
	if !ok {
		return nil, fmt.Errorf("getOpenDORequestIds: unexpected result shape %T", results[0])
	}
	return ids, nil
}

// resolveOrderID returns the order id bound to dpRequestID, consulting the
// local cache before falling back to a chain read.
func (w *Worker) resolveOrderID(ctx context.Context, dpRequestID uint64) (uint64, error) {
	if v, ok := w.orders.Get(key(dpRequestID)); ok {
		if n, err := parseUint(v); err == nil {
			return n, nil
		}
	}
	var results []interface{}
	if err := w.cfg.Chain.Call(ctx, &results, "getOrderIdByDPRequestId", dpRequestID); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("getOrderIdByDPRequestId: empty response")
	}
	orderID, ok := results[0].(uint64)
	if !ok {
		return 0, fmt.Errorf("getOrderIdByDPRequestId: unexpected result shape %T", results[0])
	}
	if err := w.orders.Add(key(dpRequestID), fmtUint(orderID)); err != nil {
		w.log.Warn().Err(err).Msg("failed to persist order mapping")
	}
	return orderID, nil
}

func (w *Worker) getOrderStatus(ctx context.Context, orderID uint64) (types.OrderStatus, error) {
	ord, err := order.GetOrder(ctx, w.cfg.Chain, orderID)
	if err != nil {
		return 0, err
	}
	return ord.Status, nil
}

func priceOf(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
