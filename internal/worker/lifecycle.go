package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/events"
	"github.com/ethernity-cloud/mvp-pox-node/internal/metrics"
	"github.com/ethernity-cloud/mvp-pox-node/internal/order"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// resumeBooked is discovery.Hooks.ResumeBooked: an order already Open or
// Processing against one of our DP requests gets the lifecycle resumed
// from approval rather than re-placed.
func (w *Worker) resumeBooked(ctx context.Context, dpRequestID, orderID uint64) error {
	do, err := w.doRequestForOrder(ctx, orderID)
	if err != nil {
		return err
	}
	return w.runLifecycle(ctx, dpRequestID, orderID, do)
}

// placeAndRun places a fresh order binding dpID to do, then runs the
// lifecycle through to completion.
func (w *Worker) placeAndRun(ctx context.Context, dpID uint64, do types.DORequest) error {
	hash, err := w.cfg.Chain.Send(ctx, "placeOrder", dpID, do.ID)
	if err != nil {
		return fmt.Errorf("placeOrder: %w", err)
	}
	if _, err := w.cfg.Chain.Wait(ctx, hash); err != nil {
		return fmt.Errorf("await placeOrder receipt: %w", err)
	}
	metrics.OrdersPlacedTotal.WithLabelValues(w.cfg.Network).Inc()
	w.publish(events.EventOrderPlaced, dpID, do.ID, 0)

	orderID, err := w.resolveOrderID(ctx, dpID)
	if err != nil {
		return fmt.Errorf("resolve placed order id: %w", err)
	}

	return w.runLifecycle(ctx, dpID, orderID, do)
}

func (w *Worker) doRequestForOrder(ctx context.Context, orderID uint64) (types.DORequest, error) {
	ord, err := order.GetOrder(ctx, w.cfg.Chain, orderID)
	if err != nil {
		return types.DORequest{}, err
	}
	return w.doRequest(ctx, ord.DORequestID)
}

// runLifecycle awaits approval, executes the enclave, reports the result
// and computes the reward, retrying against the on-disk ledger up to
// order.MaxRetries before giving up with the synthetic failure result.
func (w *Worker) runLifecycle(ctx context.Context, dpRequestID, orderID uint64, do types.DORequest) error {
	log := w.log.With().Uint64("order_id", orderID).Uint64("dp_request_id", dpRequestID).Logger()

	approved, err := order.AwaitApproval(ctx, orderID, blockDuration(w.cfg.NetworkConfig), func(ctx context.Context) (types.OrderStatus, error) {
		return w.getOrderStatus(ctx, orderID)
	})
	if err != nil || !approved {
		return fmt.Errorf("order %d was not approved: %w", orderID, err)
	}
	w.publish(events.EventOrderApproved, dpRequestID, do.ID, orderID)

	if !w.sgxAvailable() {
		log.Warn().Msg("skipping enclave execution: SGX unavailable on this host")
		return nil
	}
	if w.retries.Exhausted(orderID) {
		return w.reportFailure(ctx, dpRequestID, orderID, do, order.FailureResult)
	}

	result, err := w.execute(ctx, orderID, do)
	if err != nil {
		if _, rerr := w.retries.RecordAttempt(orderID); rerr != nil {
			log.Warn().Err(rerr).Msg("failed to record retry attempt")
		}
		metrics.ResultRetriesTotal.WithLabelValues(w.cfg.Network).Inc()
		return fmt.Errorf("enclave execution failed: %w", err)
	}

	resultBody, err := os.ReadFile(result.ResultLocalPath)
	if err != nil {
		return fmt.Errorf("read result file: %w", err)
	}
	return w.reportSuccess(ctx, dpRequestID, orderID, do, string(resultBody))
}

func (w *Worker) execute(ctx context.Context, orderID uint64, do types.DORequest) (*enclave.Result, error) {
	job, err := order.BuildJob(do, orderID, w.cfg.ResultAddress, w.cfg.ResultPrivateKey, filepath.Join(w.cfg.RegistryDir, key(orderID)))
	if err != nil {
		return nil, err
	}

	payloadRef, err := order.PayloadRef(do)
	if err != nil {
		return nil, fmt.Errorf("parse payload hash: %w", err)
	}
	if err := w.cfg.Content.Download(ctx, payloadRef.CID); err != nil {
		return nil, fmt.Errorf("download payload: %w", err)
	}

	var inputPath string
	if inputRef, err := order.InputRef(do); err == nil && inputRef.CID != "" {
		if err := w.cfg.Content.Download(ctx, inputRef.CID); err != nil {
			return nil, fmt.Errorf("download input: %w", err)
		}
		inputPath = filepath.Join(w.cfg.Paths.ContentDir(), inputRef.CID)
	}

	workDir := filepath.Join(w.cfg.WorkDir, key(orderID))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create order work dir: %w", err)
	}

	timer := metrics.NewTimer()
	result, err := enclave.Run(ctx, w.cfg.Store, w.cfg.Executor, enclave.RunConfig{
		Job:         job,
		Bucket:      "etny-order-" + key(orderID),
		PayloadPath: filepath.Join(w.cfg.Paths.ContentDir(), payloadRef.CID),
		InputPath:   inputPath,
		Env: enclave.EnvVars{
			ChainID:         w.cfg.NetworkConfig.ChainID,
			ContractAddress: w.cfg.NetworkConfig.ContractAddress,
			ProviderAddress: w.cfg.Chain.Address().Hex(),
			ChallengeCID:    job.ChallengeCID,
			OrderID:         job.OrderID,
		},
		WorkDir: workDir,
	}, w.log)
	timer.ObserveDurationVec(metrics.EnclaveExecutionDuration, w.cfg.Network)
	if err != nil {
		metrics.EnclaveExecutionsTotal.WithLabelValues(w.cfg.Network, "error").Inc()
		return nil, err
	}
	metrics.EnclaveExecutionsTotal.WithLabelValues(w.cfg.Network, "ok").Inc()
	return result, nil
}

func (w *Worker) reportSuccess(ctx context.Context, dpRequestID, orderID uint64, do types.DORequest, resultBody string) error {
	hash, err := w.cfg.Chain.Send(ctx, "submitResult", orderID, resultBody)
	if err != nil {
		return fmt.Errorf("submitResult: %w", err)
	}
	if _, err := w.cfg.Chain.Wait(ctx, hash); err != nil {
		return fmt.Errorf("await submitResult receipt: %w", err)
	}

	if err := w.retries.Forget(orderID); err != nil {
		w.log.Warn().Err(err).Msg("failed to clear retry ledger")
	}
	w.finishOrder(dpRequestID, orderID, do, "submitted")
	w.publish(events.EventResultSubmitted, dpRequestID, do.ID, orderID)
	return nil
}

func (w *Worker) reportFailure(ctx context.Context, dpRequestID, orderID uint64, do types.DORequest, failureResult string) error {
	hash, err := w.cfg.Chain.Send(ctx, "submitResult", orderID, failureResult)
	if err != nil {
		return fmt.Errorf("submitResult (failure): %w", err)
	}
	if _, err := w.cfg.Chain.Wait(ctx, hash); err != nil {
		return fmt.Errorf("await submitResult (failure) receipt: %w", err)
	}
	w.finishOrder(dpRequestID, orderID, do, "retry_limit_exceeded")
	w.publish(events.EventResultRetryLimit, dpRequestID, do.ID, orderID)
	return nil
}

// finishOrder reconciles every cache that tracks this order's lifetime:
// the DO request is now terminal, the reward is computed for the audit
// log, and the operator is free to post a fresh DP request next cycle.
func (w *Worker) finishOrder(dpRequestID, orderID uint64, do types.DORequest, outcome string) {
	if err := w.doreq.Add(key(do.ID)); err != nil {
		w.log.Warn().Err(err).Msg("failed to persist terminal do request")
	}
	if err := w.dpreq.Add(key(dpRequestID)); err != nil {
		w.log.Warn().Err(err).Msg("failed to persist terminal dp request")
	}
	if err := w.merged.Append(cache.MergedOrder{DORequestID: do.ID, DPRequestID: dpRequestID, OrderID: orderID}); err != nil {
		w.log.Warn().Err(err).Msg("failed to append merged orders audit entry")
	}
	metrics.OrdersClosedTotal.WithLabelValues(w.cfg.Network, outcome).Inc()

	reward, err := order.Reward(w.cfg.NetworkConfig.RewardType, priceOf(do.Price), do.Duration, w.cfg.NetworkConfig.NetworkFeePercent, w.cfg.NetworkConfig.EnclaveFeePercent)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to compute reward")
	} else {
		w.log.Info().Uint64("order_id", orderID).Float64("reward", reward).Str("outcome", outcome).Msg("order closed")
	}

	w.mu.Lock()
	w.dpRequestKnown = false
	w.mu.Unlock()
}

func (w *Worker) publish(eventType events.EventType, dpRequestID, doRequestID, orderID uint64) {
	if w.cfg.Broker == nil {
		return
	}
	w.cfg.Broker.Publish(&events.Event{
		Type:    eventType,
		Network: w.cfg.Network,
		Message: "order lifecycle transition",
		Metadata: map[string]string{
			"dp_request_id": key(dpRequestID),
			"do_request_id": key(doRequestID),
			"order_id":      key(orderID),
		},
	})
}
