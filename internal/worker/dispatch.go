package worker

import (
	"context"

	"github.com/ethernity-cloud/mvp-pox-node/internal/dispersion"
	"github.com/ethernity-cloud/mvp-pox-node/internal/metrics"
)

// resumeAvailable is discovery.Hooks.ResumeAvailable: a DP request of
// ours that survived a crash without ever matching a DO request becomes
// the scanner's active id again.
func (w *Worker) resumeAvailable(ctx context.Context, dpRequestID uint64) error {
	w.mu.Lock()
	w.dpRequestID, w.dpRequestKnown = dpRequestID, true
	w.mu.Unlock()
	return nil
}

// scanOnce is the dispersion.Scanner callback: one pass over every open
// DO request, checking pin/resource/slot eligibility against this node's
// own DP request before attempting to place an order.
func (w *Worker) scanOnce(ctx context.Context) error {
	dpID, ok := w.ownDPRequestID()
	if !ok {
		return nil
	}
	dp, err := w.dpRequest(ctx, dpID)
	if err != nil {
		w.log.Warn().Err(err).Msg("dispatch scan: failed to read own dp request")
		return nil
	}

	doIDs, err := w.openDORequestIDs(ctx)
	if err != nil {
		return err
	}

	operatorCount, err := w.beat.OperatorCount(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("dispatch scan: failed to read operator count, defaulting to 1")
		operatorCount = 1
	}
	metrics.DispersionOperatorCount.WithLabelValues(w.cfg.Network).Set(float64(operatorCount))

	for _, doID := range doIDs {
		if w.cfg.Gate.Stopped() {
			return nil
		}
		if w.doreq.Contains(key(doID)) {
			continue
		}

		do, err := w.doRequest(ctx, doID)
		if err != nil {
			w.log.Warn().Err(err).Uint64("do_request_id", doID).Msg("dispatch scan: failed to read do request, skipping")
			continue
		}

		if dispersion.PinnedForOther(do, w.cfg.Chain.Address().Hex()) {
			continue
		}
		if !dispersion.FitsResourceFilter(do, dp) {
			continue
		}

		eligible := dispersion.SkipsDispersionCheck(do, w.cfg.Chain.Address().Hex())
		if !eligible {
			decision, err := w.scanner.Evaluate(ctx, dpID, doID, operatorCount, w.cfg.NetworkConfig.IsTestnet())
			if err != nil {
				w.log.Warn().Err(err).Msg("dispatch scan: failed to evaluate dispersion slot")
				continue
			}
			eligible = decision.Eligible
		}
		metrics.DispersionEligible.WithLabelValues(w.cfg.Network).Set(boolFloat(eligible))
		if !eligible {
			continue
		}
		if !w.sgxAvailable() {
			// Without a passed SGX probe this node never matches DO requests.
			continue
		}

		if err := w.cfg.Gate.Acquire(ctx, w.cfg.Network); err != nil {
			return nil
		}
		err = w.placeAndRun(ctx, dpID, do)
		w.cfg.Gate.Release(w.cfg.Network)
		if err != nil {
			w.log.Error().Err(err).Uint64("do_request_id", doID).Msg("order processing failed")
		}
		// One match per pass: the dp request is booked now, nothing left
		// to scan against until it frees up again.
		return nil
	}
	return nil
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
