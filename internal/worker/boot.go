package worker

import (
	"context"
	"fmt"

	"github.com/ethernity-cloud/mvp-pox-node/internal/cache"
	"github.com/ethernity-cloud/mvp-pox-node/internal/enclave"
	"github.com/ethernity-cloud/mvp-pox-node/internal/types"
)

// runIntegrationTestProbe adapts enclave.RunIntegrationTest into the
// no-argument shape IntegrationTestRunner.RunIntegrationTestOnce expects.
func (w *Worker) runIntegrationTestProbe(ctx context.Context) (bool, error) {
	watcher := enclave.NewBucketWatcher(w.cfg.Store, w.cfg.IntegrationTestJob.Bucket)
	if err := w.cfg.Store.CreateBucket(ctx, w.cfg.IntegrationTestJob.Bucket); err != nil {
		return false, fmt.Errorf("create integration test bucket: %w", err)
	}
	return enclave.RunIntegrationTest(ctx, w.cfg.Executor, watcher, w.cfg.IntegrationTestJob, w.log)
}

// boot runs the once-per-process SGX probe and this network's DP request
// registration, then the three-pass discovery reconciliation, before the
// dispatch loop starts.
func (w *Worker) boot(ctx context.Context) error {
	ok, err := w.cfg.IntegrationTest.RunIntegrationTestOnce(ctx, w.runIntegrationTestProbe)
	if err != nil {
		w.log.Warn().Err(err).Msg("integration test probe errored, treating as SGX unavailable")
	}
	w.mu.Lock()
	w.canRunUnderSGX = ok
	w.mu.Unlock()
	if !ok {
		w.log.Warn().Msg("SGX execution unavailable on this host; worker will discover and track orders but not match DO requests")
	}

	if err := w.ensureDPRequest(ctx); err != nil {
		return fmt.Errorf("register dp request: %w", err)
	}

	if err := w.pipeline.Run(ctx); err != nil {
		return fmt.Errorf("discovery pipeline: %w", err)
	}
	return nil
}

// ensureDPRequest makes sure this node has a live Available or Booked DP
// request on chain, posting a new one (postDPRequest) from
// cfg.Advertisement if its last-known id is missing, Canceled or not
// found. The id is cached in network_cache so a restart doesn't post a
// duplicate advertisement every boot.
func (w *Worker) ensureDPRequest(ctx context.Context) error {
	net, err := cache.NewKV(w.cfg.Paths.NetworkCacheFile(), 1)
	if err != nil {
		return fmt.Errorf("open network cache: %w", err)
	}

	if v, ok := net.Get(w.cfg.Network); ok {
		if id, err := parseUint(v); err == nil {
			req, err := w.dpRequest(ctx, id)
			if err == nil && req.Status != types.StatusCanceled {
				w.mu.Lock()
				w.dpRequestID, w.dpRequestKnown = id, true
				w.mu.Unlock()
				return nil
			}
		}
	}

	adv := w.cfg.Advertisement
	hash, err := w.cfg.Chain.Send(ctx, "postDPRequest", adv.CPU, adv.Memory, adv.Storage, adv.Bandwidth, adv.Duration, priceOf(adv.Price), adv.UUID)
	if err != nil {
		return fmt.Errorf("postDPRequest: %w", err)
	}
	w.log.Info().Str("tx", hash.Hex()).Msg("posted dp request advertisement")

	var results []interface{}
	if err := w.cfg.Chain.Call(ctx, &results, "getDPRequestIdsForOperator", w.cfg.Chain.Address().Hex()); err != nil {
		return fmt.Errorf("resolve new dp request id: %w", err)
	}
	ids, ok := results[0].([]uint64)
	if !ok || len(ids) == 0 {
		return fmt.Errorf("resolve new dp request id: no ids returned for operator")
	}
	newID := ids[len(ids)-1]

	w.mu.Lock()
	w.dpRequestID, w.dpRequestKnown = newID, true
	w.mu.Unlock()
	return net.Add(w.cfg.Network, key(newID))
}

func (w *Worker) ownDPRequestID() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dpRequestID, w.dpRequestKnown
}

func (w *Worker) sgxAvailable() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canRunUnderSGX
}
