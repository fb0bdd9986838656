package enclave

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// IntegrationTestTimeout is the one-time SGX capability probe
// budget.
const IntegrationTestTimeout = 300 * time.Second

const integrationTestFileName = "context_test.etny"

// IntegrationTestJob is the fixed image run once per process to probe SGX
// capability, ahead of any real order.
type IntegrationTestJob struct {
	RegistryDir string
	ImageCID    string
	Bucket      string
}

// RunIntegrationTest brings up the integration-test image and polls its
// bucket for context_test.etny up to IntegrationTestTimeout. A true result
// sets can_run_under_sgx; false leaves the worker alive but unable to match
// DO requests.
func RunIntegrationTest(ctx context.Context, exec Executor, watcher *BucketWatcher, job IntegrationTestJob, log zerolog.Logger) (bool, error) {
	log = log.With().Str("component", "enclave.integration_test").Logger()

	probeJob := Job{
		OrderID:     "integration-test",
		RegistryDir: job.RegistryDir,
		ComposeCID:  job.ImageCID,
	}

	if err := exec.ResetRegistry(ctx, probeJob); err != nil {
		return false, fmt.Errorf("reset registry for integration test: %w", err)
	}
	if err := exec.Run(ctx, probeJob); err != nil {
		return false, fmt.Errorf("run integration test image: %w", err)
	}
	defer func() {
		if err := exec.Stop(ctx, probeJob); err != nil {
			log.Warn().Err(err).Msg("failed to stop integration test container")
		}
	}()

	if err := watcher.AwaitObject(ctx, integrationTestFileName, IntegrationTestTimeout); err != nil {
		log.Warn().Err(err).Msg("integration test did not complete in time, SGX unavailable")
		return false, nil
	}

	log.Info().Msg("integration test passed, SGX execution available")
	return true, nil
}
