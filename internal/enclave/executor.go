// Package enclave drives the container-engine collaborator: it
// shells out to docker/docker-compose to bring up the enclave image that
// executes an order, then watches the bucket the enclave hands results back
// through. The container engine is fire-and-forget from here; the bucket is
// the actual synchronization point.
package enclave

import "context"

// Job describes one order's enclave run.
type Job struct {
	OrderID           string
	RegistryDir       string // local path bind-mounted into the registry container
	ComposeCID        string
	ChallengeCID      string
	ResultAddress     string
	ResultPrivateKey  string
}

// Executor is the container-engine boundary. docker.go is the only
// implementation; the interface exists so order lifecycle code and tests
// don't depend on os/exec directly.
type Executor interface {
	// ResetRegistry stops and removes any previous local docker registry,
	// prunes all unused images, and starts a fresh registry bound to
	// job.RegistryDir.
	ResetRegistry(ctx context.Context, job Job) error

	// Run removes any stale container for this order and launches the
	// compose stack detached, returning once the container has been
	// started (it does not wait for the run to finish).
	Run(ctx context.Context, job Job) error

	// Stop tears down the job's container; RunIntegrationTest calls it
	// once the SGX probe is over.
	Stop(ctx context.Context, job Job) error
}
