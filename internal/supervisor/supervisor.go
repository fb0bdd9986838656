// Package supervisor implements the process-wide coordination primitives
// shared by every network worker: the at-most-one-active-task mutex, the
// once-per-process SGX integration test, and the periodic cooperative
// restart of the whole worker pool. None of it is specific to any one
// network, which is why it lives apart from internal/worker.
package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// RestartInterval is the cadence of the full cooperative worker-pool
// restart.
const RestartInterval = 24 * time.Hour

// Supervisor owns the task_running_on mutex, the integration-test gate,
// and the restart timer described spanning every
// worker goroutine the process runs.
type Supervisor struct {
	log zerolog.Logger

	mu            sync.Mutex
	taskRunningOn string
	stopped       bool

	itOnce   sync.Once
	itResult bool
	itErr    error
}

// New builds a Supervisor.
func New(log zerolog.Logger) *Supervisor {
	return &Supervisor{log: log.With().Str("component", "supervisor").Logger()}
}

// Busy reports whether a network other than network currently holds the
// task mutex. Satisfies internal/dispersion.TaskGate.
func (s *Supervisor) Busy(network string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.taskRunningOn != "" && s.taskRunningOn != network
}

// Stopped reports whether the supervisor has raised stop_event for the
// in-progress cooperative restart. Satisfies internal/dispersion.TaskGate.
func (s *Supervisor) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Acquire blocks, polling every second, until network can claim the task
// mutex (task_running_on == null), then claims it. Returns early with
// ctx's error if ctx is cancelled while waiting.
func (s *Supervisor) Acquire(ctx context.Context, network string) error {
	for {
		s.mu.Lock()
		if s.taskRunningOn == "" {
			s.taskRunningOn = network
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// Release resets the task mutex, but only if network is still the
// holder — a worker that lost its claim (e.g. during a restart) must not
// clobber whoever holds it now.
func (s *Supervisor) Release(network string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taskRunningOn == network {
		s.taskRunningOn = ""
	}
}

// RunIntegrationTestOnce runs the SGX capability probe exactly once per
// process: the first caller executes run and every other concurrent or
// later caller blocks until it finishes and receives the same outcome.
func (s *Supervisor) RunIntegrationTestOnce(ctx context.Context, run func(ctx context.Context) (bool, error)) (bool, error) {
	s.itOnce.Do(func() {
		s.itResult, s.itErr = run(ctx)
	})
	return s.itResult, s.itErr
}

func (s *Supervisor) raiseStop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

func (s *Supervisor) clearStop() {
	s.mu.Lock()
	s.stopped = false
	s.taskRunningOn = ""
	s.mu.Unlock()
}

// Run starts one goroutine per network via spawn, then every
// restartInterval tears the whole pool down and rebuilds it: it raises
// stop_event, waits for every spawned goroutine to return (a worker
// mid-execution is never interrupted, per this design's decision that
// the restart waits rather than kills), clears stop_event and the task
// mutex, and starts a fresh pool over the same network set. Run blocks
// until ctx is cancelled, at which point it performs one final stop and
// returns.
func (s *Supervisor) Run(ctx context.Context, restartInterval time.Duration, networks []string, spawn func(ctx context.Context, network string)) {
	if restartInterval <= 0 {
		restartInterval = RestartInterval
	}

	for {
		poolCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		for _, network := range networks {
			wg.Add(1)
			go func(network string) {
				defer wg.Done()
				spawn(poolCtx, network)
			}(network)
		}

		timer := time.NewTimer(restartInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.raiseStop()
			cancel()
			wg.Wait()
			return
		case <-timer.C:
			s.log.Info().Msg("cooperative restart: raising stop_event and waiting for workers")
			s.raiseStop()
			wg.Wait()
			cancel()
			s.clearStop()
			s.log.Info().Msg("cooperative restart: worker pool rebuilt")
		}
	}
}
