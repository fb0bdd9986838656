package worker

import (
	"context"
	"fmt"

	"github.com/ethernity-cloud/mvp-pox-node/internal/events"
)

// Run boots the worker and then drives the dispatch scan loop until ctx
// is cancelled or the supervisor raises stop_event. It is the function a
// supervisor.Supervisor.Run spawn callback calls directly, one goroutine
// per network.
func (w *Worker) Run(ctx context.Context) error {
	w.publish(events.EventWorkerStarted, 0, 0, 0)
	defer w.publish(events.EventWorkerStopped, 0, 0, 0)

	if err := w.boot(ctx); err != nil {
		return fmt.Errorf("worker boot: %w", err)
	}

	w.scanner.Run(ctx, w.scanOnce)
	return nil
}
