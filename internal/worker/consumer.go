package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const deregisterTimeout = 5 * time.Second

// NewConsumerName returns a random consumer identity. Names are never reused,
// so a restarted worker does not inherit the pending entries of its
// previous incarnation.
func NewConsumerName() string {
	return "converter-" + uuid.NewString()
}

// run is the Idle -> Dispatching loop. The shutdown flag is checked once per
// iteration, before the next blocking read.
func (w *Worker) run(ctx context.Context) {
	for {
		if w.shutdown.IsSet() {
			w.logger.Info("Shutdown requested, leaving read loop")
			return
		}
		if ctx.Err() != nil {
			w.logger.Info("Worker context canceled, leaving read loop")
			return
		}

		entries, err := w.queue.Read(ctx, w.consumer)
		if err != nil {
			w.logger.Error("Queue read failed",
				slog.Any("error", err),
				slog.Duration("retry_in", w.retryDelay),
			)
			w.sleep(ctx, w.retryDelay)
			continue
		}

		for _, entry := range entries {
			w.handle(ctx, entry)
		}
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// deregister removes the consumer and its PEL bookkeeping. The group is left
// in place for the rest of the fleet.
func (w *Worker) deregister(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deregisterTimeout)
	defer cancel()

	pending, err := w.queue.RemoveConsumer(ctx, w.consumer)
	if err != nil {
		w.logger.Error("Failed to remove consumer from group",
			slog.Any("error", err),
		)
		return
	}

	w.logger.Info("Consumer removed from group",
		slog.Int64("pending", pending),
	)
}
