package worker

import (
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// ShutdownFlag is set once a termination signal arrives. The loop polls it
// at the top of every iteration and never interrupts an in-flight job.
type ShutdownFlag struct {
	set atomic.Bool
}

// Set raises the flag.
func (f *ShutdownFlag) Set() {
	f.set.Store(true)
}

// IsSet reports whether shutdown was requested.
func (f *ShutdownFlag) IsSet() bool {
	return f.set.Load()
}

// NotifyShutdown raises flag when any of sigs arrives, SIGINT and SIGTERM by
// default. The returned func stops signal delivery.
func NotifyShutdown(flag *ShutdownFlag, logger *slog.Logger, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case sig := <-ch:
				logger.Info("Received shutdown signal, finishing current job",
					slog.String("signal", sig.String()),
				)
				flag.Set()
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
