package pipeline

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// notifyCancel installs two-phase interrupt handling. The first SIGINT or
// SIGTERM sets the graceful flag, which the runner honors at the next file
// boundary. A second signal cancels the context, aborting in-flight
// subprocess work immediately.
func notifyCancel(cancel context.CancelFunc, logger *slog.Logger) (*atomic.Bool, func()) {
	graceful := &atomic.Bool{}
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		received := 0
		for {
			select {
			case <-done:
				return
			case <-signals:
				received++
				if received == 1 {
					graceful.Store(true)
					logger.Warn("stop requested, finishing current file (interrupt again to abort)")
					continue
				}
				logger.Warn("second interrupt, aborting current file")
				cancel()
				return
			}
		}
	}()

	stop := func() {
		signal.Stop(signals)
		close(done)
	}
	return graceful, stop
}
