// Package runtime threads a process-wide SIGINT/SIGTERM cleanup hook through
// the top-level binary, adapted from the teacher's cmd/signal.go
// listenSignals helper.
package runtime

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/flowcore/taskrunner/internal/logger"
)

// CleanupFunc releases one external resource (a headless-browser session, a
// DB connection, an armed scheduler) on shutdown.
type CleanupFunc func()

// Hooks accumulates CleanupFunc registrations and runs them once, in
// reverse-registration order, on the first SIGINT/SIGTERM or context
// cancellation.
type Hooks struct {
	mu    sync.Mutex
	funcs []CleanupFunc
	once  sync.Once
}

// Register appends fn to the cleanup list. Safe to call concurrently.
func (h *Hooks) Register(fn CleanupFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.funcs = append(h.funcs, fn)
}

// Run executes every registered hook exactly once, in last-in-first-out
// order (mirroring defer semantics).
func (h *Hooks) Run() {
	h.once.Do(func() {
		h.mu.Lock()
		funcs := append([]CleanupFunc(nil), h.funcs...)
		h.mu.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			funcs[i]()
		}
	})
}

// WaitForSignal blocks until ctx is done or a SIGINT/SIGTERM arrives, then
// runs h and returns. This is the long-running process's shutdown path: a
// scheduler or server main loop calls this after starting its work in the
// background.
func WaitForSignal(ctx context.Context, h *Hooks, log logger.Logger) {
	if log == nil {
		log = logger.Default
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-ctx.Done():
		log.Info("runtime: context canceled, shutting down")
	case sig := <-sigs:
		log.Infof("runtime: received signal %v, shutting down", sig)
	}

	h.Run()
}
