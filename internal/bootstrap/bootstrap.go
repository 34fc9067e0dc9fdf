// Package bootstrap runs the server process and its graceful shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const DefaultShutdownTimeout = 10 * time.Second

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// App runs a blocking function and, on SIGINT or SIGTERM or when the parent
// context is done, calls the registered shutdown hooks in reverse order.
type App struct {
	mu              sync.Mutex
	hooks           []hook
	shutdownTimeout time.Duration
}

func New() *App {
	return &App{shutdownTimeout: DefaultShutdownTimeout}
}

// WithShutdownTimeout bounds how long all hooks together may take.
func (a *App) WithShutdownTimeout(timeout time.Duration) *App {
	a.shutdownTimeout = timeout
	return a
}

// AddShutdownHook registers fn under name. Hooks run LIFO. Safe for concurrent use.
func (a *App) AddShutdownHook(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hooks = append(a.hooks, hook{name: name, fn: fn})
}

// Run executes run until it returns or a shutdown signal arrives. If run fails
// first, its error is returned and the hooks still run.
func (a *App) Run(ctx context.Context, run func(ctx context.Context) error) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Default().Info("Shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer shutdownCancel()
	return errors.Join(runErr, a.shutdown(shutdownCtx))
}

func (a *App) shutdown(ctx context.Context) error {
	a.mu.Lock()
	hooks := make([]hook, len(a.hooks))
	copy(hooks, a.hooks)
	a.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(ctx); err != nil {
			slog.Default().Error("Shutdown hook failed", "hook", hooks[i].name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hooks[i].name, err))
		}
	}
	return errors.Join(errs...)
}
