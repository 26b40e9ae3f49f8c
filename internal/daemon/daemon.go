// Package daemon ties the store, scheduler, and HTTP control server together
// and enforces single-instance execution through a lock file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tubecraft/internal/config"
	"tubecraft/internal/episode"
	"tubecraft/internal/logging"
	"tubecraft/internal/scheduler"
)

const shutdownGrace = 5 * time.Second

// Daemon owns the background services of a running tubecraftd instance.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *episode.Store
	sched  *scheduler.Scheduler
	api    http.Handler

	lockPath string
	lock     *flock.Flock

	running  atomic.Bool
	cancel   context.CancelFunc
	listener net.Listener
	server   *http.Server
}

// New constructs a daemon with initialized dependencies. apiHandler may be
// nil to run without the control API.
func New(cfg *config.Config, store *episode.Store, logger *slog.Logger, sched *scheduler.Scheduler, apiHandler http.Handler) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, logger, and scheduler")
	}
	lockPath := filepath.Join(cfg.Paths.LogDir, "tubecraftd.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		sched:    sched,
		api:      apiHandler,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock, requeues episodes stranded by an unclean
// shutdown, starts the scheduler, and begins serving the control API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tubecraft daemon instance is already running")
	}

	reset, err := d.store.ResetStuckGenerating(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("requeue stranded episodes: %w", err)
	}
	if reset > 0 {
		d.logger.Info("requeued episodes from unclean shutdown", logging.Int64("count", reset))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.sched.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	d.cancel = cancel

	if d.api != nil {
		listener, err := net.Listen("tcp", d.cfg.Paths.APIBind)
		if err != nil {
			d.sched.Stop()
			cancel()
			d.cancel = nil
			_ = d.lock.Unlock()
			return fmt.Errorf("bind control API: %w", err)
		}
		d.listener = listener
		d.server = &http.Server{Handler: d.api, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if serveErr := d.server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				d.logger.Error("control API server stopped", logging.Error(serveErr))
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.Addr()),
	)
	return nil
}

// Addr returns the bound control API address, or empty when not serving.
func (d *Daemon) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

// Stop shuts down the control API, lets in-flight episodes reach a stage
// boundary, and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warn("control API shutdown", logging.Error(err))
		}
		cancelShutdown()
		d.server = nil
		d.listener = nil
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sched.Stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}
