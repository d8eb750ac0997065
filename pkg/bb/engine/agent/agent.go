// Package agent implements the background refresh agent of the burstbuf state
// engine: a single long-lived worker that periodically reloads external state
// into the registry, runs timeout housekeeping under the host's locking domain,
// and checkpoints the registry to disk.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	config "github.com/tigerroll/burstbuf/pkg/bb/core/config"
	repository "github.com/tigerroll/burstbuf/pkg/bb/core/domain/repository"
	locks "github.com/tigerroll/burstbuf/pkg/bb/core/locks"
	metrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
	statefile "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/statefile"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

// Agent is the single persistent background worker. Its lifecycle is
// Running -> Sleeping -> Running -> ... -> Terminating -> Stopped.
//
// Each wake cycle (unless terminating) reloads external state, runs
// timeout/expiry housekeeping under the host write-lock plus the registry's
// internal mutex (in that nesting order), then checkpoints the registry without
// holding the host lock. Shutdown is cooperative: the termination signal wakes
// the agent out of its interval sleep, and the owner blocks until the worker
// has finished its current cycle and exited.
type Agent struct {
	cfg      *config.AgentConfig
	registry repository.AllocationRegistry
	loader   *statefile.Loader
	writer   *statefile.Writer
	hostLock *locks.HostLock
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer

	stopOnce sync.Once
	stopCh   chan struct{} // closed to request termination
	doneCh   chan struct{} // closed when the worker has exited
}

// NewAgent creates a new background Agent.
func NewAgent(
	cfg *config.AgentConfig,
	registry repository.AllocationRegistry,
	loader *statefile.Loader,
	writer *statefile.Writer,
	hostLock *locks.HostLock,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Agent {
	return &Agent{
		cfg:      cfg,
		registry: registry,
		loader:   loader,
		writer:   writer,
		hostLock: hostLock,
		recorder: recorder,
		tracer:   tracer,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Interval returns the agent polling period.
func (a *Agent) Interval() time.Duration {
	return time.Duration(a.cfg.IntervalSeconds) * time.Second
}

// Start launches the background worker goroutine.
func (a *Agent) Start() {
	go a.run()
	logger.Infof("Burst buffer agent started (interval %v).", a.Interval())
}

// Shutdown requests cooperative termination and blocks until the worker has
// finished its current cycle and exited, or until ctx is done.
func (a *Agent) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	select {
	case <-a.doneCh:
		logger.Infof("Burst buffer agent stopped.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the worker loop. The interval sleep is interruptible by the
// termination signal so shutdown never blocks for the full polling period.
func (a *Agent) run() {
	defer close(a.doneCh)

	timer := time.NewTimer(a.Interval())
	defer timer.Stop()

	for {
		terminating := false
		select {
		case <-a.stopCh:
			terminating = true
		case <-timer.C:
			select {
			case <-a.stopCh:
				terminating = true
			default:
			}
		}

		if terminating {
			// Final checkpoint: forced so the latest state always reaches disk
			// before the owner tears down shared structures.
			if err := a.writer.Save(context.Background(), true); err != nil {
				logger.Errorf("Final state save failed: %v", err)
			}
			return
		}

		a.cycle()
		timer.Reset(a.Interval())
	}
}

// cycle performs one wake: reload external state, housekeeping under the host
// write-lock, then checkpoint. Errors are logged and the agent continues to
// the next cycle; they are never escalated to the owner.
func (a *Agent) cycle() {
	started := time.Now()
	cycleID := uuid.New().String()
	ctx, endSpan := a.tracer.StartCycleSpan(context.Background(), cycleID)
	defer endSpan()

	logger.Debugf("Agent cycle %s starting.", cycleID)

	// Reload external state; the loader and registry do their own locking.
	if err := a.loader.Load(ctx); err != nil {
		a.tracer.RecordError(ctx, "agent", err)
		if errors.Is(err, exception.ErrIncompatibleVersion) || errors.Is(err, exception.ErrTruncated) {
			// An unrecoverable checkpoint is fatal unless the operator
			// requested lenient recovery; losing allocation state silently is
			// worse than failing loud.
			logger.Fatalf("Burst buffer state recovery failed: %v", err)
		}
		// A read error may be transient; keep the current registry content and
		// retry on the next cycle.
		logger.Errorf("State load failed, will retry next cycle: %v", err)
	}

	// Housekeeping runs with the host write-lock held around the registry's
	// own mutex, in that order, so expiry decisions stay consistent with
	// host-visible job state.
	a.hostLock.Acquire(locks.WriteLock)
	a.timeoutAllocations()
	a.hostLock.Release(locks.WriteLock)

	// Checkpoint without the host lock; the writer snapshots the registry
	// under its internal mutex only.
	if err := a.writer.Save(ctx, false); err != nil {
		a.tracer.RecordError(ctx, "agent", err)
		logger.Errorf("State save failed, will retry next cycle: %v", err)
	}

	a.recorder.RecordRegistrySize(ctx, a.registry.Len())
	a.recorder.RecordAgentCycle(ctx, time.Since(started))
	logger.Debugf("Agent cycle %s finished in %v.", cycleID, time.Since(started))
}

// timeoutAllocations purges allocations that have not been seen for
// StalePurgeCycles polling intervals. A zero setting disables purging.
func (a *Agent) timeoutAllocations() {
	if a.cfg.StalePurgeCycles <= 0 {
		return
	}
	cutoff := time.Now().Add(-time.Duration(a.cfg.StalePurgeCycles) * a.Interval())
	for _, rec := range a.registry.Snapshot() {
		if rec.LastSeenTime.IsZero() || !rec.LastSeenTime.Before(cutoff) {
			continue
		}
		if a.registry.Delete(rec.Key()) {
			logger.Infof("Purged stale burst buffer %s (last seen %v)", rec.Key(), rec.LastSeenTime)
		}
	}
}
