// Package statefile implements durable persistence of burst-buffer allocation
// state: an atomic, crash-safe writer and the recovery loader that reads the
// most recent good copy back into the registry.
//
// One logical checkpoint has three physical names during rotation:
// "<name>.new" being written, "<name>" the current good copy, and "<name>.old"
// the previous good copy. The canonical file is either the previous version or
// the new version at every observable instant, never partially written.
package statefile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	checkpoint "github.com/tigerroll/burstbuf/pkg/bb/core/checkpoint"
	config "github.com/tigerroll/burstbuf/pkg/bb/core/config"
	repository "github.com/tigerroll/burstbuf/pkg/bb/core/domain/repository"
	metrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

const moduleName = "statefile"

// Writer checkpoints the allocation registry to disk.
//
// Encoding snapshots the registry through its own mutex; the slow disk phase
// (write, sync, rotation) runs on detached data so checkpointing never blocks
// concurrent registry access.
type Writer struct {
	cfg      *config.StateConfig
	registry repository.AllocationRegistry
	recorder metrics.MetricRecorder

	mu           sync.Mutex // serializes writers and guards lastSaveTime
	lastSaveTime time.Time
}

// NewWriter creates a new state file Writer.
func NewWriter(cfg *config.StateConfig, registry repository.AllocationRegistry, recorder metrics.MetricRecorder) *Writer {
	return &Writer{
		cfg:      cfg,
		registry: registry,
		recorder: recorder,
	}
}

// CanonicalPath returns the path of the current good state file.
func (w *Writer) CanonicalPath() string {
	return filepath.Join(w.cfg.SaveLocation, w.cfg.FileBaseName)
}

// Save checkpoints the current registry content to the canonical state file.
//
// The write is skipped entirely if the registry's last update time has not
// advanced past the last successful save and force is false, avoiding redundant
// disk I/O on idle cycles. force is set during shutdown so the final state
// always reaches disk.
//
// On any failure the temp file is removed, the existing good copy is left
// untouched, and an ErrIO-classified error is returned.
func (w *Writer) Save(ctx context.Context, force bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !force && !w.registry.LastUpdateTime().After(w.lastSaveTime) {
		logger.Debugf("State unchanged since last save, skipping checkpoint write.")
		w.recorder.RecordCheckpointSkip(ctx)
		return nil
	}

	started := time.Now()

	// Stamp the save time before taking the snapshot: a mutation landing after
	// the snapshot is taken then has a last-update time later than saveTime, so
	// the next save cannot skip it.
	saveTime := time.Now()

	// Snapshot under the registry's own mutex, then encode and write without it.
	records := w.registry.Snapshot()
	payload := checkpoint.Encode(records)

	if err := w.writeDurable(payload); err != nil {
		w.recorder.RecordCheckpointSave(ctx, len(records), len(payload), time.Since(started), false)
		logger.Errorf("Failed to save burst buffer state: %v", err)
		return err
	}

	w.lastSaveTime = saveTime
	w.recorder.RecordCheckpointSave(ctx, len(records), len(payload), time.Since(started), true)
	logger.Debugf("Saved state of %d burst buffers (%d bytes) to %s",
		len(records), len(payload), w.CanonicalPath())
	return nil
}

// writeDurable writes the payload to "<name>.new" with restrictive permissions,
// syncs it, then rotates: the previous ".old" is removed, the current good copy
// is hard-linked to ".old" (best effort; failure merely loses one generation of
// backup), and the temp file is atomically renamed over the canonical name.
func (w *Writer) writeDurable(payload []byte) error {
	regFile := w.CanonicalPath()
	newFile := regFile + ".new"
	oldFile := regFile + ".old"

	f, err := os.OpenFile(newFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return exception.NewIOError(moduleName, "error creating file "+newFile, err)
	}

	var werr *multierror.Error
	if _, err := f.Write(payload); err != nil {
		werr = multierror.Append(werr, err)
	}
	if err := f.Sync(); err != nil {
		werr = multierror.Append(werr, err)
	}
	if err := f.Close(); err != nil {
		werr = multierror.Append(werr, err)
	}
	if err := werr.ErrorOrNil(); err != nil {
		if rmErr := os.Remove(newFile); rmErr != nil && !os.IsNotExist(rmErr) {
			err = multierror.Append(err, rmErr)
		}
		return exception.NewIOError(moduleName, "error writing file "+newFile, err)
	}

	// File shuffle. The link failure is non-fatal: the canonical file still
	// rotates, only the backup generation is lost.
	if err := os.Remove(oldFile); err != nil && !os.IsNotExist(err) {
		logger.Debugf("unable to remove %s: %v", oldFile, err)
	}
	if err := os.Link(regFile, oldFile); err != nil && !os.IsNotExist(err) {
		logger.Debugf("unable to create link for %s -> %s: %v", regFile, oldFile, err)
	}
	if err := os.Rename(newFile, regFile); err != nil {
		err = exception.NewIOError(moduleName, "error rotating "+newFile+" to "+regFile, err)
		if rmErr := os.Remove(newFile); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Debugf("unable to remove %s: %v", newFile, rmErr)
		}
		return err
	}
	return nil
}
