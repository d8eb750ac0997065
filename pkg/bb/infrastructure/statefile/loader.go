package statefile

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	checkpoint "github.com/tigerroll/burstbuf/pkg/bb/core/checkpoint"
	config "github.com/tigerroll/burstbuf/pkg/bb/core/config"
	repository "github.com/tigerroll/burstbuf/pkg/bb/core/domain/repository"
	metrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

// Loader reads the most recent durable state file back into the registry at
// startup and on every agent cycle.
type Loader struct {
	cfg      *config.StateConfig
	registry repository.AllocationRegistry
	recorder metrics.MetricRecorder
}

// NewLoader creates a new state file Loader.
func NewLoader(cfg *config.StateConfig, registry repository.AllocationRegistry, recorder metrics.MetricRecorder) *Loader {
	return &Loader{
		cfg:      cfg,
		registry: registry,
		recorder: recorder,
	}
}

// Load reads the canonical state file and merges its records into the registry.
//
// A missing file is the first-run case: it is logged and Load returns cleanly
// with the registry unchanged. Malformed or version-incompatible payloads are
// handled per the recovery policy: when IgnoreRecoveryErrors is set the data is
// logged and discarded and Load returns nil; otherwise the decode error is
// returned and the caller is expected to treat it as fatal rather than silently
// lose allocation state.
//
// Each decoded record is merged by (name, ownerUserID): mutable fields are
// overwritten with the decoded values, the last-seen time is set to the load
// time, and job-ID fields are derived from a numeric name.
func (l *Loader) Load(ctx context.Context) error {
	path := filepath.Join(l.cfg.SaveLocation, l.cfg.FileBaseName)

	data, err := readAll(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Infof("No burst buffer state file (%s) to recover", path)
			return nil
		}
		l.recorder.RecordRecovery(ctx, 0, false)
		return exception.NewIOError(moduleName, "read error on "+path, err)
	}

	records, err := checkpoint.Decode(data)
	if err != nil {
		l.recorder.RecordRecovery(ctx, 0, false)
		if l.cfg.IgnoreRecoveryErrors {
			logger.Errorf("**********************************************************************")
			logger.Errorf("Can not recover burst buffer state, discarding it: %v", err)
			logger.Errorf("**********************************************************************")
			return nil
		}
		if errors.Is(err, exception.ErrIncompatibleVersion) {
			return exception.NewBufferError(moduleName,
				"Can not recover burst buffer state, data version incompatible; "+
					"enable ignore_recovery_errors to ignore this. "+
					"Warning: this will lose the data that can't be recovered", err)
		}
		return exception.NewBufferError(moduleName,
			"Incomplete burst buffer state file; "+
				"enable ignore_recovery_errors to ignore this. "+
				"Warning: this will lose the data that can't be recovered", err)
	}

	now := time.Now()
	for _, rec := range records {
		l.registry.Apply(rec, now)
	}

	l.recorder.RecordRecovery(ctx, len(records), true)
	logger.Infof("Recovered state of %d burst buffers", len(records))
	return nil
}

// readAll opens the state file and reads it fully into memory. The read loop
// grows the buffer as needed; interrupted reads are retried by the runtime.
func readAll(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return data, nil
}
