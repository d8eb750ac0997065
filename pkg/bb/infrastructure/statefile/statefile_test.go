package statefile_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkpoint "github.com/tigerroll/burstbuf/pkg/bb/core/checkpoint"
	config "github.com/tigerroll/burstbuf/pkg/bb/core/config"
	model "github.com/tigerroll/burstbuf/pkg/bb/core/domain/model"
	metrics "github.com/tigerroll/burstbuf/pkg/bb/core/metrics"
	inmemory "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/registry/inmemory"
	statefile "github.com/tigerroll/burstbuf/pkg/bb/infrastructure/statefile"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
)

func newTestConfig(t *testing.T) *config.StateConfig {
	t.Helper()
	return &config.StateConfig{
		SaveLocation: t.TempDir(),
		FileBaseName: "burst_buffer_state",
	}
}

func newTestRecord(name string, owner uint32, size uint64) *model.AllocationRecord {
	rec := model.NewAllocationRecord(name, owner)
	rec.ID = owner + 1
	rec.Account = "acct"
	rec.Pool = "nvme"
	rec.Qos = "normal"
	rec.SizeBytes = size
	rec.CreateTime = time.Unix(1700000000, 0).UTC()
	return rec
}

func TestSaveAndLoad_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	recorder := metrics.NewNoOpMetricRecorder()

	// Start with empty state, insert 3 records, checkpoint.
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("12345", 1001, 1<<30))
	reg.Insert(newTestRecord("alloc2", 1002, 2<<30))
	reg.Insert(newTestRecord("alloc3", 1003, 3<<30))

	writer := statefile.NewWriter(cfg, reg, recorder)
	require.NoError(t, writer.Save(ctx, false))

	// Simulate a restart: a fresh registry recovered from disk.
	fresh := inmemory.NewInMemoryAllocationRegistry()
	loader := statefile.NewLoader(cfg, fresh, recorder)
	loadedAt := time.Now()
	require.NoError(t, loader.Load(ctx))

	require.Equal(t, 3, fresh.Len())
	for _, want := range []struct {
		name  string
		owner uint32
		size  uint64
	}{
		{"12345", 1001, 1 << 30},
		{"alloc2", 1002, 2 << 30},
		{"alloc3", 1003, 3 << 30},
	} {
		got, ok := fresh.Lookup(model.AllocationKey{Name: want.name, OwnerUserID: want.owner})
		require.True(t, ok, "record %s not recovered", want.name)
		assert.Equal(t, want.size, got.SizeBytes)
		assert.Equal(t, "nvme", got.Pool)
		assert.Equal(t, "normal", got.Qos)
		assert.False(t, got.LastSeenTime.Before(loadedAt))
	}

	// Numeric names re-derive job identifiers on recovery.
	got, _ := fresh.Lookup(model.AllocationKey{Name: "12345", OwnerUserID: 1001})
	assert.Equal(t, uint32(12345), got.JobID)
	assert.Equal(t, uint32(12345), got.ArrayJobID)
	assert.Equal(t, model.NoVal32, got.ArrayTaskID)
}

func TestLoad_MissingFileIsNoOp(t *testing.T) {
	cfg := newTestConfig(t)
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	loader := statefile.NewLoader(cfg, reg, metrics.NewNoOpMetricRecorder())
	require.NoError(t, loader.Load(context.Background()))

	// Registry unchanged.
	assert.Equal(t, 1, reg.Len())
}

func TestSave_SkipsWhenStateUnchanged(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	writer := statefile.NewWriter(cfg, reg, metrics.NewNoOpMetricRecorder())
	require.NoError(t, writer.Save(ctx, false))

	canonical := writer.CanonicalPath()
	before, err := os.ReadFile(canonical)
	require.NoError(t, err)

	// No mutation since the last save: the write is skipped entirely, so the
	// rotation never runs and no backup generation appears.
	require.NoError(t, writer.Save(ctx, false))
	after, err := os.ReadFile(canonical)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = os.Stat(canonical + ".old")
	assert.True(t, os.IsNotExist(err))

	// A forced save always writes.
	require.NoError(t, writer.Save(ctx, true))
	_, err = os.Stat(canonical + ".old")
	assert.NoError(t, err)
}

// racingRegistry inserts a record immediately after the first snapshot is
// taken, mimicking a mutation that lands while the writer is in its disk phase.
type racingRegistry struct {
	*inmemory.InMemoryAllocationRegistry
	raced *model.AllocationRecord
	once  sync.Once
}

func (r *racingRegistry) Snapshot() []*model.AllocationRecord {
	snap := r.InMemoryAllocationRegistry.Snapshot()
	r.once.Do(func() { r.InMemoryAllocationRegistry.Insert(r.raced) })
	return snap
}

func TestSave_MutationDuringDiskPhaseIsNotSkipped(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	reg := &racingRegistry{
		InMemoryAllocationRegistry: inmemory.NewInMemoryAllocationRegistry(),
		raced:                      newTestRecord("raced", 1002, 8192),
	}
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	writer := statefile.NewWriter(cfg, reg, metrics.NewNoOpMetricRecorder())

	// The raced record lands after this save's snapshot, so it misses the file.
	require.NoError(t, writer.Save(ctx, false))
	data, err := os.ReadFile(writer.CanonicalPath())
	require.NoError(t, err)
	records, err := checkpoint.Decode(data)
	require.NoError(t, err)
	require.Len(t, records, 1)

	// The next non-forced save must see it as newer than the last save and
	// write it out rather than skipping.
	require.NoError(t, writer.Save(ctx, false))
	data, err = os.ReadFile(writer.CanonicalPath())
	require.NoError(t, err)
	records, err = checkpoint.Decode(data)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestSave_RotationKeepsPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	writer := statefile.NewWriter(cfg, reg, metrics.NewNoOpMetricRecorder())
	require.NoError(t, writer.Save(ctx, false))

	reg.Insert(newTestRecord("alloc2", 1002, 8192))
	require.NoError(t, writer.Save(ctx, false))

	canonical := writer.CanonicalPath()

	// Canonical holds the new content.
	data, err := os.ReadFile(canonical)
	require.NoError(t, err)
	records, err := checkpoint.Decode(data)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// The previous good copy survives as ".old".
	data, err = os.ReadFile(canonical + ".old")
	require.NoError(t, err)
	records, err = checkpoint.Decode(data)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// The temp file never outlives a successful rotation.
	_, err = os.Stat(canonical + ".new")
	assert.True(t, os.IsNotExist(err))
}

func TestSave_FailureLeavesCanonicalIntact(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	writer := statefile.NewWriter(cfg, reg, metrics.NewNoOpMetricRecorder())
	require.NoError(t, writer.Save(ctx, false))

	canonical := writer.CanonicalPath()
	before, err := os.ReadFile(canonical)
	require.NoError(t, err)

	// Make the temp file path unwritable by occupying it with a directory.
	require.NoError(t, os.Mkdir(canonical+".new", 0o755))

	reg.Insert(newTestRecord("alloc2", 1002, 8192))
	err = writer.Save(ctx, false)
	assert.ErrorIs(t, err, exception.ErrIO)

	// The previous good copy is untouched and still decodable.
	after, err := os.ReadFile(canonical)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	_, err = checkpoint.Decode(after)
	assert.NoError(t, err)
}

func TestLoad_AfterCrashBeforeRotation(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	reg := inmemory.NewInMemoryAllocationRegistry()
	reg.Insert(newTestRecord("alloc1", 1001, 4096))

	writer := statefile.NewWriter(cfg, reg, metrics.NewNoOpMetricRecorder())
	require.NoError(t, writer.Save(ctx, false))

	// Simulate a crash after the temp file was written but before rotation:
	// a stray ".new" with partial content must not affect recovery.
	canonical := writer.CanonicalPath()
	require.NoError(t, os.WriteFile(canonical+".new", []byte{0x00, 0x01, 0x02}, 0o600))

	fresh := inmemory.NewInMemoryAllocationRegistry()
	loader := statefile.NewLoader(cfg, fresh, metrics.NewNoOpMetricRecorder())
	require.NoError(t, loader.Load(ctx))
	assert.Equal(t, 1, fresh.Len())
}

func TestLoad_GarbageFileFailsWithoutLenientMode(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	// 0xFFFF is the unset version sentinel.
	path := filepath.Join(cfg.SaveLocation, cfg.FileBaseName)
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xFF, 0xDE, 0xAD}, 0o600))

	reg := inmemory.NewInMemoryAllocationRegistry()
	loader := statefile.NewLoader(cfg, reg, metrics.NewNoOpMetricRecorder())
	err := loader.Load(ctx)
	assert.ErrorIs(t, err, exception.ErrIncompatibleVersion)
	assert.Zero(t, reg.Len())
}

func TestLoad_GarbageFileToleratedInLenientMode(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.IgnoreRecoveryErrors = true

	path := filepath.Join(cfg.SaveLocation, cfg.FileBaseName)
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xFF, 0xDE, 0xAD}, 0o600))

	reg := inmemory.NewInMemoryAllocationRegistry()
	loader := statefile.NewLoader(cfg, reg, metrics.NewNoOpMetricRecorder())

	// The unreadable data is logged and discarded; startup continues with an
	// empty registry.
	require.NoError(t, loader.Load(ctx))
	assert.Zero(t, reg.Len())
}

func TestLoad_TruncatedFileAppliesNothing(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	payload := checkpoint.Encode([]*model.AllocationRecord{
		newTestRecord("alloc1", 1001, 4096),
		newTestRecord("alloc2", 1002, 8192),
	})
	path := filepath.Join(cfg.SaveLocation, cfg.FileBaseName)
	require.NoError(t, os.WriteFile(path, payload[:len(payload)-6], 0o600))

	reg := inmemory.NewInMemoryAllocationRegistry()
	loader := statefile.NewLoader(cfg, reg, metrics.NewNoOpMetricRecorder())
	err := loader.Load(ctx)
	assert.ErrorIs(t, err, exception.ErrTruncated)
	assert.Zero(t, reg.Len())
}
