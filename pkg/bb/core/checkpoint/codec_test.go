package checkpoint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkpoint "github.com/tigerroll/burstbuf/pkg/bb/core/checkpoint"
	model "github.com/tigerroll/burstbuf/pkg/bb/core/domain/model"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/packing"
)

// newTestRecord builds a fully populated allocation record.
func newTestRecord(name string, owner uint32, size uint64) *model.AllocationRecord {
	rec := model.NewAllocationRecord(name, owner)
	rec.ID = owner + 1
	rec.Account = "acct"
	rec.Partition = "batch"
	rec.Pool = "nvme"
	rec.Qos = "normal"
	rec.SizeBytes = size
	rec.CreateTime = time.Unix(1700000000, 0).UTC()
	return rec
}

// byKey indexes records for order-insensitive comparison.
func byKey(records []*model.AllocationRecord) map[model.AllocationKey]*model.AllocationRecord {
	m := make(map[model.AllocationKey]*model.AllocationRecord, len(records))
	for _, rec := range records {
		m[rec.Key()] = rec
	}
	return m
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := []*model.AllocationRecord{
		newTestRecord("12345", 1001, 1<<30),
		newTestRecord("persistent1", 1002, 2<<30),
		newTestRecord("67890", 1003, 0),
	}

	out, err := checkpoint.Decode(checkpoint.Encode(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))

	decoded := byKey(out)
	for _, want := range in {
		got, ok := decoded[want.Key()]
		require.True(t, ok, "record %s missing after round trip", want.Key())
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Account, got.Account)
		assert.Equal(t, want.Partition, got.Partition)
		assert.Equal(t, want.Pool, got.Pool)
		assert.Equal(t, want.Qos, got.Qos)
		assert.Equal(t, want.SizeBytes, got.SizeBytes)
		assert.True(t, want.CreateTime.Equal(got.CreateTime))
	}
}

func TestEncodeDecode_Empty(t *testing.T) {
	out, err := checkpoint.Decode(checkpoint.Encode(nil))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecode_DerivesJobIDs(t *testing.T) {
	in := []*model.AllocationRecord{newTestRecord("12345", 1001, 4096)}

	out, err := checkpoint.Decode(checkpoint.Encode(in))
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, uint32(12345), out[0].JobID)
	assert.Equal(t, uint32(12345), out[0].ArrayJobID)
	assert.Equal(t, model.NoVal32, out[0].ArrayTaskID)
}

func TestDecode_UnsetVersionIsIncompatible(t *testing.T) {
	buf := packing.NewBuffer(8)
	buf.Pack16(model.NoVal16)
	buf.Pack32(0)

	_, err := checkpoint.Decode(buf.Bytes())
	assert.ErrorIs(t, err, exception.ErrIncompatibleVersion)
}

func TestDecode_VersionBelowFloorIsRejected(t *testing.T) {
	// An earlier-version payload uses a different field set; it must be
	// rejected outright, never decoded with the wrong layout.
	in := []*model.AllocationRecord{newTestRecord("12345", 1001, 4096)}
	payload := checkpoint.Encode(in)

	// Overwrite the version tag with a value below the floor.
	tampered := packing.NewBuffer(len(payload))
	tampered.Pack16(checkpoint.MinFormatVersion - 1)
	data := append(tampered.Bytes(), payload[2:]...)

	records, err := checkpoint.Decode(data)
	assert.ErrorIs(t, err, exception.ErrIncompatibleVersion)
	assert.Nil(t, records)
}

func TestDecode_EmptyPayloadIsTruncated(t *testing.T) {
	_, err := checkpoint.Decode(nil)
	assert.ErrorIs(t, err, exception.ErrTruncated)
}

func TestDecode_TruncatedMidRecord(t *testing.T) {
	in := []*model.AllocationRecord{
		newTestRecord("12345", 1001, 4096),
		newTestRecord("67890", 1002, 8192),
	}
	payload := checkpoint.Encode(in)

	// Cut the payload in the middle of the second record.
	records, err := checkpoint.Decode(payload[:len(payload)-10])
	assert.ErrorIs(t, err, exception.ErrTruncated)
	// No partial application: a failing decode returns no records at all.
	assert.Nil(t, records)
}

func TestDecode_CountBeyondDataIsTruncated(t *testing.T) {
	buf := packing.NewBuffer(8)
	buf.Pack16(checkpoint.FormatVersion)
	buf.Pack32(5) // declares records that are not present

	_, err := checkpoint.Decode(buf.Bytes())
	assert.ErrorIs(t, err, exception.ErrTruncated)
}

func TestDecode_HugeDeclaredCountFailsCleanly(t *testing.T) {
	// A corrupt file can declare any record count; the count must never be
	// trusted for allocation sizing. This payload declares 2^32-1 records in
	// 6 bytes and has to come back as a short read, not exhaust memory.
	buf := packing.NewBuffer(8)
	buf.Pack16(checkpoint.FormatVersion)
	buf.Pack32(^uint32(0))

	records, err := checkpoint.Decode(buf.Bytes())
	assert.ErrorIs(t, err, exception.ErrTruncated)
	assert.Nil(t, records)
}
