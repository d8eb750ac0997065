// Package checkpoint implements the versioned binary codec for burst-buffer
// allocation state. A checkpoint payload is a single record stream:
//
//	uint16 formatVersion | uint32 recordCount | recordCount records
//
// where each record packs, in order: account, createTime, id, name, partition,
// pool, qos, ownerUserID, sizeBytes. Strings are length-prefixed; absent
// strings are encoded as empty. There is no compression and no checksum;
// integrity relies on the atomic file replacement performed by the durable
// writer, not on the codec.
package checkpoint

import (
	model "github.com/tigerroll/burstbuf/pkg/bb/core/domain/model"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/exception"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/packing"
)

const moduleName = "checkpoint"

const (
	// FormatVersion is the format version written by Encode.
	FormatVersion uint16 = 2

	// MinFormatVersion is the oldest format version Decode accepts. Payloads
	// tagged with an earlier version use a different, unsupported field set and
	// are rejected outright rather than decoded with the wrong layout.
	MinFormatVersion uint16 = 2

	// initialBufferSize is the starting capacity of the encode buffer.
	initialBufferSize = 16 * 1024

	// minRecordSize is the smallest possible encoded record: five empty
	// length-prefixed strings plus the fixed-width fields.
	minRecordSize = 5*4 + 8 + 4 + 4 + 8
)

// Encode serializes the given allocation records into a checkpoint payload.
// The record count is packed as a placeholder first and backpatched once all
// records have been written.
func Encode(records []*model.AllocationRecord) []byte {
	buf := packing.NewBuffer(initialBufferSize)
	buf.Pack16(FormatVersion)

	countOffset := buf.Offset()
	buf.Pack32(0) // placeholder, backpatched below

	var count uint32
	for _, rec := range records {
		buf.PackStr(rec.Account)
		buf.PackTime(rec.CreateTime)
		buf.Pack32(rec.ID)
		buf.PackStr(rec.Name)
		buf.PackStr(rec.Partition)
		buf.PackStr(rec.Pool)
		buf.PackStr(rec.Qos)
		buf.Pack32(rec.OwnerUserID)
		buf.Pack64(rec.SizeBytes)
		count++
	}
	buf.SetUint32At(countOffset, count)

	return buf.Bytes()
}

// Decode deserializes a checkpoint payload into allocation records.
//
// The version tag is read first: the NoVal16 sentinel (a decode from an empty
// or garbage file) and any version below MinFormatVersion fail with
// ErrIncompatibleVersion. A short read while unpacking a record fails with
// ErrTruncated and no records are returned: records are buffered and handed
// back only on a fully successful decode, so a failing payload is never
// partially applied.
func Decode(data []byte) ([]*model.AllocationRecord, error) {
	buf := packing.FromBytes(data)

	version, err := buf.Unpack16()
	if err != nil {
		return nil, exception.NewTruncatedError(moduleName, "state data ends before format version", err)
	}
	if version == model.NoVal16 {
		return nil, exception.NewIncompatibleVersionError(moduleName, "state format version is unset")
	}
	if version < MinFormatVersion {
		return nil, exception.NewIncompatibleVersionError(moduleName,
			"state format version is older than the supported floor")
	}

	recCount, err := buf.Unpack32()
	if err != nil {
		return nil, exception.NewTruncatedError(moduleName, "state data ends before record count", err)
	}

	// The record count is untrusted on-disk data: cap the preallocation by
	// what the remaining payload can actually hold, so a corrupt count fails
	// as a short read instead of driving a huge allocation.
	capHint := uint64(recCount)
	if maxRecords := uint64(buf.Remaining()) / minRecordSize; capHint > maxRecords {
		capHint = maxRecords
	}
	records := make([]*model.AllocationRecord, 0, capHint)
	for i := uint32(0); i < recCount; i++ {
		rec, err := decodeRecord(buf)
		if err != nil {
			return nil, exception.NewTruncatedError(moduleName, "incomplete allocation record in state data", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// decodeRecord unpacks a single allocation record using the current field layout.
func decodeRecord(buf *packing.Buffer) (*model.AllocationRecord, error) {
	rec := &model.AllocationRecord{ArrayTaskID: model.NoVal32}
	var err error

	if rec.Account, err = buf.UnpackStr(); err != nil {
		return nil, err
	}
	if rec.CreateTime, err = buf.UnpackTime(); err != nil {
		return nil, err
	}
	if rec.ID, err = buf.Unpack32(); err != nil {
		return nil, err
	}
	if rec.Name, err = buf.UnpackStr(); err != nil {
		return nil, err
	}
	if rec.Partition, err = buf.UnpackStr(); err != nil {
		return nil, err
	}
	if rec.Pool, err = buf.UnpackStr(); err != nil {
		return nil, err
	}
	if rec.Qos, err = buf.UnpackStr(); err != nil {
		return nil, err
	}
	if rec.OwnerUserID, err = buf.Unpack32(); err != nil {
		return nil, err
	}
	if rec.SizeBytes, err = buf.Unpack64(); err != nil {
		return nil, err
	}

	rec.DeriveJobIDs()
	return rec, nil
}
