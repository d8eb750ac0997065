// Package model defines the core domain types of the burstbuf state engine:
// burst-buffer allocation records and the identifiers derived from them.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// NoVal32 is the sentinel "unset" value for 32-bit identifiers such as ArrayTaskID.
const NoVal32 = ^uint32(0)

// NoVal16 is the sentinel "unset" value for the 16-bit checkpoint format version.
// Decoding a payload whose version tag equals this value fails as incompatible.
const NoVal16 = ^uint16(0)

// AllocationKey identifies an allocation in the registry.
// Name together with OwnerUserID is the registry key.
type AllocationKey struct {
	Name        string
	OwnerUserID uint32
}

// String returns a human-readable form of the key, e.g. "alloc1(1001)".
func (k AllocationKey) String() string {
	return fmt.Sprintf("%s(%d)", k.Name, k.OwnerUserID)
}

// AllocationRecord describes one provisioned burst-buffer allocation, tied to a
// job or to a persistent reservation.
type AllocationRecord struct {
	// ID is the unique identifier assigned to this allocation.
	ID uint32
	// Name is the allocation name. A purely numeric name is secondarily
	// interpreted as a job identifier (see DeriveJobIDs).
	Name string
	// OwnerUserID is the numeric user ID owning the allocation.
	OwnerUserID uint32
	// Account, Partition, Pool and Qos carry scheduler attributes; any of them
	// may be empty.
	Account   string
	Partition string
	Pool      string
	Qos       string
	// SizeBytes is the provisioned size of the allocation in bytes.
	SizeBytes uint64
	// CreateTime is when the allocation was created.
	CreateTime time.Time
	// LastSeenTime is refreshed whenever the allocation is recovered from a
	// checkpoint or otherwise sighted.
	LastSeenTime time.Time
	// JobID, ArrayJobID and ArrayTaskID are derived from a numeric Name.
	// ArrayTaskID is NoVal32 when unset.
	JobID       uint32
	ArrayJobID  uint32
	ArrayTaskID uint32
}

// NewAllocationRecord creates an AllocationRecord for the given key with job-ID
// fields derived from the name and ArrayTaskID initialized to the unset sentinel.
func NewAllocationRecord(name string, ownerUserID uint32) *AllocationRecord {
	rec := &AllocationRecord{
		Name:        name,
		OwnerUserID: ownerUserID,
		ArrayTaskID: NoVal32,
	}
	rec.DeriveJobIDs()
	return rec
}

// Key returns the registry key of the record.
func (r *AllocationRecord) Key() AllocationKey {
	return AllocationKey{Name: r.Name, OwnerUserID: r.OwnerUserID}
}

// DeriveJobIDs interprets a purely numeric allocation name as a job identifier,
// setting JobID and ArrayJobID to the parsed value and ArrayTaskID to the unset
// sentinel. Names that do not start with a digit leave the fields untouched.
func (r *AllocationRecord) DeriveJobIDs() {
	if r.Name == "" || r.Name[0] < '0' || r.Name[0] > '9' {
		return
	}
	// Leading digits only, mirroring a strtol-style parse.
	end := len(r.Name)
	for i := 0; i < len(r.Name); i++ {
		if r.Name[i] < '0' || r.Name[i] > '9' {
			end = i
			break
		}
	}
	id, err := strconv.ParseUint(r.Name[:end], 10, 32)
	if err != nil {
		return
	}
	r.JobID = uint32(id)
	r.ArrayJobID = uint32(id)
	r.ArrayTaskID = NoVal32
}

// Clone returns a copy of the record. Registry snapshots hand out clones so
// that encoding can proceed without holding the registry mutex.
func (r *AllocationRecord) Clone() *AllocationRecord {
	c := *r
	return &c
}
