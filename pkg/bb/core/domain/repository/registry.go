// Package repository defines the interface for the burst-buffer allocation
// registry: the in-memory table of allocation records that the recovery loader
// populates, the background agent refreshes, and the checkpoint writer snapshots.
package repository

import (
	"time"

	model "github.com/tigerroll/burstbuf/pkg/bb/core/domain/model"
)

// AllocationRegistry is the interface for the registry of burst-buffer
// allocation records, keyed by (name, ownerUserID).
//
// Implementations serialize all table access internally; no method may be
// called with any additional locking requirement. Iteration order across the
// table is unspecified.
type AllocationRegistry interface {
	// Insert adds or replaces the record stored under the record's key and
	// advances the registry's last-update time.
	Insert(rec *model.AllocationRecord)

	// Lookup returns a copy of the record stored under the given key.
	// The second return value reports whether the record exists.
	Lookup(key model.AllocationKey) (*model.AllocationRecord, bool)

	// Apply merges a decoded record into the registry: the record stored under
	// the decoded record's key is created if absent, its mutable fields
	// (id, account, createTime, partition, pool, qos, sizeBytes) are overwritten
	// with the decoded values, its last-seen time is set to seenAt, and job-ID
	// fields are re-derived from a numeric name. Used by state recovery.
	Apply(rec *model.AllocationRecord, seenAt time.Time)

	// Delete removes the record stored under the given key and reports whether
	// a record was removed.
	Delete(key model.AllocationKey) bool

	// Snapshot returns copies of all records, in unspecified order. The copies
	// are detached from the table so that callers (e.g., checkpoint encoding)
	// can work without blocking concurrent registry access.
	Snapshot() []*model.AllocationRecord

	// Len returns the number of records in the registry.
	Len() int

	// LastUpdateTime returns the time of the last registry mutation.
	LastUpdateTime() time.Time

	// Close releases resources used by the registry.
	Close() error
}
