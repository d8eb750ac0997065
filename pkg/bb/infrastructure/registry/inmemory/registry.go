// Package inmemory provides the in-memory implementation of the
// AllocationRegistry interface. It stores all allocation records in a map
// keyed by (name, ownerUserID), protected by a single mutex.
package inmemory

import (
	"sync"
	"time"

	model "github.com/tigerroll/burstbuf/pkg/bb/core/domain/model"
	"github.com/tigerroll/burstbuf/pkg/bb/support/util/logger"
)

// InMemoryAllocationRegistry is the in-memory implementation of the
// AllocationRegistry interface. It holds all allocation records in a map.
type InMemoryAllocationRegistry struct {
	records        map[model.AllocationKey]*model.AllocationRecord
	lastUpdateTime time.Time
	mu             sync.Mutex // Mutex serializing all table access.
}

// NewInMemoryAllocationRegistry creates and initializes a new instance of
// InMemoryAllocationRegistry.
func NewInMemoryAllocationRegistry() *InMemoryAllocationRegistry {
	return &InMemoryAllocationRegistry{
		records: make(map[model.AllocationKey]*model.AllocationRecord),
	}
}

// Insert adds or replaces the record stored under the record's key.
func (r *InMemoryAllocationRegistry) Insert(rec *model.AllocationRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.Key()] = rec.Clone()
	r.lastUpdateTime = time.Now()
}

// Lookup returns a copy of the record stored under the given key.
func (r *InMemoryAllocationRegistry) Lookup(key model.AllocationKey) (*model.AllocationRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[key]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Apply merges a decoded record into the registry, creating the stored record
// if absent and overwriting its mutable fields with the decoded values.
func (r *InMemoryAllocationRegistry) Apply(rec *model.AllocationRecord, seenAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := rec.Key()
	stored, ok := r.records[key]
	if !ok {
		stored = model.NewAllocationRecord(rec.Name, rec.OwnerUserID)
		r.records[key] = stored
	}
	stored.ID = rec.ID
	stored.Account = rec.Account
	stored.CreateTime = rec.CreateTime
	stored.Partition = rec.Partition
	stored.Pool = rec.Pool
	stored.Qos = rec.Qos
	stored.SizeBytes = rec.SizeBytes
	stored.LastSeenTime = seenAt
	stored.DeriveJobIDs()
	r.lastUpdateTime = time.Now()

	logger.Debugf("Recovered burst buffer %s from user %d", stored.Name, stored.OwnerUserID)
}

// Delete removes the record stored under the given key.
func (r *InMemoryAllocationRegistry) Delete(key model.AllocationKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; !ok {
		return false
	}
	delete(r.records, key)
	r.lastUpdateTime = time.Now()
	return true
}

// Snapshot returns detached copies of all records, in unspecified order.
func (r *InMemoryAllocationRegistry) Snapshot() []*model.AllocationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.AllocationRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	return out
}

// Len returns the number of records in the registry.
func (r *InMemoryAllocationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// LastUpdateTime returns the time of the last registry mutation.
func (r *InMemoryAllocationRegistry) LastUpdateTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastUpdateTime
}

// Close releases resources used by the registry.
// As an in-memory registry, it holds no external resources, so this method always returns nil.
func (r *InMemoryAllocationRegistry) Close() error {
	return nil
}
