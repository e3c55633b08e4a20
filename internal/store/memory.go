package store

import (
	"sync"
	"time"

	"veorelay/internal/domain"
)

// OperationStore keeps the relay-side record of every operation this process
// has started, keyed by the relay-assigned operation id. Records live in memory
// only; the relay deliberately has no durable job state.
type OperationStore struct {
	mu      sync.Mutex
	byOp    map[string]*domain.Job
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewOperationStore creates a store whose terminal records expire after ttl.
func NewOperationStore(ttl time.Duration) *OperationStore {
	return &OperationStore{
		byOp:    make(map[string]*domain.Job),
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Put registers a job under its operation id, evicting expired terminal
// records so the map cannot grow without bound.
func (s *OperationStore) Put(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked()
	copied := *job
	s.byOp[job.OperationID] = &copied
}

// Get returns a copy of the job registered under the operation id.
func (s *OperationStore) Get(operationID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byOp[operationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

// Update applies fn to the job registered under the operation id and returns
// a copy of the result.
func (s *OperationStore) Update(operationID string, fn func(*domain.Job)) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byOp[operationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	fn(job)
	job.UpdatedAt = s.nowFunc()
	copied := *job
	return &copied, nil
}

// Delete removes the record for the operation id, if any.
func (s *OperationStore) Delete(operationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byOp, operationID)
}

// Len reports the number of live records.
func (s *OperationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byOp)
}

func (s *OperationStore) evictLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.nowFunc().Add(-s.ttl)
	for id, job := range s.byOp {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.byOp, id)
		}
	}
}
