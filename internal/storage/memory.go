package storage

import (
	"context"
	"sync"

	"github.com/wonny/leadscore/internal/contracts"
)

// MemoryStore keeps the latest run in process. It serves the API when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	report *contracts.RunReport
	table  *contracts.FeatureTable
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Write implements contracts.FeatureWriter
func (s *MemoryStore) Write(_ context.Context, report *contracts.RunReport, table *contracts.FeatureTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report, s.table = report, table
	return nil
}

// LatestRun implements contracts.FeatureStore
func (s *MemoryStore) LatestRun(context.Context) (*contracts.RunReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.report == nil {
		return nil, ErrNoRun
	}
	return s.report, nil
}

// LatestTable implements contracts.FeatureStore
func (s *MemoryStore) LatestTable(context.Context) (*contracts.FeatureTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.table == nil {
		return nil, ErrNoRun
	}
	return s.table, nil
}
