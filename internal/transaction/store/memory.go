// Package store persists transactions and enforces the single-row-per-id and
// single-transition invariants behind the usecase.Store port.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/gosettle/internal/pkg/pkgerror"
	"github.com/shandysiswandi/gosettle/internal/pkg/pkguid"
	"github.com/shandysiswandi/gosettle/internal/transaction/entity"
	"github.com/shandysiswandi/gosettle/internal/transaction/usecase"
)

// Memory is an in-process store for development and tests. Each record keeps
// its own mutex playing the role of the row-level lock, so the commit path is
// exercised the same way as against Postgres.
type Memory struct {
	mu      sync.RWMutex
	id      pkguid.NumberID
	records map[string]*memoryRecord
}

type memoryRecord struct {
	mu sync.Mutex // the row lock
	tx entity.Transaction
}

// NewMemory builds a memory store; id supplies surrogate row keys.
func NewMemory(id pkguid.NumberID) *Memory {
	return &Memory{
		id:      id,
		records: make(map[string]*memoryRecord),
	}
}

// CreateIfAbsent inserts the transaction unless a row for its identifier
// already exists, in which case the existing row is returned unchanged.
func (s *Memory) CreateIfAbsent(_ context.Context, tx entity.Transaction) (entity.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, exists := s.records[tx.TransactionID]; exists {
		rec.mu.Lock()
		existing := rec.tx
		rec.mu.Unlock()
		return existing, false, nil
	}

	if s.id != nil {
		tx.ID = s.id.Generate()
	}
	s.records[tx.TransactionID] = &memoryRecord{tx: tx}

	return tx, true, nil
}

// Find returns the current row, or pkgerror.ErrNotFound.
func (s *Memory) Find(_ context.Context, transactionID string) (entity.Transaction, error) {
	rec, err := s.get(transactionID)
	if err != nil {
		return entity.Transaction{}, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	return rec.tx, nil
}

// MarkProcessed re-reads the row under its lock and applies the terminal
// transition exactly once. A row that is already PROCESSED is left untouched.
func (s *Memory) MarkProcessed(_ context.Context, transactionID string, processedAt time.Time) (usecase.MarkResult, error) {
	rec, err := s.get(transactionID)
	if err != nil {
		return usecase.MarkNotFound, nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.tx.Processed() {
		return usecase.MarkAlreadyProcessed, nil
	}

	rec.tx.Status = entity.StatusProcessed
	rec.tx.ProcessedAt = &processedAt

	return usecase.MarkUpdated, nil
}

func (s *Memory) get(transactionID string) (*memoryRecord, error) {
	s.mu.RLock()
	rec, ok := s.records[transactionID]
	s.mu.RUnlock()
	if !ok {
		return nil, pkgerror.ErrNotFound
	}

	return rec, nil
}

var _ usecase.Store = (*Memory)(nil)
