package action

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/waysome/waysome/message"
	"github.com/waysome/waysome/object"
)

// Store keeps transactions submitted with message.FlagStore so they can
// be run later, keyed by transaction id.
type Store interface {
	// Put stores tx, replacing any transaction with the same id.
	Put(ctx context.Context, tx *message.Transaction) error

	// Get returns the transaction stored under id with a reference the
	// caller must release. Missing ids fail with ErrNotFound.
	Get(ctx context.Context, id uint64) (*message.Transaction, error)

	// Delete removes the transaction stored under id.
	Delete(ctx context.Context, id uint64) error

	// List returns the stored ids in ascending order.
	List(ctx context.Context) ([]uint64, error)

	Close() error
}

// MemoryStore is a Store holding one reference per stored transaction.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[uint64]*message.Transaction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[uint64]*message.Transaction)}
}

func (s *MemoryStore) Put(_ context.Context, tx *message.Transaction) error {
	if tx == nil {
		return ErrInvalid
	}
	object.GetRef(tx)
	s.mu.Lock()
	old := s.txs[tx.ID()]
	s.txs[tx.ID()] = tx
	s.mu.Unlock()
	object.Unref(old)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uint64) (*message.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, fmt.Errorf("action: transaction %d: %w", id, ErrNotFound)
	}
	return object.GetRef(tx), nil
}

func (s *MemoryStore) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	tx, ok := s.txs[id]
	delete(s.txs, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("action: transaction %d: %w", id, ErrNotFound)
	}
	object.Unref(tx)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]uint64, error) {
	s.mu.RLock()
	ids := make([]uint64, 0, len(s.txs))
	for id := range s.txs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

// Close releases every stored transaction.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	txs := s.txs
	s.txs = make(map[uint64]*message.Transaction)
	s.mu.Unlock()
	for _, tx := range txs {
		object.Unref(tx)
	}
	return nil
}
