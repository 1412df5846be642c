package storage

import (
	"sort"
	"sync"

	"github.com/OKaluzny/wallet-init/pkg/models"
)

// MemoryWalletStore is an in-memory WalletStore.
type MemoryWalletStore struct {
	mu      sync.RWMutex
	wallets map[string]*models.WalletRecord
}

func NewMemoryWalletStore() *MemoryWalletStore {
	return &MemoryWalletStore{wallets: make(map[string]*models.WalletRecord)}
}

func (s *MemoryWalletStore) Get(id string) (*models.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryWalletStore) Put(rec *models.WalletRecord) error {
	if rec.ID == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[rec.ID]; ok {
		return ErrWalletExists
	}
	cp := *rec
	s.wallets[rec.ID] = &cp
	return nil
}

func (s *MemoryWalletStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]string, 0, len(s.wallets))
	for id := range s.wallets {
		result = append(result, id)
	}
	sort.Strings(result)
	return result, nil
}
