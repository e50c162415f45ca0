package store

import (
	"context"
	"sync"

	"github.com/xoobay/agent-commerce/internal/buyer/model"
)

type MemoryPurchaseStore struct {
	mu   sync.RWMutex
	byID map[string]model.Purchase
}

func NewMemoryPurchaseStore() *MemoryPurchaseStore {
	return &MemoryPurchaseStore{byID: map[string]model.Purchase{}}
}

func (s *MemoryPurchaseStore) Save(ctx context.Context, p model.Purchase) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[p.OrderID] = p
	return nil
}

func (s *MemoryPurchaseStore) Get(ctx context.Context, orderID string) (*model.Purchase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[orderID]
	if !ok {
		return nil, nil
	}
	out := p
	return &out, nil
}

func (s *MemoryPurchaseStore) Update(ctx context.Context, p model.Purchase) error {
	return s.Save(ctx, p)
}

func (s *MemoryPurchaseStore) GetByCaseID(ctx context.Context, caseID string) (*model.Purchase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		if p.CaseID == caseID {
			out := p
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryPurchaseStore) List(ctx context.Context, limit int) ([]model.Purchase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Purchase, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
