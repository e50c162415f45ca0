package store

import (
	"context"
	"sync"

	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

type MemoryOrderStore struct {
	mu   sync.RWMutex
	byID map[string]model.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{byID: map[string]model.Order{}}
}

func (s *MemoryOrderStore) Save(ctx context.Context, o model.Order) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[o.OrderID] = o
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, orderID string) (*model.Order, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.byID[orderID]
	if !ok {
		return nil, nil
	}
	out := o
	return &out, nil
}

func (s *MemoryOrderStore) Update(ctx context.Context, o model.Order) error {
	return s.Save(ctx, o)
}

func (s *MemoryOrderStore) List(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.byID))
	for _, o := range s.byID {
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
