package store

import (
	"context"
	"sync"

	"github.com/xoobay/agent-commerce/internal/arbiter/model"
)

type MemoryCaseStore struct {
	mu   sync.RWMutex
	byID map[string]model.ArbitrationCase
}

func NewMemoryCaseStore() *MemoryCaseStore {
	return &MemoryCaseStore{byID: map[string]model.ArbitrationCase{}}
}

func (s *MemoryCaseStore) Save(ctx context.Context, c model.ArbitrationCase) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[c.CaseID] = c
	return nil
}

func (s *MemoryCaseStore) Get(ctx context.Context, caseID string) (*model.ArbitrationCase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[caseID]
	if !ok {
		return nil, nil
	}
	out := c
	return &out, nil
}

func (s *MemoryCaseStore) Update(ctx context.Context, c model.ArbitrationCase) error {
	return s.Save(ctx, c)
}

func (s *MemoryCaseStore) FindLiveByOrderID(ctx context.Context, orderID string) (*model.ArbitrationCase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.byID {
		if c.OrderID == orderID && c.Status.Live() {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemoryCaseStore) List(ctx context.Context, status model.CaseStatus, limit int) ([]model.ArbitrationCase, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ArbitrationCase, 0, len(s.byID))
	for _, c := range s.byID {
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
