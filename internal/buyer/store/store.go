package store

import (
	"context"

	"github.com/xoobay/agent-commerce/internal/buyer/model"
)

// PurchaseStore persists the buyer's purchase records. Get returns
// (nil, nil) when no record matches.
type PurchaseStore interface {
	Save(ctx context.Context, p model.Purchase) error
	Get(ctx context.Context, orderID string) (*model.Purchase, error)
	Update(ctx context.Context, p model.Purchase) error
	GetByCaseID(ctx context.Context, caseID string) (*model.Purchase, error)
	List(ctx context.Context, limit int) ([]model.Purchase, error)
}
