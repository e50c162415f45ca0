package store

import (
	"context"

	"github.com/xoobay/agent-commerce/internal/arbiter/model"
)

// CaseStore persists arbitration cases. Get and FindLiveByOrderID return
// (nil, nil) when no case matches.
type CaseStore interface {
	Save(ctx context.Context, c model.ArbitrationCase) error
	Get(ctx context.Context, caseID string) (*model.ArbitrationCase, error)
	Update(ctx context.Context, c model.ArbitrationCase) error

	// FindLiveByOrderID returns the order's case that is not yet executed,
	// if any. At most one such case exists per order.
	FindLiveByOrderID(ctx context.Context, orderID string) (*model.ArbitrationCase, error)

	List(ctx context.Context, status model.CaseStatus, limit int) ([]model.ArbitrationCase, error)
}
