package store

import (
	"context"

	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

type OrderStore interface {
	Save(ctx context.Context, o model.Order) error
	Get(ctx context.Context, orderID string) (*model.Order, error)
	Update(ctx context.Context, o model.Order) error
	List(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error)
}
