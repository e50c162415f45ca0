package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

var ErrOrderNotFound = errors.New("order not found")

// ValidationError carries every field-level violation found, not just the
// first.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order validation failed: %s", strings.Join(e.Violations, "; "))
}

// DuplicateOrderError reports an order id collision along with the existing
// order's status so the caller can recover idempotently.
type DuplicateOrderError struct {
	OrderID        string
	ExistingStatus model.OrderStatus
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("order already exists: %s (status %s)", e.OrderID, e.ExistingStatus)
}

// TransitionError reports an operation that is not legal in the order's
// current state. It always names both the current and the required states.
type TransitionError struct {
	OrderID  string
	Current  model.OrderStatus
	Required []model.OrderStatus
}

func (e *TransitionError) Error() string {
	names := make([]string, len(e.Required))
	for i, s := range e.Required {
		names[i] = string(s)
	}
	return fmt.Sprintf("order %s is %s, operation requires %s",
		e.OrderID, e.Current, strings.Join(names, " or "))
}
