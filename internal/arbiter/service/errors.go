package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xoobay/agent-commerce/internal/arbiter/model"
)

var ErrCaseNotFound = errors.New("case not found")

type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("case validation failed: %s", strings.Join(e.Violations, "; "))
}

// DuplicateCaseError reports that the order already has a live case. The
// existing case id lets the caller resume instead of retrying.
type DuplicateCaseError struct {
	CaseID  string
	OrderID string
	Status  model.CaseStatus
}

func (e *DuplicateCaseError) Error() string {
	return fmt.Sprintf("order %s already has live case %s (status %s)", e.OrderID, e.CaseID, e.Status)
}

// TransitionError reports an operation illegal in the case's current state.
type TransitionError struct {
	CaseID   string
	Current  model.CaseStatus
	Required []model.CaseStatus
}

func (e *TransitionError) Error() string {
	names := make([]string, len(e.Required))
	for i, s := range e.Required {
		names[i] = string(s)
	}
	return fmt.Sprintf("case %s is %s, operation requires %s",
		e.CaseID, e.Current, strings.Join(names, " or "))
}
