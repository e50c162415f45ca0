// Package service implements the arbitration case lifecycle: one live case
// per order, a decision derived from the order snapshot, two-party
// confirmation with a default-agree timeout, and idempotent execution.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/arbiter/model"
	"github.com/xoobay/agent-commerce/internal/arbiter/store"
	"github.com/xoobay/agent-commerce/internal/events"
	"github.com/xoobay/agent-commerce/internal/locks"
	"github.com/xoobay/agent-commerce/internal/notify"
)

// DefaultConfirmationTimeout is how long after a decision the parties may
// confirm before unanswered confirmations default to agreement.
const DefaultConfirmationTimeout = 24 * time.Hour

type Service struct {
	store    store.CaseStore
	locks    *locks.Keyed
	notifier *notify.Notifier
	events   *events.Publisher

	confirmationTimeout time.Duration
}

func New(st store.CaseStore, notifier *notify.Notifier, pub *events.Publisher, confirmationTimeout time.Duration) *Service {
	if confirmationTimeout <= 0 {
		confirmationTimeout = DefaultConfirmationTimeout
	}
	return &Service{
		store:               st,
		locks:               locks.NewKeyed(),
		notifier:            notifier,
		events:              pub,
		confirmationTimeout: confirmationTimeout,
	}
}

// OpenCaseRequest is the payload of an initiate_arbitration operation.
type OpenCaseRequest struct {
	OrderID          string         `json:"order_id"`
	UserAgentURL     string         `json:"user_agent_url"`
	MerchantAgentURL string         `json:"merchant_agent_url"`
	Reason           string         `json:"reason,omitempty"`
	OrderSnapshot    map[string]any `json:"order_snapshot,omitempty"`
}

// OpenCase registers a new dispute. An order can have at most one case that
// is not yet executed; a second initiation returns the existing case id.
func (s *Service) OpenCase(ctx context.Context, req OpenCaseRequest) (model.ArbitrationCase, error) {
	var violations []string
	if strings.TrimSpace(req.OrderID) == "" {
		violations = append(violations, "order_id is required")
	}
	if strings.TrimSpace(req.UserAgentURL) == "" {
		violations = append(violations, "user_agent_url is required")
	}
	if strings.TrimSpace(req.MerchantAgentURL) == "" {
		violations = append(violations, "merchant_agent_url is required")
	}
	if len(violations) > 0 {
		return model.ArbitrationCase{}, &ValidationError{Violations: violations}
	}

	unlock := s.locks.Lock("order:" + req.OrderID)

	existing, err := s.store.FindLiveByOrderID(ctx, req.OrderID)
	if err != nil {
		unlock()
		return model.ArbitrationCase{}, fmt.Errorf("find live case: %w", err)
	}
	if existing != nil {
		unlock()
		return model.ArbitrationCase{}, &DuplicateCaseError{
			CaseID:  existing.CaseID,
			OrderID: req.OrderID,
			Status:  existing.Status,
		}
	}

	now := time.Now().UTC()
	c := model.ArbitrationCase{
		CaseID:           "CASE_" + uuid.New().String(),
		OrderID:          req.OrderID,
		Status:           model.CaseStatusPending,
		UserAgentURL:     req.UserAgentURL,
		MerchantAgentURL: req.MerchantAgentURL,
		Reason:           req.Reason,
		OrderSnapshot:    req.OrderSnapshot,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Save(ctx, c); err != nil {
		unlock()
		return model.ArbitrationCase{}, fmt.Errorf("save case: %w", err)
	}
	unlock()

	slog.InfoContext(ctx, "case_opened",
		"case_id", c.CaseID,
		"order_id", c.OrderID,
		"reason", c.Reason,
	)

	// Best effort: mark the order as under arbitration at the merchant.
	s.updateMerchantOrder(ctx, c, "initiated")

	return c, nil
}

// DecideResult reports the outcome of Decide, including how many of the two
// parties acknowledged the decision notice.
type DecideResult struct {
	Case         model.ArbitrationCase
	PartiesAcked int
}

// Decide evaluates a pending case against its order snapshot and records the
// decision. The case passes through PROCESSING so a crash mid-decision is
// visible; a failed decision rolls back to PENDING.
func (s *Service) Decide(ctx context.Context, caseID string) (DecideResult, error) {
	unlock := s.locks.Lock(caseID)

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		unlock()
		return DecideResult{}, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		unlock()
		return DecideResult{}, ErrCaseNotFound
	}
	if c.Status != model.CaseStatusPending {
		unlock()
		return DecideResult{}, &TransitionError{
			CaseID:   caseID,
			Current:  c.Status,
			Required: []model.CaseStatus{model.CaseStatusPending},
		}
	}

	c.Status = model.CaseStatusProcessing
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, *c); err != nil {
		unlock()
		return DecideResult{}, fmt.Errorf("mark case processing: %w", err)
	}

	decision, responsible, reason := decideFromSnapshot(c.SnapshotOrderStatus())

	now := time.Now().UTC()
	c.Status = model.CaseStatusDecided
	c.Decision = decision
	c.ResponsibleParty = responsible
	c.DecisionReason = reason
	c.DecidedAt = &now
	c.UpdatedAt = now
	if err := s.store.Update(ctx, *c); err != nil {
		// Roll back so the case can be decided again.
		c.Status = model.CaseStatusPending
		c.Decision = ""
		c.ResponsibleParty = ""
		c.DecisionReason = ""
		c.DecidedAt = nil
		c.UpdatedAt = time.Now().UTC()
		if rbErr := s.store.Update(ctx, *c); rbErr != nil {
			slog.ErrorContext(ctx, "case_rollback_failed", "case_id", caseID, "error", rbErr)
		}
		unlock()
		return DecideResult{}, fmt.Errorf("record decision: %w", err)
	}
	committed := *c
	unlock()

	_ = s.events.Publish(ctx, events.EventCaseDecided, map[string]any{
		"order_id":          committed.OrderID,
		"case_id":           committed.CaseID,
		"decision":          committed.Decision,
		"responsible_party": committed.ResponsibleParty,
	})
	slog.InfoContext(ctx, "case_decided",
		"case_id", committed.CaseID,
		"order_id", committed.OrderID,
		"decision", committed.Decision,
		"responsible_party", committed.ResponsibleParty,
	)

	s.updateMerchantOrder(ctx, committed, "decided")
	acked := s.notifyParties(ctx, committed, partyNotice{
		Type:     a2a.TypeArbitrationDecision,
		Phase:    "decided",
		AskReply: true,
	})
	if acked == 0 {
		slog.ErrorContext(ctx, "decision_notice_unheard",
			"case_id", committed.CaseID,
			"order_id", committed.OrderID,
		)
	}

	return DecideResult{Case: committed, PartiesAcked: acked}, nil
}

// decideFromSnapshot maps the order state at case-open time to a ruling.
func decideFromSnapshot(orderStatus string) (model.Decision, string, string) {
	switch orderStatus {
	case "PENDING", "ACCEPTED", "PROCESSING", "":
		return model.DecisionSupportUser, "merchant",
			"order was never delivered; merchant bears responsibility"
	case "DELIVERED":
		return model.DecisionPartialSupport, "both",
			"order was delivered but not confirmed; responsibility is shared"
	case "COMPLETED":
		return model.DecisionSupportMerchant, "user",
			"order was delivered and confirmed complete; merchant fulfilled its obligations"
	default:
		return model.DecisionPartialSupport, "both",
			"order state is ambiguous; responsibility is shared"
	}
}

// ConfirmResult reports the case after a party's confirmation. Already is
// set when the case had reached a terminal confirmation state beforehand.
type ConfirmResult struct {
	Case    model.ArbitrationCase
	Already bool
}

// Confirm records one party's agreement or disagreement with the decision.
// Any disagreement escalates immediately; once both parties agree the
// decision is executed in the same call.
func (s *Service) Confirm(ctx context.Context, caseID string, party string, agreed bool) (ConfirmResult, error) {
	if party != "user" && party != "merchant" {
		return ConfirmResult{}, &ValidationError{Violations: []string{
			fmt.Sprintf("party must be user or merchant, got %q", party),
		}}
	}

	unlock := s.locks.Lock(caseID)

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		unlock()
		return ConfirmResult{}, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		unlock()
		return ConfirmResult{}, ErrCaseNotFound
	}

	switch c.Status {
	case model.CaseStatusAgreed, model.CaseStatusEscalated, model.CaseStatusExecuted:
		out := *c
		unlock()
		return ConfirmResult{Case: out, Already: true}, nil
	case model.CaseStatusDecided:
		// legal
	default:
		cur := c.Status
		unlock()
		return ConfirmResult{}, &TransitionError{
			CaseID:   caseID,
			Current:  cur,
			Required: []model.CaseStatus{model.CaseStatusDecided},
		}
	}

	v := agreed
	if party == "user" {
		c.UserAgreed = &v
	} else {
		c.MerchantAgreed = &v
	}
	c.UpdatedAt = time.Now().UTC()

	if !agreed {
		c.Status = model.CaseStatusEscalated
		if err := s.store.Update(ctx, *c); err != nil {
			unlock()
			return ConfirmResult{}, fmt.Errorf("escalate case: %w", err)
		}
		committed := *c
		unlock()

		_ = s.events.Publish(ctx, events.EventCaseEscalated, map[string]any{
			"order_id":    committed.OrderID,
			"case_id":     committed.CaseID,
			"disagreeing": party,
		})
		slog.WarnContext(ctx, "case_escalated",
			"case_id", committed.CaseID,
			"order_id", committed.OrderID,
			"disagreeing_party", party,
		)
		s.updateMerchantOrder(ctx, committed, "escalated")
		return ConfirmResult{Case: committed}, nil
	}

	bothAgreed := c.UserAgreed != nil && *c.UserAgreed &&
		c.MerchantAgreed != nil && *c.MerchantAgreed
	if bothAgreed {
		c.Status = model.CaseStatusAgreed
	}
	if err := s.store.Update(ctx, *c); err != nil {
		unlock()
		return ConfirmResult{}, fmt.Errorf("record confirmation: %w", err)
	}

	if !bothAgreed {
		committed := *c
		unlock()
		slog.InfoContext(ctx, "case_confirmation_recorded",
			"case_id", committed.CaseID,
			"party", party,
			"agreed", agreed,
		)
		return ConfirmResult{Case: committed}, nil
	}

	executed, err := s.executeLocked(ctx, c)
	unlock()
	if err != nil {
		return ConfirmResult{}, err
	}
	s.afterExecute(ctx, executed)
	return ConfirmResult{Case: executed}, nil
}

// TimeoutResult reports a timeout check. TimedOut is set when the
// confirmation window had expired and unanswered confirmations were
// defaulted to agreement; RemainingHours is how much of the window is left
// otherwise.
type TimeoutResult struct {
	Case           model.ArbitrationCase
	TimedOut       bool
	RemainingHours float64
}

// CheckTimeout defaults unanswered confirmations to agreement once the
// confirmation window has passed, then executes the decision. Legal only
// from DECIDED; checking an already executed case is a harmless replay so
// repeated checks converge and stay converged.
func (s *Service) CheckTimeout(ctx context.Context, caseID string) (TimeoutResult, error) {
	unlock := s.locks.Lock(caseID)

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		unlock()
		return TimeoutResult{}, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		unlock()
		return TimeoutResult{}, ErrCaseNotFound
	}
	if c.Status == model.CaseStatusExecuted {
		out := *c
		timedOut := c.DecidedAt != nil && time.Since(*c.DecidedAt) >= s.confirmationTimeout
		unlock()
		return TimeoutResult{Case: out, TimedOut: timedOut}, nil
	}
	if c.Status != model.CaseStatusDecided || c.DecidedAt == nil {
		cur := c.Status
		unlock()
		return TimeoutResult{}, &TransitionError{
			CaseID:   caseID,
			Current:  cur,
			Required: []model.CaseStatus{model.CaseStatusDecided},
		}
	}
	if elapsed := time.Since(*c.DecidedAt); elapsed < s.confirmationTimeout {
		out := *c
		unlock()
		return TimeoutResult{Case: out, RemainingHours: (s.confirmationTimeout - elapsed).Hours()}, nil
	}

	agree := true
	if c.UserAgreed == nil {
		c.UserAgreed = &agree
	}
	if c.MerchantAgreed == nil {
		c.MerchantAgreed = &agree
	}

	// A recorded disagreement would have escalated already, so both flags
	// are true here.
	c.Status = model.CaseStatusAgreed
	c.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, *c); err != nil {
		unlock()
		return TimeoutResult{}, fmt.Errorf("default confirmations: %w", err)
	}

	slog.InfoContext(ctx, "case_confirmation_timeout",
		"case_id", c.CaseID,
		"order_id", c.OrderID,
		"decided_at", c.DecidedAt,
	)

	executed, err := s.executeLocked(ctx, c)
	unlock()
	if err != nil {
		return TimeoutResult{}, err
	}
	s.afterExecute(ctx, executed)
	return TimeoutResult{Case: executed, TimedOut: true}, nil
}

// ExecuteResult reports an execution. Already is set for replays.
type ExecuteResult struct {
	Case    model.ArbitrationCase
	Already bool
}

// Execute finalizes an agreed case. Replaying an executed case is a no-op
// that returns the recorded outcome.
func (s *Service) Execute(ctx context.Context, caseID string) (ExecuteResult, error) {
	unlock := s.locks.Lock(caseID)

	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		unlock()
		return ExecuteResult{}, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		unlock()
		return ExecuteResult{}, ErrCaseNotFound
	}
	if c.Status == model.CaseStatusExecuted {
		out := *c
		unlock()
		return ExecuteResult{Case: out, Already: true}, nil
	}
	if c.Status != model.CaseStatusAgreed {
		cur := c.Status
		unlock()
		return ExecuteResult{}, &TransitionError{
			CaseID:   caseID,
			Current:  cur,
			Required: []model.CaseStatus{model.CaseStatusAgreed},
		}
	}

	executed, err := s.executeLocked(ctx, c)
	unlock()
	if err != nil {
		return ExecuteResult{}, err
	}
	s.afterExecute(ctx, executed)
	return ExecuteResult{Case: executed}, nil
}

// GetCase returns the case or ErrCaseNotFound.
func (s *Service) GetCase(ctx context.Context, caseID string) (model.ArbitrationCase, error) {
	c, err := s.store.Get(ctx, caseID)
	if err != nil {
		return model.ArbitrationCase{}, fmt.Errorf("get case: %w", err)
	}
	if c == nil {
		return model.ArbitrationCase{}, ErrCaseNotFound
	}
	return *c, nil
}

// executeLocked stamps the case EXECUTED. The caller holds the case lock;
// notifications happen afterwards via afterExecute, outside the lock.
func (s *Service) executeLocked(ctx context.Context, c *model.ArbitrationCase) (model.ArbitrationCase, error) {
	now := time.Now().UTC()
	c.Status = model.CaseStatusExecuted
	c.ExecutedAt = &now
	c.UpdatedAt = now
	if err := s.store.Update(ctx, *c); err != nil {
		return model.ArbitrationCase{}, fmt.Errorf("execute case: %w", err)
	}
	return *c, nil
}

func (s *Service) afterExecute(ctx context.Context, c model.ArbitrationCase) {
	_ = s.events.Publish(ctx, events.EventCaseExecuted, map[string]any{
		"order_id":          c.OrderID,
		"case_id":           c.CaseID,
		"decision":          c.Decision,
		"responsible_party": c.ResponsibleParty,
	})
	slog.InfoContext(ctx, "case_executed",
		"case_id", c.CaseID,
		"order_id", c.OrderID,
		"decision", c.Decision,
	)

	s.updateMerchantOrder(ctx, c, "agreed")
	s.notifyParties(ctx, c, partyNotice{
		Type:  a2a.TypeArbitrationDecision,
		Phase: "executed",
	})
}

// updateMerchantOrder pushes the case state onto the order's arbitration
// back-reference. Best effort: the merchant may be unreachable, and the case
// transition never depends on it.
func (s *Service) updateMerchantOrder(ctx context.Context, c model.ArbitrationCase, status string) {
	if c.MerchantAgentURL == "" {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"type":              a2a.TypeUpdateOrderArbitration,
		"order_id":          c.OrderID,
		"case_id":           c.CaseID,
		"status":            status,
		"decision":          c.Decision,
		"decision_reason":   c.DecisionReason,
		"responsible_party": c.ResponsibleParty,
	})
	if err != nil {
		slog.ErrorContext(ctx, "order_update_encode_failed", "case_id", c.CaseID, "error", err)
		return
	}
	res := s.notifier.Notify(ctx, c.MerchantAgentURL, string(payload))
	if !res.Acked {
		slog.WarnContext(ctx, "order_update_unacknowledged",
			"case_id", c.CaseID,
			"order_id", c.OrderID,
			"merchant_agent", c.MerchantAgentURL,
			"reason", res.Reason,
		)
	}
}

type partyNotice struct {
	Type     string
	Phase    string
	AskReply bool
}

// notifyParties fans the notice out to both parties in parallel and returns
// how many acknowledged. One unreachable party never blocks the other.
func (s *Service) notifyParties(ctx context.Context, c model.ArbitrationCase, notice partyNotice) int {
	payload, err := json.Marshal(map[string]any{
		"type":                 notice.Type,
		"phase":                notice.Phase,
		"case_id":              c.CaseID,
		"order_id":             c.OrderID,
		"decision":             c.Decision,
		"decision_reason":      c.DecisionReason,
		"responsible_party":    c.ResponsibleParty,
		"confirmation_awaited": notice.AskReply,
	})
	if err != nil {
		slog.ErrorContext(ctx, "party_notice_encode_failed", "case_id", c.CaseID, "error", err)
		return 0
	}

	targets := []struct {
		party string
		url   string
	}{
		{"user", c.UserAgentURL},
		{"merchant", c.MerchantAgentURL},
	}
	acked := make([]bool, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range targets {
		if t.url == "" {
			continue
		}
		g.Go(func() error {
			res := s.notifier.Notify(gctx, t.url, string(payload))
			acked[i] = res.Acked
			if !res.Acked {
				slog.WarnContext(gctx, "party_notice_unacknowledged",
					"case_id", c.CaseID,
					"party", t.party,
					"target", t.url,
					"reason", res.Reason,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range acked {
		if ok {
			count++
		}
	}
	return count
}
