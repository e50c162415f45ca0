package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/arbiter/model"
	"github.com/xoobay/agent-commerce/internal/arbiter/store"
	"github.com/xoobay/agent-commerce/internal/events"
	"github.com/xoobay/agent-commerce/internal/notify"
)

func newTestService(st store.CaseStore) *Service {
	notifier := notify.NewNotifier("arbiter-test", time.Second, notify.RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	return New(st, notifier, events.NewPublisher("arbiter-test"), DefaultConfirmationTimeout)
}

// ackingAgent answers every a2a message affirmatively.
func ackingAgent(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(a2a.Message{Text: a2a.Respond(nil)})
	}))
}

func openTestCase(t *testing.T, svc *Service, orderStatus string, partyURL string) model.ArbitrationCase {
	t.Helper()
	c, err := svc.OpenCase(context.Background(), OpenCaseRequest{
		OrderID:          "ORDER_" + orderStatus,
		UserAgentURL:     partyURL,
		MerchantAgentURL: partyURL,
		Reason:           "item never arrived",
		OrderSnapshot:    map[string]any{"status": orderStatus},
	})
	if err != nil {
		t.Fatalf("OpenCase() error = %v", err)
	}
	return c
}

func TestOpenCaseValidation(t *testing.T) {
	svc := newTestService(store.NewMemoryCaseStore())

	_, err := svc.OpenCase(context.Background(), OpenCaseRequest{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("OpenCase() error = %v, want ValidationError", err)
	}
	if len(verr.Violations) != 3 {
		t.Errorf("violations = %v, want order_id, user and merchant URLs", verr.Violations)
	}
}

func TestOpenCaseDuplicate(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())

	first := openTestCase(t, svc, "PENDING", agent.URL)

	_, err := svc.OpenCase(context.Background(), OpenCaseRequest{
		OrderID:          first.OrderID,
		UserAgentURL:     agent.URL,
		MerchantAgentURL: agent.URL,
	})
	var derr *DuplicateCaseError
	if !errors.As(err, &derr) {
		t.Fatalf("second OpenCase() error = %v, want DuplicateCaseError", err)
	}
	if derr.CaseID != first.CaseID {
		t.Errorf("duplicate reports case %s, want %s", derr.CaseID, first.CaseID)
	}
}

func TestDecideRules(t *testing.T) {
	tests := []struct {
		orderStatus     string
		wantDecision    model.Decision
		wantResponsible string
	}{
		{"PENDING", model.DecisionSupportUser, "merchant"},
		{"ACCEPTED", model.DecisionSupportUser, "merchant"},
		{"PROCESSING", model.DecisionSupportUser, "merchant"},
		{"DELIVERED", model.DecisionPartialSupport, "both"},
		{"COMPLETED", model.DecisionSupportMerchant, "user"},
		{"CANCELLED", model.DecisionPartialSupport, "both"},
	}

	agent := ackingAgent(t)
	defer agent.Close()

	for _, tt := range tests {
		t.Run(tt.orderStatus, func(t *testing.T) {
			svc := newTestService(store.NewMemoryCaseStore())
			c := openTestCase(t, svc, tt.orderStatus, agent.URL)

			res, err := svc.Decide(context.Background(), c.CaseID)
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if res.Case.Status != model.CaseStatusDecided {
				t.Errorf("status = %s, want DECIDED", res.Case.Status)
			}
			if res.Case.Decision != tt.wantDecision {
				t.Errorf("decision = %s, want %s", res.Case.Decision, tt.wantDecision)
			}
			if res.Case.ResponsibleParty != tt.wantResponsible {
				t.Errorf("responsible = %s, want %s", res.Case.ResponsibleParty, tt.wantResponsible)
			}
			if res.Case.DecidedAt == nil {
				t.Error("DecidedAt not set")
			}
			if res.PartiesAcked != 2 {
				t.Errorf("parties acked = %d, want 2", res.PartiesAcked)
			}
		})
	}
}

func TestDecideInfersStatusFromSnapshotEvidence(t *testing.T) {
	tests := []struct {
		name            string
		snapshot        map[string]any
		wantDecision    model.Decision
		wantResponsible string
	}{
		{
			name:            "delivered timestamp, no status",
			snapshot:        map[string]any{"delivered_at": "2026-08-01T12:00:00Z"},
			wantDecision:    model.DecisionPartialSupport,
			wantResponsible: "both",
		},
		{
			name:            "delivery info, no status",
			snapshot:        map[string]any{"delivery_info": map[string]any{"method": "courier"}},
			wantDecision:    model.DecisionPartialSupport,
			wantResponsible: "both",
		},
		{
			name:            "accepted timestamp, no status",
			snapshot:        map[string]any{"accepted_at": "2026-08-01T12:00:00Z"},
			wantDecision:    model.DecisionSupportUser,
			wantResponsible: "merchant",
		},
		{
			name:            "no evidence at all",
			snapshot:        map[string]any{"amount": "100.00"},
			wantDecision:    model.DecisionSupportUser,
			wantResponsible: "merchant",
		},
		{
			name:            "lowercase status normalized",
			snapshot:        map[string]any{"status": "completed"},
			wantDecision:    model.DecisionSupportMerchant,
			wantResponsible: "user",
		},
	}

	agent := ackingAgent(t)
	defer agent.Close()

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(store.NewMemoryCaseStore())
			c, err := svc.OpenCase(context.Background(), OpenCaseRequest{
				OrderID:          "ORDER_inferred_" + string(rune('a'+i)),
				UserAgentURL:     agent.URL,
				MerchantAgentURL: agent.URL,
				OrderSnapshot:    tt.snapshot,
			})
			if err != nil {
				t.Fatalf("OpenCase() error = %v", err)
			}

			res, err := svc.Decide(context.Background(), c.CaseID)
			if err != nil {
				t.Fatalf("Decide() error = %v", err)
			}
			if res.Case.Decision != tt.wantDecision {
				t.Errorf("decision = %s, want %s", res.Case.Decision, tt.wantDecision)
			}
			if res.Case.ResponsibleParty != tt.wantResponsible {
				t.Errorf("responsible = %s, want %s", res.Case.ResponsibleParty, tt.wantResponsible)
			}
		})
	}
}

func TestDecideRequiresPending(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)

	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	_, err := svc.Decide(context.Background(), c.CaseID)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("second Decide() error = %v, want TransitionError", err)
	}
	if terr.Current != model.CaseStatusDecided {
		t.Errorf("current = %s, want DECIDED", terr.Current)
	}
}

func TestDecideToleratesOneUnreachableParty(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())

	c, err := svc.OpenCase(context.Background(), OpenCaseRequest{
		OrderID:          "ORDER_half_deaf",
		UserAgentURL:     "http://127.0.0.1:1", // nothing listens here
		MerchantAgentURL: agent.URL,
		OrderSnapshot:    map[string]any{"status": "DELIVERED"},
	})
	if err != nil {
		t.Fatalf("OpenCase() error = %v", err)
	}

	res, err := svc.Decide(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("Decide() error = %v, one deaf party must not fail the decision", err)
	}
	if res.Case.Status != model.CaseStatusDecided {
		t.Errorf("status = %s, want DECIDED", res.Case.Status)
	}
	if res.PartiesAcked != 1 {
		t.Errorf("parties acked = %d, want 1", res.PartiesAcked)
	}
}

func TestConfirmDisagreementEscalates(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	res, err := svc.Confirm(context.Background(), c.CaseID, "user", false)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if res.Case.Status != model.CaseStatusEscalated {
		t.Errorf("status = %s, want ESCALATED", res.Case.Status)
	}
	if res.Case.UserAgreed == nil || *res.Case.UserAgreed {
		t.Error("disagreement not recorded")
	}
}

func TestConfirmBothAgreeExecutes(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "COMPLETED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	first, err := svc.Confirm(context.Background(), c.CaseID, "user", true)
	if err != nil {
		t.Fatalf("Confirm(user) error = %v", err)
	}
	if first.Case.Status != model.CaseStatusDecided {
		t.Errorf("status after one confirmation = %s, want DECIDED", first.Case.Status)
	}

	second, err := svc.Confirm(context.Background(), c.CaseID, "merchant", true)
	if err != nil {
		t.Fatalf("Confirm(merchant) error = %v", err)
	}
	if second.Case.Status != model.CaseStatusExecuted {
		t.Errorf("status after both confirmations = %s, want EXECUTED", second.Case.Status)
	}
	if second.Case.ExecutedAt == nil {
		t.Error("ExecutedAt not set")
	}

	// A late confirmation is a harmless replay.
	replay, err := svc.Confirm(context.Background(), c.CaseID, "user", true)
	if err != nil {
		t.Fatalf("replay Confirm() error = %v", err)
	}
	if !replay.Already {
		t.Error("replay not flagged")
	}
}

func TestConfirmRejectsUnknownParty(t *testing.T) {
	svc := newTestService(store.NewMemoryCaseStore())
	_, err := svc.Confirm(context.Background(), "CASE_x", "lawyer", true)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Confirm() error = %v, want ValidationError", err)
	}
}

func TestCheckTimeoutBeforeWindow(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	res, err := svc.CheckTimeout(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("CheckTimeout() error = %v", err)
	}
	if res.TimedOut {
		t.Error("fresh decision reported as timed out")
	}
	if res.Case.Status != model.CaseStatusDecided {
		t.Errorf("status = %s, want DECIDED", res.Case.Status)
	}
	if res.RemainingHours <= 0 || res.RemainingHours > 24 {
		t.Errorf("remaining hours = %f, want within (0, 24]", res.RemainingHours)
	}
}

func TestCheckTimeoutRequiresDecision(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)

	_, err := svc.CheckTimeout(context.Background(), c.CaseID)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("CheckTimeout() on undecided case error = %v, want TransitionError", err)
	}
	if terr.Current != model.CaseStatusPending {
		t.Errorf("current = %s, want PENDING", terr.Current)
	}
}

func TestCheckTimeoutDefaultsToAgreement(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	st := store.NewMemoryCaseStore()
	svc := newTestService(st)
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	decided, err := svc.Decide(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	// Age the decision past the confirmation window. One party has already
	// answered; the other stays silent.
	stale := decided.Case
	agreed := true
	stale.UserAgreed = &agreed
	old := time.Now().UTC().Add(-25 * time.Hour)
	stale.DecidedAt = &old
	if err := st.Update(context.Background(), stale); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	res, err := svc.CheckTimeout(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("CheckTimeout() error = %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expired window not reported as timed out")
	}
	if res.Case.Status != model.CaseStatusExecuted {
		t.Errorf("status = %s, want EXECUTED", res.Case.Status)
	}
	if res.Case.MerchantAgreed == nil || !*res.Case.MerchantAgreed {
		t.Error("silent party not defaulted to agreement")
	}
	if res.Case.UserAgreed == nil || !*res.Case.UserAgreed {
		t.Error("recorded agreement lost")
	}

	// Checking again after convergence is a harmless replay.
	replay, err := svc.CheckTimeout(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("replay CheckTimeout() error = %v", err)
	}
	if !replay.TimedOut {
		t.Error("replay not reported as timed out")
	}
	if replay.Case.Status != model.CaseStatusExecuted {
		t.Errorf("replay status = %s, want EXECUTED", replay.Case.Status)
	}
}

func TestExecuteRequiresAgreement(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	_, err := svc.Execute(context.Background(), c.CaseID)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("Execute() before agreement error = %v, want TransitionError", err)
	}
}

func TestExecuteIsIdempotent(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if _, err := svc.Confirm(context.Background(), c.CaseID, "user", true); err != nil {
		t.Fatalf("Confirm(user) error = %v", err)
	}
	executed, err := svc.Confirm(context.Background(), c.CaseID, "merchant", true)
	if err != nil {
		t.Fatalf("Confirm(merchant) error = %v", err)
	}
	firstStamp := executed.Case.ExecutedAt

	replay, err := svc.Execute(context.Background(), c.CaseID)
	if err != nil {
		t.Fatalf("replay Execute() error = %v", err)
	}
	if !replay.Already {
		t.Error("replay not flagged")
	}
	if replay.Case.ExecutedAt == nil || !replay.Case.ExecutedAt.Equal(*firstStamp) {
		t.Errorf("ExecutedAt changed on replay: %v vs %v", replay.Case.ExecutedAt, firstStamp)
	}
}

func TestCaseLifecycleFreesOrderAfterExecution(t *testing.T) {
	agent := ackingAgent(t)
	defer agent.Close()
	svc := newTestService(store.NewMemoryCaseStore())
	c := openTestCase(t, svc, "DELIVERED", agent.URL)
	if _, err := svc.Decide(context.Background(), c.CaseID); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if _, err := svc.Confirm(context.Background(), c.CaseID, "user", true); err != nil {
		t.Fatalf("Confirm(user) error = %v", err)
	}
	if _, err := svc.Confirm(context.Background(), c.CaseID, "merchant", true); err != nil {
		t.Fatalf("Confirm(merchant) error = %v", err)
	}

	// The executed case no longer blocks a new dispute on the same order.
	fresh, err := svc.OpenCase(context.Background(), OpenCaseRequest{
		OrderID:          c.OrderID,
		UserAgentURL:     agent.URL,
		MerchantAgentURL: agent.URL,
		OrderSnapshot:    map[string]any{"status": "DELIVERED"},
	})
	if err != nil {
		t.Fatalf("OpenCase() after execution error = %v", err)
	}
	if fresh.CaseID == c.CaseID {
		t.Error("new case reused the executed case id")
	}
}
