package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/arbiter/model"
	"github.com/xoobay/agent-commerce/internal/arbiter/service"
)

type Handlers struct {
	svc       *service.Service
	agentName string
}

func NewHandlers(svc *service.Service, agentName string) *Handlers {
	return &Handlers{svc: svc, agentName: agentName}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": h.agentName})
}

func (h *Handlers) HandleA2A(w http.ResponseWriter, r *http.Request) {
	var msg a2a.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid message body", http.StatusBadRequest)
		return
	}

	if a2a.IsHealthCheck(msg.Text) {
		h.reply(w, a2a.HealthAck(h.agentName))
		return
	}

	req, err := a2a.ParseRequest(msg.Text)
	if err != nil {
		h.reply(w, a2a.Fail("request must contain a JSON object with a type field", nil))
		return
	}

	slog.InfoContext(r.Context(), "a2a_request", "agent", h.agentName, "type", req.Type)

	switch req.Type {
	case a2a.TypeInitiateArbitration:
		h.reply(w, h.initiate(r, req))
	case a2a.TypeProcessDispute:
		h.reply(w, h.decide(r, req))
	case a2a.TypeConfirmDecision:
		h.reply(w, h.confirm(r, req))
	case a2a.TypeCheckTimeout:
		h.reply(w, h.checkTimeout(r, req))
	case a2a.TypeExecuteDecision:
		h.reply(w, h.execute(r, req))
	case a2a.TypeGetCase:
		h.reply(w, h.getCase(r, req))
	default:
		h.reply(w, a2a.Fail("unknown request type: "+req.Type, nil))
	}
}

func (h *Handlers) initiate(r *http.Request, req a2a.Request) string {
	var openReq service.OpenCaseRequest
	if err := req.Decode(&openReq); err != nil {
		return a2a.Fail("invalid initiate_arbitration payload: "+err.Error(), nil)
	}

	c, err := h.svc.OpenCase(r.Context(), openReq)
	if err != nil {
		var derr *service.DuplicateCaseError
		if errors.As(err, &derr) {
			return a2a.Fail(derr.Error(), map[string]any{
				"case_id":         derr.CaseID,
				"existing_status": derr.Status,
			})
		}
		return h.caseError(r, err, "initiate_arbitration")
	}
	return a2a.Respond(map[string]any{
		"case_id":  c.CaseID,
		"order_id": c.OrderID,
		"status":   c.Status,
	})
}

func (h *Handlers) decide(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}

	res, err := h.svc.Decide(r.Context(), caseID)
	if err != nil {
		return h.caseError(r, err, "process_dispute")
	}
	return a2a.Respond(map[string]any{
		"case_id":           res.Case.CaseID,
		"status":            res.Case.Status,
		"decision":          res.Case.Decision,
		"decision_reason":   res.Case.DecisionReason,
		"responsible_party": res.Case.ResponsibleParty,
		"parties_acked":     res.PartiesAcked,
	})
}

func (h *Handlers) confirm(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}
	party := req.String("party")
	agreed := req.Bool("agreed", false)

	res, err := h.svc.Confirm(r.Context(), caseID, party, agreed)
	if err != nil {
		return h.caseError(r, err, "confirm_decision")
	}
	return a2a.Respond(map[string]any{
		"case_id":           res.Case.CaseID,
		"status":            res.Case.Status,
		"both_agreed":       res.Case.Status == model.CaseStatusAgreed || res.Case.Status == model.CaseStatusExecuted,
		"escalated":         res.Case.Status == model.CaseStatusEscalated,
		"already_finalized": res.Already,
	})
}

func (h *Handlers) checkTimeout(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}

	res, err := h.svc.CheckTimeout(r.Context(), caseID)
	if err != nil {
		return h.caseError(r, err, "check_timeout")
	}
	out := map[string]any{
		"case_id": res.Case.CaseID,
		"status":  res.Case.Status,
		"timeout": res.TimedOut,
	}
	if res.Case.Status == model.CaseStatusExecuted {
		out["execution_result"] = map[string]any{
			"decision":          res.Case.Decision,
			"decision_reason":   res.Case.DecisionReason,
			"responsible_party": res.Case.ResponsibleParty,
			"executed_at":       res.Case.ExecutedAt,
		}
	} else {
		out["remaining_hours"] = res.RemainingHours
		out["user_agreed"] = res.Case.UserAgreed != nil && *res.Case.UserAgreed
		out["merchant_agreed"] = res.Case.MerchantAgreed != nil && *res.Case.MerchantAgreed
	}
	return a2a.Respond(out)
}

func (h *Handlers) execute(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}

	res, err := h.svc.Execute(r.Context(), caseID)
	if err != nil {
		return h.caseError(r, err, "execute_decision")
	}
	return a2a.Respond(map[string]any{
		"case_id":          res.Case.CaseID,
		"status":           res.Case.Status,
		"already_executed": res.Already,
		"executed_at":      res.Case.ExecutedAt,
	})
}

func (h *Handlers) getCase(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}

	c, err := h.svc.GetCase(r.Context(), caseID)
	if err != nil {
		return h.caseError(r, err, "get_case")
	}
	return a2a.Respond(map[string]any{"case": c})
}

func (h *Handlers) caseError(r *http.Request, err error, op string) string {
	var verr *service.ValidationError
	var terr *service.TransitionError
	switch {
	case errors.Is(err, service.ErrCaseNotFound):
		return a2a.Fail("case not found", nil)
	case errors.As(err, &verr):
		return a2a.Fail("validation failed", map[string]any{"violations": verr.Violations})
	case errors.As(err, &terr):
		return a2a.Fail(terr.Error(), map[string]any{"current_status": terr.Current})
	default:
		slog.ErrorContext(r.Context(), op+"_failed", "error", err)
		return a2a.Fail("internal error", nil)
	}
}

func (h *Handlers) reply(w http.ResponseWriter, text string) {
	writeJSON(w, http.StatusOK, a2a.Message{Text: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
