package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/buyer/clients"
	"github.com/xoobay/agent-commerce/internal/buyer/model"
	"github.com/xoobay/agent-commerce/internal/buyer/service"
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
	// Inbound notices from other agents.
	case a2a.TypeDeliveryCompleted:
		h.reply(w, h.deliveryNotice(r, req))
	case a2a.TypeArbitrationDecision:
		h.reply(w, h.decisionNotice(r, req))

	// Operator commands.
	case a2a.TypePlaceOrder:
		h.reply(w, h.placeOrder(r, req))
	case a2a.TypeConfirmReceipt:
		h.reply(w, h.confirmReceipt(r, req))
	case a2a.TypeOpenDispute:
		h.reply(w, h.openDispute(r, req))
	case a2a.TypeConfirmDecision:
		h.reply(w, h.confirmDecision(r, req))
	case a2a.TypeGetPurchase:
		h.reply(w, h.getPurchase(r, req))
	case a2a.TypeListPurchases:
		h.reply(w, h.listPurchases(r, req))
	default:
		h.reply(w, a2a.Fail("unknown request type: "+req.Type, nil))
	}
}

func (h *Handlers) deliveryNotice(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	var deliveredAt *time.Time
	if raw := req.String("delivered_at"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			utc := t.UTC()
			deliveredAt = &utc
		}
	}

	if err := h.svc.RecordDelivery(r.Context(), orderID, req.String("proof_hash"), deliveredAt); err != nil {
		slog.ErrorContext(r.Context(), "delivery_notice_failed", "order_id", orderID, "error", err)
		return a2a.Fail("internal error", nil)
	}
	return a2a.Respond(map[string]any{"status": "received", "order_id": orderID})
}

func (h *Handlers) decisionNotice(r *http.Request, req a2a.Request) string {
	caseID := req.String("case_id")
	if caseID == "" {
		return a2a.Fail("case_id is required", nil)
	}

	decision := clients.CaseDecision{
		CaseID:           caseID,
		Decision:         req.String("decision"),
		DecisionReason:   req.String("decision_reason"),
		ResponsibleParty: req.String("responsible_party"),
	}
	if err := h.svc.RecordDecision(r.Context(), caseID, decision, req.String("phase")); err != nil {
		slog.ErrorContext(r.Context(), "decision_notice_failed", "case_id", caseID, "error", err)
		return a2a.Fail("internal error", nil)
	}
	return a2a.Respond(map[string]any{"status": "received", "case_id": caseID})
}

func (h *Handlers) placeOrder(r *http.Request, req a2a.Request) string {
	var placeReq model.PlaceOrderRequest
	if err := req.Decode(&placeReq); err != nil {
		return a2a.Fail("invalid place_order payload: "+err.Error(), nil)
	}

	purchase, err := h.svc.PlaceOrder(r.Context(), placeReq)
	if err != nil {
		var ierr *service.IncompatibleError
		if errors.As(err, &ierr) {
			return a2a.Fail(ierr.Error(), map[string]any{
				"incompatible":    true,
				"buyer_agents":    ierr.BuyerAgents,
				"merchant_agents": ierr.MerchantAgents,
			})
		}
		return a2a.Fail(err.Error(), nil)
	}
	return a2a.Respond(map[string]any{
		"order_id":          purchase.OrderID,
		"status":            purchase.Status,
		"arbitration_agent": purchase.ArbitrationAgentURL,
	})
}

func (h *Handlers) confirmReceipt(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	purchase, err := h.svc.ConfirmReceipt(r.Context(), orderID)
	if err != nil {
		return h.purchaseError(r, err, "confirm_receipt")
	}
	return a2a.Respond(map[string]any{"order_id": purchase.OrderID, "status": purchase.Status})
}

func (h *Handlers) openDispute(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	res, err := h.svc.OpenDispute(r.Context(), orderID, req.String("reason"))
	if err != nil {
		return h.purchaseError(r, err, "open_dispute")
	}
	return a2a.Respond(map[string]any{
		"order_id":          res.Purchase.OrderID,
		"case_id":           res.Purchase.CaseID,
		"case_status":       res.Purchase.CaseStatus,
		"decision":          res.Purchase.Decision,
		"responsible_party": res.Purchase.ResponsibleParty,
	})
}

func (h *Handlers) confirmDecision(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	purchase, err := h.svc.ConfirmDecision(r.Context(), orderID, req.Bool("agreed", true))
	if err != nil {
		return h.purchaseError(r, err, "confirm_decision")
	}
	return a2a.Respond(map[string]any{
		"order_id":    purchase.OrderID,
		"case_id":     purchase.CaseID,
		"case_status": purchase.CaseStatus,
	})
}

func (h *Handlers) getPurchase(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	purchase, err := h.svc.GetPurchase(r.Context(), orderID)
	if err != nil {
		return h.purchaseError(r, err, "get_purchase")
	}
	return a2a.Respond(map[string]any{"purchase": purchase})
}

func (h *Handlers) listPurchases(r *http.Request, req a2a.Request) string {
	limit := 0
	if v, ok := req.Fields["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	purchases, err := h.svc.ListPurchases(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "list_purchases_failed", "error", err)
		return a2a.Fail("internal error", nil)
	}
	return a2a.Respond(map[string]any{"purchases": purchases, "count": len(purchases)})
}

func (h *Handlers) purchaseError(r *http.Request, err error, op string) string {
	if errors.Is(err, service.ErrPurchaseNotFound) {
		return a2a.Fail("purchase not found", nil)
	}
	slog.ErrorContext(r.Context(), op+"_failed", "error", err)
	return a2a.Fail(err.Error(), nil)
}

func (h *Handlers) reply(w http.ResponseWriter, text string) {
	writeJSON(w, http.StatusOK, a2a.Message{Text: text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
