package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/merchant/model"
	"github.com/xoobay/agent-commerce/internal/merchant/service"
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

// HandleA2A answers one agent-to-agent message. Transport errors aside, the
// endpoint always replies 200: operation failures are reported inside the
// reply payload so the calling agent can parse them.
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
	case a2a.TypeGetArbitrationPreferences:
		h.reply(w, a2a.Respond(map[string]any{
			"accepted_arbitration_agents": h.svc.ArbitrationPreferences(),
		}))
	case a2a.TypeCreateOrder:
		h.reply(w, h.createOrder(r, req))
	case a2a.TypeMarkDelivered:
		h.reply(w, h.markDelivered(r, req))
	case a2a.TypeCompleteOrder:
		h.reply(w, h.completeOrder(r, req))
	case a2a.TypeCancelOrder:
		h.reply(w, h.cancelOrder(r, req))
	case a2a.TypeGetOrder:
		h.reply(w, h.getOrder(r, req))
	case a2a.TypeUpdateOrderArbitration:
		h.reply(w, h.updateArbitration(r, req))
	default:
		h.reply(w, a2a.Fail("unknown request type: "+req.Type, nil))
	}
}

func (h *Handlers) createOrder(r *http.Request, req a2a.Request) string {
	var createReq model.CreateOrderRequest
	if err := req.Decode(&createReq); err != nil {
		return a2a.Fail("invalid create_order payload: "+err.Error(), nil)
	}

	order, err := h.svc.CreateOrder(r.Context(), createReq)
	if err != nil {
		var verr *service.ValidationError
		var derr *service.DuplicateOrderError
		switch {
		case errors.As(err, &verr):
			return a2a.Fail("order validation failed", map[string]any{"violations": verr.Violations})
		case errors.As(err, &derr):
			return a2a.Fail(derr.Error(), map[string]any{
				"order_id":        derr.OrderID,
				"existing_status": derr.ExistingStatus,
			})
		default:
			slog.ErrorContext(r.Context(), "create_order_failed", "error", err)
			return a2a.Fail("internal error creating order", nil)
		}
	}

	return a2a.Respond(map[string]any{"order": order, "order_id": order.OrderID, "status": order.Status})
}

func (h *Handlers) markDelivered(r *http.Request, req a2a.Request) string {
	var deliverReq model.DeliverRequest
	if err := req.Decode(&deliverReq); err != nil {
		return a2a.Fail("invalid mark_delivered payload: "+err.Error(), nil)
	}
	if deliverReq.OrderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	res, err := h.svc.MarkDelivered(r.Context(), deliverReq)
	if err != nil {
		return h.orderError(r, err, "mark_delivered")
	}

	return a2a.Respond(map[string]any{
		"order_id":          res.Order.OrderID,
		"status":            res.Order.Status,
		"proof_hash":        res.ProofHash,
		"already_delivered": res.AlreadyDelivered,
		"buyer_acked":       res.BuyerAcked,
	})
}

func (h *Handlers) completeOrder(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	order, already, err := h.svc.CompleteOrder(r.Context(), orderID)
	if err != nil {
		return h.orderError(r, err, "complete_order")
	}
	return a2a.Respond(map[string]any{
		"order_id":          order.OrderID,
		"status":            order.Status,
		"already_completed": already,
	})
}

func (h *Handlers) cancelOrder(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	order, already, err := h.svc.CancelOrder(r.Context(), orderID, req.String("reason"))
	if err != nil {
		return h.orderError(r, err, "cancel_order")
	}
	return a2a.Respond(map[string]any{
		"order_id":          order.OrderID,
		"status":            order.Status,
		"already_cancelled": already,
	})
}

func (h *Handlers) getOrder(r *http.Request, req a2a.Request) string {
	orderID := req.String("order_id")
	if orderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		return h.orderError(r, err, "get_order")
	}
	return a2a.Respond(map[string]any{"order": order})
}

func (h *Handlers) updateArbitration(r *http.Request, req a2a.Request) string {
	var upd model.ArbitrationUpdate
	if err := req.Decode(&upd); err != nil {
		return a2a.Fail("invalid update_order_arbitration payload: "+err.Error(), nil)
	}
	if upd.OrderID == "" {
		return a2a.Fail("order_id is required", nil)
	}

	order, err := h.svc.UpdateArbitration(r.Context(), upd)
	if err != nil {
		return h.orderError(r, err, "update_order_arbitration")
	}
	return a2a.Respond(map[string]any{
		"order_id":           order.OrderID,
		"arbitration_status": order.Arbitration.Status,
	})
}

func (h *Handlers) orderError(r *http.Request, err error, op string) string {
	var verr *service.ValidationError
	var terr *service.TransitionError
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		return a2a.Fail("order not found", nil)
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
