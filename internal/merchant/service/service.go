// Package service implements the merchant-side order lifecycle: creation
// with auto-accept, delivery with proof generation, completion and
// cancellation, plus the arbitration back-reference updates driven by the
// arbitration agent.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/events"
	"github.com/xoobay/agent-commerce/internal/locks"
	"github.com/xoobay/agent-commerce/internal/merchant/model"
	"github.com/xoobay/agent-commerce/internal/merchant/store"
	"github.com/xoobay/agent-commerce/internal/notify"
)

type Service struct {
	store    store.OrderStore
	locks    *locks.Keyed
	notifier *notify.Notifier
	events   *events.Publisher

	acceptedPaymentMethods    []string
	acceptedArbitrationAgents []string
}

func New(st store.OrderStore, notifier *notify.Notifier, pub *events.Publisher, paymentMethods, arbitrationAgents []string) *Service {
	return &Service{
		store:                     st,
		locks:                     locks.NewKeyed(),
		notifier:                  notifier,
		events:                    pub,
		acceptedPaymentMethods:    paymentMethods,
		acceptedArbitrationAgents: arbitrationAgents,
	}
}

// ArbitrationPreferences returns the merchant's accepted arbitration agent
// URLs. An empty list means the merchant is unrestricted.
func (s *Service) ArbitrationPreferences() []string {
	return s.acceptedArbitrationAgents
}

// CreateOrder validates the request, stores the order as PENDING and
// immediately auto-accepts it. The returned order is ACCEPTED.
func (s *Service) CreateOrder(ctx context.Context, req model.CreateOrderRequest) (model.Order, error) {
	if violations := validateCreate(req, s.acceptedPaymentMethods); len(violations) > 0 {
		return model.Order{}, &ValidationError{Violations: violations}
	}

	if calculated, mismatch := amountMismatch(req); mismatch {
		slog.WarnContext(ctx, "order_amount_mismatch",
			"order_amount", req.Amount,
			"calculated_amount", calculated.String(),
		)
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = "ORDER_" + uuid.New().String()
	}

	unlock := s.locks.Lock(orderID)
	defer unlock()

	existing, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	if existing != nil {
		return model.Order{}, &DuplicateOrderError{OrderID: orderID, ExistingStatus: existing.Status}
	}

	now := time.Now().UTC()
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	order := model.Order{
		OrderID:  orderID,
		Status:   model.OrderStatusPending,
		Amount:   decimal.NewFromFloat(req.Amount).String(),
		Currency: currency,
		Buyer: model.BuyerInfo{
			BuyerID:   req.BuyerID,
			BuyerName: req.BuyerName,
			AgentURL:  req.BuyerAgentURL,
		},
		Product: model.ProductInfo{
			ProductID:   req.Product.ProductID,
			Name:        req.Product.Name,
			Description: req.Product.Description,
			Quantity:    req.Product.Quantity,
			UnitPrice:   decimal.NewFromFloat(req.Product.UnitPrice).String(),
			Category:    req.Product.Category,
		},
		CreatedAt: now,
		UpdatedAt: now,
		Notes:     req.Notes,
	}

	if req.Payment != nil {
		payCurrency := req.Payment.Currency
		if payCurrency == "" {
			payCurrency = currency
		}
		payAmount := req.Payment.Amount
		if payAmount == 0 {
			payAmount = req.Amount
		}
		order.Payment = &model.PaymentInfo{
			Method:        req.Payment.Method,
			Amount:        decimal.NewFromFloat(payAmount).String(),
			Currency:      payCurrency,
			Status:        req.Payment.Status,
			TransactionID: req.Payment.TransactionID,
			PaidAt:        req.Payment.PaidAt,
		}
	}

	if req.ArbitrationAgentURL != "" {
		order.Arbitration = &model.ArbitrationInfo{
			AgentURL: req.ArbitrationAgentURL,
			Status:   model.ArbitrationNone,
		}
	}

	if err := s.store.Save(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("save order: %w", err)
	}
	s.publishStatus(ctx, order, "")

	// Auto-accept: no manual review step in this merchant.
	accepted := now
	order.Status = model.OrderStatusAccepted
	order.AcceptedAt = &accepted
	order.UpdatedAt = accepted
	if err := s.store.Update(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("accept order: %w", err)
	}
	s.publishStatus(ctx, order, model.OrderStatusPending)

	slog.InfoContext(ctx, "order_created",
		"order_id", order.OrderID,
		"buyer_id", order.Buyer.BuyerID,
		"amount", order.Amount,
		"currency", order.Currency,
		"status", order.Status,
	)
	return order, nil
}

// DeliverResult reports the outcome of MarkDelivered. AlreadyDelivered is
// set when the call was a replay of a completed transition. BuyerAcked is
// advisory: a failed notification never rolls back the local transition.
type DeliverResult struct {
	Order            model.Order
	ProofHash        string
	AlreadyDelivered bool
	BuyerAcked       bool
}

// MarkDelivered transitions an order to DELIVERED, computes the delivery
// proof and notifies the buyer agent with it.
func (s *Service) MarkDelivered(ctx context.Context, req model.DeliverRequest) (DeliverResult, error) {
	unlock := s.locks.Lock(req.OrderID)

	order, err := s.store.Get(ctx, req.OrderID)
	if err != nil {
		unlock()
		return DeliverResult{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		unlock()
		return DeliverResult{}, ErrOrderNotFound
	}

	switch order.Status {
	case model.OrderStatusDelivered, model.OrderStatusCompleted:
		unlock()
		return DeliverResult{Order: *order, ProofHash: order.DeliveryProofHash, AlreadyDelivered: true}, nil
	case model.OrderStatusCancelled:
		unlock()
		return DeliverResult{}, &TransitionError{
			OrderID:  order.OrderID,
			Current:  order.Status,
			Required: []model.OrderStatus{model.OrderStatusAccepted, model.OrderStatusProcessing},
		}
	case model.OrderStatusAccepted, model.OrderStatusProcessing:
		// legal
	default:
		unlock()
		return DeliverResult{}, &TransitionError{
			OrderID:  order.OrderID,
			Current:  order.Status,
			Required: []model.OrderStatus{model.OrderStatusAccepted, model.OrderStatusProcessing},
		}
	}

	now := time.Now().UTC()
	deliveredAt := now
	if req.DeliveredAt != nil {
		deliveredAt = req.DeliveredAt.UTC()
	}

	if violations := validateDelivery(*order, req, deliveredAt, now); len(violations) > 0 {
		unlock()
		return DeliverResult{}, &ValidationError{Violations: violations}
	}

	order.Delivery = &model.DeliveryInfo{
		Method:         req.Method,
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
		Address:        req.Address,
	}
	order.Status = model.OrderStatusDelivered
	order.DeliveredAt = &deliveredAt
	order.UpdatedAt = now

	proofHash, err := deliveryProof(*order)
	if err != nil {
		unlock()
		return DeliverResult{}, fmt.Errorf("generate delivery proof: %w", err)
	}
	order.DeliveryProofHash = proofHash

	if err := s.store.Update(ctx, *order); err != nil {
		unlock()
		return DeliverResult{}, fmt.Errorf("update order: %w", err)
	}
	committed := *order
	unlock()

	s.publishStatus(ctx, committed, model.OrderStatusAccepted)
	_ = s.events.Publish(ctx, events.EventOrderDelivered, map[string]any{
		"order_id":   committed.OrderID,
		"proof_hash": proofHash,
	})

	slog.InfoContext(ctx, "order_delivered",
		"order_id", committed.OrderID,
		"delivered_at", deliveredAt,
		"proof_hash", proofHash[:16],
	)

	// Delivery confirmation is advisory: a Nack is surfaced as a warning
	// and the local transition stands.
	acked := s.notifyBuyerDelivery(ctx, committed)

	return DeliverResult{Order: committed, ProofHash: proofHash, BuyerAcked: acked}, nil
}

// CompleteOrder transitions a DELIVERED order to COMPLETED.
func (s *Service) CompleteOrder(ctx context.Context, orderID string) (model.Order, bool, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return model.Order{}, false, ErrOrderNotFound
	}

	if order.Status == model.OrderStatusCompleted {
		return *order, true, nil
	}
	if order.Status != model.OrderStatusDelivered {
		return model.Order{}, false, &TransitionError{
			OrderID:  orderID,
			Current:  order.Status,
			Required: []model.OrderStatus{model.OrderStatusDelivered},
		}
	}

	now := time.Now().UTC()
	order.Status = model.OrderStatusCompleted
	order.CompletedAt = &now
	order.UpdatedAt = now
	if err := s.store.Update(ctx, *order); err != nil {
		return model.Order{}, false, fmt.Errorf("update order: %w", err)
	}
	s.publishStatus(ctx, *order, model.OrderStatusDelivered)

	slog.InfoContext(ctx, "order_completed", "order_id", orderID)
	return *order, false, nil
}

// CancelOrder moves any non-terminal order to CANCELLED. A COMPLETED order
// cannot be cancelled; cancelling twice is a no-op.
func (s *Service) CancelOrder(ctx context.Context, orderID string, reason string) (model.Order, bool, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, false, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return model.Order{}, false, ErrOrderNotFound
	}

	if order.Status == model.OrderStatusCancelled {
		return *order, true, nil
	}
	if order.Status == model.OrderStatusCompleted {
		return model.Order{}, false, &TransitionError{
			OrderID:  orderID,
			Current:  order.Status,
			Required: []model.OrderStatus{model.OrderStatusPending, model.OrderStatusAccepted, model.OrderStatusProcessing, model.OrderStatusDelivered},
		}
	}

	prev := order.Status
	now := time.Now().UTC()
	order.Status = model.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	if reason != "" {
		order.Notes = reason
	}
	if err := s.store.Update(ctx, *order); err != nil {
		return model.Order{}, false, fmt.Errorf("update order: %w", err)
	}
	s.publishStatus(ctx, *order, prev)

	slog.InfoContext(ctx, "order_cancelled", "order_id", orderID, "previous_status", prev)
	return *order, false, nil
}

// GetOrder returns the order or ErrOrderNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return model.Order{}, ErrOrderNotFound
	}
	return *order, nil
}

// UpdateArbitration applies an arbitration case's state onto the order's
// back-reference. Called by the arbitration agent during and after a case.
func (s *Service) UpdateArbitration(ctx context.Context, upd model.ArbitrationUpdate) (model.Order, error) {
	unlock := s.locks.Lock(upd.OrderID)
	defer unlock()

	order, err := s.store.Get(ctx, upd.OrderID)
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return model.Order{}, ErrOrderNotFound
	}

	if order.Arbitration == nil {
		order.Arbitration = &model.ArbitrationInfo{Status: model.ArbitrationNone}
	}
	if upd.CaseID != "" {
		order.Arbitration.CaseID = upd.CaseID
	}
	if upd.AgentURL != "" {
		order.Arbitration.AgentURL = upd.AgentURL
	}
	if upd.Status != "" {
		order.Arbitration.Status = model.ArbitrationStatus(upd.Status)
	}
	if upd.Decision != "" {
		order.Arbitration.Decision = upd.Decision
	}
	if upd.DecisionReason != "" {
		order.Arbitration.DecisionReason = upd.DecisionReason
	}
	if upd.ResponsibleParty != "" {
		order.Arbitration.ResponsibleParty = upd.ResponsibleParty
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, *order); err != nil {
		return model.Order{}, fmt.Errorf("update order: %w", err)
	}
	_ = s.events.Publish(ctx, events.EventOrderArbitrationUpdated, map[string]any{
		"order_id": order.OrderID,
		"case_id":  order.Arbitration.CaseID,
		"status":   order.Arbitration.Status,
		"decision": order.Arbitration.Decision,
	})

	slog.InfoContext(ctx, "order_arbitration_updated",
		"order_id", order.OrderID,
		"case_id", order.Arbitration.CaseID,
		"arbitration_status", order.Arbitration.Status,
	)
	return *order, nil
}

// proofPayload is the canonical content hashed into the delivery proof.
// Field order is fixed by the struct definition, which keeps the hash
// stable across agents.
type proofPayload struct {
	OrderID     string              `json:"order_id"`
	DeliveredAt time.Time           `json:"delivered_at"`
	Delivery    *model.DeliveryInfo `json:"delivery"`
	Amount      string              `json:"amount"`
	Currency    string              `json:"currency"`
}

func deliveryProof(o model.Order) (string, error) {
	if o.Status != model.OrderStatusDelivered || o.DeliveredAt == nil {
		return "", fmt.Errorf("order %s is not delivered", o.OrderID)
	}
	payload := proofPayload{
		OrderID:     o.OrderID,
		DeliveredAt: *o.DeliveredAt,
		Delivery:    o.Delivery,
		Amount:      o.Amount,
		Currency:    o.Currency,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func (s *Service) notifyBuyerDelivery(ctx context.Context, order model.Order) bool {
	if order.Buyer.AgentURL == "" {
		slog.WarnContext(ctx, "delivery_notice_skipped", "order_id", order.OrderID, "reason", "no buyer agent url")
		return false
	}

	payload, err := json.Marshal(map[string]any{
		"type":         a2a.TypeDeliveryCompleted,
		"order_id":     order.OrderID,
		"delivered_at": order.DeliveredAt,
		"proof_hash":   order.DeliveryProofHash,
		"delivery":     order.Delivery,
		"order_summary": map[string]any{
			"product_name": order.Product.Name,
			"quantity":     order.Product.Quantity,
			"amount":       order.Amount,
			"currency":     order.Currency,
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "delivery_notice_encode_failed", "order_id", order.OrderID, "error", err)
		return false
	}

	res := s.notifier.Notify(ctx, order.Buyer.AgentURL, string(payload))
	if !res.Acked {
		slog.WarnContext(ctx, "delivery_notice_unacknowledged",
			"order_id", order.OrderID,
			"buyer_agent", order.Buyer.AgentURL,
			"reason", res.Reason,
		)
	}
	return res.Acked
}

func (s *Service) publishStatus(ctx context.Context, order model.Order, oldStatus model.OrderStatus) {
	_ = s.events.Publish(ctx, events.EventOrderStatusUpdated, map[string]any{
		"order_id":   order.OrderID,
		"old_status": oldStatus,
		"new_status": order.Status,
		"buyer_id":   order.Buyer.BuyerID,
	})
}
