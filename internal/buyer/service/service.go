// Package service implements the buying agent: the pre-trade arbitration
// compatibility check, order placement, dispute initiation and the inbound
// notices from merchants and arbiters.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xoobay/agent-commerce/internal/buyer/clients"
	"github.com/xoobay/agent-commerce/internal/buyer/model"
	"github.com/xoobay/agent-commerce/internal/buyer/store"
	"github.com/xoobay/agent-commerce/internal/locks"
	merchantmodel "github.com/xoobay/agent-commerce/internal/merchant/model"
)

var ErrPurchaseNotFound = errors.New("purchase not found")

type Service struct {
	store    store.PurchaseStore
	merchant *clients.MerchantClient
	arbiter  *clients.ArbiterClient
	locks    *locks.Keyed

	selfURL                   string
	buyerID                   string
	buyerName                 string
	acceptedArbitrationAgents []string
	defaultArbitrationAgent   string
}

type Options struct {
	SelfURL                   string
	BuyerID                   string
	BuyerName                 string
	AcceptedArbitrationAgents []string
	DefaultArbitrationAgent   string
	ClientTimeout             time.Duration
}

func New(st store.PurchaseStore, opts Options) *Service {
	timeout := opts.ClientTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		store:                     st,
		merchant:                  clients.NewMerchantClient(timeout),
		arbiter:                   clients.NewArbiterClient(timeout),
		locks:                     locks.NewKeyed(),
		selfURL:                   opts.SelfURL,
		buyerID:                   opts.BuyerID,
		buyerName:                 opts.BuyerName,
		acceptedArbitrationAgents: opts.AcceptedArbitrationAgents,
		defaultArbitrationAgent:   opts.DefaultArbitrationAgent,
	}
}

// PlaceOrder negotiates an arbitration agent with the merchant and, only if
// one is agreeable to both sides, places the order. An incompatible
// arbitration configuration aborts before any order exists.
func (s *Service) PlaceOrder(ctx context.Context, req model.PlaceOrderRequest) (model.Purchase, error) {
	if req.MerchantAgentURL == "" {
		return model.Purchase{}, errors.New("merchant_agent_url is required")
	}

	merchantAgents, err := s.merchant.ArbitrationPreferences(ctx, req.MerchantAgentURL)
	if err != nil {
		return model.Purchase{}, err
	}

	arbitrationAgent, err := MatchArbitrationAgents(s.acceptedArbitrationAgents, merchantAgents)
	if err != nil {
		slog.WarnContext(ctx, "arbitration_incompatible",
			"merchant_agent", req.MerchantAgentURL,
			"error", err,
		)
		return model.Purchase{}, err
	}

	buyerID := req.BuyerID
	if buyerID == "" {
		buyerID = s.buyerID
	}
	buyerName := req.BuyerName
	if buyerName == "" {
		buyerName = s.buyerName
	}

	createReq := merchantmodel.CreateOrderRequest{
		BuyerID:       buyerID,
		BuyerName:     buyerName,
		BuyerAgentURL: s.selfURL,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Product: merchantmodel.ProductPayload{
			Name:      req.ProductName,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
		},
		ArbitrationAgentURL: arbitrationAgent,
		Notes:               req.Notes,
	}
	if req.PaymentMethod != "" {
		createReq.Payment = &merchantmodel.PaymentPayload{
			Method: req.PaymentMethod,
			Amount: req.Amount,
		}
	}

	order, err := s.merchant.CreateOrder(ctx, req.MerchantAgentURL, createReq)
	if err != nil {
		return model.Purchase{}, err
	}

	now := time.Now().UTC()
	purchase := model.Purchase{
		OrderID:             order.OrderID,
		MerchantAgentURL:    req.MerchantAgentURL,
		ArbitrationAgentURL: arbitrationAgent,
		Status:              string(order.Status),
		ProductName:         order.Product.Name,
		Quantity:            order.Product.Quantity,
		Amount:              order.Amount,
		Currency:            order.Currency,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.Save(ctx, purchase); err != nil {
		return model.Purchase{}, fmt.Errorf("save purchase: %w", err)
	}

	slog.InfoContext(ctx, "order_placed",
		"order_id", purchase.OrderID,
		"merchant_agent", req.MerchantAgentURL,
		"arbitration_agent", arbitrationAgent,
		"amount", purchase.Amount,
	)
	return purchase, nil
}

// ConfirmReceipt confirms delivery with the merchant, completing the order.
// The per-order lock is held only around local record updates, never across
// the remote exchange.
func (s *Service) ConfirmReceipt(ctx context.Context, orderID string) (model.Purchase, error) {
	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return model.Purchase{}, ErrPurchaseNotFound
	}

	status, err := s.merchant.CompleteOrder(ctx, purchase.MerchantAgentURL, orderID)
	if err != nil {
		return model.Purchase{}, err
	}

	return s.applyUpdate(ctx, orderID, func(p *model.Purchase) {
		p.Status = status
	})
}

// applyUpdate re-reads the purchase under the per-order lock, applies the
// mutation and stores the result. Remote calls happen before it, so inbound
// notices about the same order can never deadlock against an in-flight
// operation.
func (s *Service) applyUpdate(ctx context.Context, orderID string, mutate func(*model.Purchase)) (model.Purchase, error) {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return model.Purchase{}, ErrPurchaseNotFound
	}

	mutate(purchase)
	purchase.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, *purchase); err != nil {
		return model.Purchase{}, fmt.Errorf("update purchase: %w", err)
	}
	return *purchase, nil
}

// DisputeResult reports an opened dispute and the arbiter's ruling.
type DisputeResult struct {
	Purchase model.Purchase
	Decision clients.CaseDecision
}

// OpenDispute files an arbitration case over an order and asks the arbiter
// to decide it. The order snapshot submitted as evidence is the merchant's
// current view of the order.
func (s *Service) OpenDispute(ctx context.Context, orderID string, reason string) (DisputeResult, error) {
	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return DisputeResult{}, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return DisputeResult{}, ErrPurchaseNotFound
	}

	arbiterURL := purchase.ArbitrationAgentURL
	if arbiterURL == "" {
		arbiterURL = s.defaultArbitrationAgent
	}
	if arbiterURL == "" {
		return DisputeResult{}, errors.New("no arbitration agent available for this order")
	}

	order, err := s.merchant.GetOrder(ctx, purchase.MerchantAgentURL, orderID)
	if err != nil {
		return DisputeResult{}, err
	}

	caseID, err := s.arbiter.InitiateCase(ctx, arbiterURL,
		orderID, s.selfURL, purchase.MerchantAgentURL, reason, order.Snapshot())
	if err != nil {
		return DisputeResult{}, err
	}

	opened, err := s.applyUpdate(ctx, orderID, func(p *model.Purchase) {
		p.CaseID = caseID
		p.CaseStatus = "PENDING"
	})
	if err != nil {
		return DisputeResult{}, err
	}

	decision, err := s.arbiter.ProcessDispute(ctx, arbiterURL, caseID)
	if err != nil {
		// The case exists; the decision can be requested again later.
		slog.WarnContext(ctx, "dispute_decision_pending",
			"order_id", orderID,
			"case_id", caseID,
			"error", err,
		)
		return DisputeResult{Purchase: opened}, nil
	}

	// The arbiter may have already pushed a decision notice onto this
	// record; merge rather than overwrite blindly.
	decided, err := s.applyUpdate(ctx, orderID, func(p *model.Purchase) {
		if p.CaseStatus == "" || p.CaseStatus == "PENDING" || p.CaseStatus == "DECIDED" {
			p.CaseStatus = decision.Status
		}
		p.Decision = decision.Decision
		p.DecisionReason = decision.DecisionReason
		p.ResponsibleParty = decision.ResponsibleParty
	})
	if err != nil {
		return DisputeResult{}, err
	}

	slog.InfoContext(ctx, "dispute_decided",
		"order_id", orderID,
		"case_id", caseID,
		"decision", decision.Decision,
	)
	return DisputeResult{Purchase: decided, Decision: *decision}, nil
}

// ConfirmDecision sends the buyer's agreement or disagreement to the
// arbiter that holds the order's case.
func (s *Service) ConfirmDecision(ctx context.Context, orderID string, agreed bool) (model.Purchase, error) {
	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return model.Purchase{}, ErrPurchaseNotFound
	}
	if purchase.CaseID == "" {
		return model.Purchase{}, errors.New("order has no arbitration case")
	}

	arbiterURL := purchase.ArbitrationAgentURL
	if arbiterURL == "" {
		arbiterURL = s.defaultArbitrationAgent
	}

	status, err := s.arbiter.ConfirmDecision(ctx, arbiterURL, purchase.CaseID, agreed)
	if err != nil {
		return model.Purchase{}, err
	}

	updated, err := s.applyUpdate(ctx, orderID, func(p *model.Purchase) {
		p.CaseStatus = status
	})
	if err != nil {
		return model.Purchase{}, err
	}

	slog.InfoContext(ctx, "decision_confirmation_sent",
		"order_id", orderID,
		"case_id", updated.CaseID,
		"agreed", agreed,
		"case_status", status,
	)
	return updated, nil
}

// RecordDelivery applies an inbound delivery notice from a merchant.
// Unknown orders are recorded as such but still acknowledged: the merchant
// retries otherwise and the notice is authentic either way.
func (s *Service) RecordDelivery(ctx context.Context, orderID string, proofHash string, deliveredAt *time.Time) error {
	unlock := s.locks.Lock(orderID)
	defer unlock()

	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		slog.WarnContext(ctx, "delivery_notice_unknown_order", "order_id", orderID)
		return nil
	}

	purchase.Status = "DELIVERED"
	purchase.DeliveryProofHash = proofHash
	purchase.DeliveredAt = deliveredAt
	purchase.UpdatedAt = time.Now().UTC()
	if err := s.store.Update(ctx, *purchase); err != nil {
		return fmt.Errorf("update purchase: %w", err)
	}

	slog.InfoContext(ctx, "delivery_recorded",
		"order_id", orderID,
		"proof_hash", proofHash,
	)
	return nil
}

// RecordDecision applies an inbound arbitration decision notice.
func (s *Service) RecordDecision(ctx context.Context, caseID string, decision clients.CaseDecision, phase string) error {
	purchase, err := s.store.GetByCaseID(ctx, caseID)
	if err != nil {
		return fmt.Errorf("find purchase by case: %w", err)
	}
	if purchase == nil {
		slog.WarnContext(ctx, "decision_notice_unknown_case", "case_id", caseID)
		return nil
	}

	updated, err := s.applyUpdate(ctx, purchase.OrderID, func(p *model.Purchase) {
		switch phase {
		case "decided":
			p.CaseStatus = "DECIDED"
		case "executed":
			p.CaseStatus = "EXECUTED"
		default:
			if decision.Status != "" {
				p.CaseStatus = decision.Status
			}
		}
		if decision.Decision != "" {
			p.Decision = decision.Decision
			p.DecisionReason = decision.DecisionReason
			p.ResponsibleParty = decision.ResponsibleParty
		}
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "decision_recorded",
		"order_id", updated.OrderID,
		"case_id", caseID,
		"phase", phase,
		"decision", decision.Decision,
	)
	return nil
}

// GetPurchase returns the buyer's record of an order.
func (s *Service) GetPurchase(ctx context.Context, orderID string) (model.Purchase, error) {
	purchase, err := s.store.Get(ctx, orderID)
	if err != nil {
		return model.Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	if purchase == nil {
		return model.Purchase{}, ErrPurchaseNotFound
	}
	return *purchase, nil
}

// ListPurchases returns the buyer's purchase records.
func (s *Service) ListPurchases(ctx context.Context, limit int) ([]model.Purchase, error) {
	return s.store.List(ctx, limit)
}
