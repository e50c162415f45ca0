package service

import (
	"strings"
	"testing"
	"time"

	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

var testPaymentMethods = []string{"credit_card", "bank_transfer", "wallet"}

func validCreateRequest() model.CreateOrderRequest {
	return model.CreateOrderRequest{
		BuyerID:  "buyer-001",
		Amount:   100.00,
		Currency: "USD",
		Product: model.ProductPayload{
			Name:      "widget",
			Quantity:  1,
			UnitPrice: 100.00,
		},
	}
}

func TestValidateCreate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*model.CreateOrderRequest)
		wantHit string // substring expected among the violations, empty = valid
	}{
		{"valid order", func(r *model.CreateOrderRequest) {}, ""},
		{"missing buyer", func(r *model.CreateOrderRequest) { r.BuyerID = " " }, "buyer_id"},
		{"zero amount", func(r *model.CreateOrderRequest) { r.Amount = 0 }, "amount must be positive"},
		{"negative amount", func(r *model.CreateOrderRequest) { r.Amount = -5 }, "amount must be positive"},
		{"amount over ceiling", func(r *model.CreateOrderRequest) { r.Amount = 1_000_001 }, "exceeds maximum"},
		{"missing product name", func(r *model.CreateOrderRequest) { r.Product.Name = "" }, "product name"},
		{"zero quantity", func(r *model.CreateOrderRequest) { r.Product.Quantity = 0 }, "quantity must be positive"},
		{"quantity over ceiling", func(r *model.CreateOrderRequest) { r.Product.Quantity = 10_001 }, "exceeds maximum"},
		{"negative unit price", func(r *model.CreateOrderRequest) { r.Product.UnitPrice = -1 }, "unit_price"},
		{"bad currency", func(r *model.CreateOrderRequest) { r.Currency = "DOLLARS" }, "3-letter"},
		{"unknown payment method", func(r *model.CreateOrderRequest) {
			r.Payment = &model.PaymentPayload{Method: "carrier_pigeon"}
		}, "not accepted"},
		{"payment method case and separators normalized", func(r *model.CreateOrderRequest) {
			r.Payment = &model.PaymentPayload{Method: "Credit-Card"}
		}, ""},
		{"negative payment amount", func(r *model.CreateOrderRequest) {
			r.Payment = &model.PaymentPayload{Method: "wallet", Amount: -1}
		}, "payment amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			violations := validateCreate(req, testPaymentMethods)

			if tt.wantHit == "" {
				if len(violations) != 0 {
					t.Fatalf("validateCreate() = %v, want none", violations)
				}
				return
			}
			if !containsSubstring(violations, tt.wantHit) {
				t.Errorf("validateCreate() = %v, want a violation containing %q", violations, tt.wantHit)
			}
		})
	}
}

func TestValidateCreateCollectsAllViolations(t *testing.T) {
	req := model.CreateOrderRequest{
		Amount:   -1,
		Currency: "USDX",
		Product:  model.ProductPayload{Quantity: -2},
	}
	violations := validateCreate(req, testPaymentMethods)
	if len(violations) < 4 {
		t.Errorf("validateCreate() reported %d violations (%v), want all of them", len(violations), violations)
	}
}

func TestNormalizePaymentMethod(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Credit Card", "credit_card"},
		{"credit-card", "credit_card"},
		{"  WALLET ", "wallet"},
		{"bank_transfer", "bank_transfer"},
	}
	for _, tt := range tests {
		if got := normalizePaymentMethod(tt.in); got != tt.want {
			t.Errorf("normalizePaymentMethod(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAmountMismatch(t *testing.T) {
	req := validCreateRequest()
	if _, mismatch := amountMismatch(req); mismatch {
		t.Error("consistent amount flagged as mismatch")
	}

	req.Amount = 150.00
	calculated, mismatch := amountMismatch(req)
	if !mismatch {
		t.Error("inconsistent amount not flagged")
	}
	if calculated.String() != "100" {
		t.Errorf("calculated = %s, want 100", calculated)
	}
}

func TestValidateDelivery(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accepted := now.Add(-time.Hour)
	created := now.Add(-2 * time.Hour)

	order := model.Order{
		OrderID:    "ORDER_1",
		CreatedAt:  created,
		AcceptedAt: &accepted,
	}

	tests := []struct {
		name        string
		deliveredAt time.Time
		req         model.DeliverRequest
		wantHit     string
	}{
		{"valid", now, model.DeliverRequest{Method: "courier", TrackingNumber: "TRK-123"}, ""},
		{"no tracking number is fine", now, model.DeliverRequest{Method: "email"}, ""},
		{"before acceptance", accepted.Add(-time.Minute), model.DeliverRequest{Method: "courier"}, "before acceptance"},
		{"before creation", created.Add(-time.Minute), model.DeliverRequest{Method: "courier"}, "before"},
		{"too far in future", now.Add(10 * time.Minute), model.DeliverRequest{Method: "courier"}, "future"},
		{"within clock skew", now.Add(4 * time.Minute), model.DeliverRequest{Method: "courier"}, ""},
		{"missing method", now, model.DeliverRequest{}, "method is required"},
		{"method too short", now, model.DeliverRequest{Method: "x"}, "too short"},
		{"tracking too short", now, model.DeliverRequest{Method: "courier", TrackingNumber: "ab"}, "shorter than 3"},
		{"tracking too long", now, model.DeliverRequest{Method: "courier", TrackingNumber: strings.Repeat("a", 51)}, "longer than 50"},
		{"tracking bad characters", now, model.DeliverRequest{Method: "courier", TrackingNumber: "TRK 123!"}, "may only contain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := validateDelivery(order, tt.req, tt.deliveredAt, now)
			if tt.wantHit == "" {
				if len(violations) != 0 {
					t.Fatalf("validateDelivery() = %v, want none", violations)
				}
				return
			}
			if !containsSubstring(violations, tt.wantHit) {
				t.Errorf("validateDelivery() = %v, want a violation containing %q", violations, tt.wantHit)
			}
		})
	}
}

func containsSubstring(violations []string, substr string) bool {
	for _, v := range violations {
		if strings.Contains(v, substr) {
			return true
		}
	}
	return false
}
