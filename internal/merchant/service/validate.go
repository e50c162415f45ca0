package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

var (
	maxOrderAmount  = decimal.NewFromInt(1_000_000)
	maxQuantity     = 10_000
	trackingPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// futureSkewTolerance is how far in the future a delivery timestamp may lie
// before it is rejected, to absorb clock skew between agents.
const futureSkewTolerance = 5 * time.Minute

// validateCreate checks a create_order request and collects every violation.
func validateCreate(req model.CreateOrderRequest, acceptedPaymentMethods []string) []string {
	var violations []string

	if strings.TrimSpace(req.BuyerID) == "" {
		violations = append(violations, "buyer_id is required")
	}

	amount := decimal.NewFromFloat(req.Amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		violations = append(violations, fmt.Sprintf("amount must be positive, got %s", amount))
	} else if amount.GreaterThan(maxOrderAmount) {
		violations = append(violations, fmt.Sprintf("amount %s exceeds maximum %s", amount, maxOrderAmount))
	}

	if strings.TrimSpace(req.Product.Name) == "" {
		violations = append(violations, "product name is required")
	}
	if req.Product.Quantity <= 0 {
		violations = append(violations, fmt.Sprintf("quantity must be positive, got %d", req.Product.Quantity))
	} else if req.Product.Quantity > maxQuantity {
		violations = append(violations, fmt.Sprintf("quantity %d exceeds maximum %d", req.Product.Quantity, maxQuantity))
	}
	if decimal.NewFromFloat(req.Product.UnitPrice).IsNegative() {
		violations = append(violations, fmt.Sprintf("unit_price must not be negative, got %v", req.Product.UnitPrice))
	}

	if req.Currency != "" && len(req.Currency) != 3 {
		violations = append(violations, fmt.Sprintf("currency must be a 3-letter code, got %q", req.Currency))
	}

	if req.Payment != nil {
		if v := validatePaymentMethod(req.Payment.Method, acceptedPaymentMethods); v != "" {
			violations = append(violations, v)
		}
		if decimal.NewFromFloat(req.Payment.Amount).IsNegative() {
			violations = append(violations, fmt.Sprintf("payment amount must not be negative, got %v", req.Payment.Amount))
		}
	}

	return violations
}

// amountMismatch reports whether the order amount disagrees with
// quantity x unit price by more than one cent. A mismatch is logged as a
// warning, never a rejection: the order amount wins.
func amountMismatch(req model.CreateOrderRequest) (decimal.Decimal, bool) {
	if req.Product.UnitPrice <= 0 || req.Product.Quantity <= 0 {
		return decimal.Zero, false
	}
	calculated := decimal.NewFromFloat(req.Product.UnitPrice).Mul(decimal.NewFromInt(int64(req.Product.Quantity)))
	diff := decimal.NewFromFloat(req.Amount).Sub(calculated).Abs()
	return calculated, diff.GreaterThan(decimal.NewFromFloat(0.01))
}

func validatePaymentMethod(method string, accepted []string) string {
	if method == "" {
		return ""
	}
	normalized := normalizePaymentMethod(method)
	for _, m := range accepted {
		if normalizePaymentMethod(m) == normalized {
			return ""
		}
	}
	return fmt.Sprintf("payment method %q is not accepted (accepted: %s)", method, strings.Join(accepted, ", "))
}

func normalizePaymentMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	m = strings.ReplaceAll(m, "-", "_")
	return strings.ReplaceAll(m, " ", "_")
}

// validateDelivery checks a mark_delivered request against the order's
// timeline and the delivery field rules.
func validateDelivery(o model.Order, req model.DeliverRequest, deliveredAt time.Time, now time.Time) []string {
	var violations []string

	if o.AcceptedAt != nil && deliveredAt.Before(*o.AcceptedAt) {
		violations = append(violations, fmt.Sprintf(
			"delivery time %s is before acceptance time %s",
			deliveredAt.Format(time.RFC3339), o.AcceptedAt.Format(time.RFC3339)))
	}
	if deliveredAt.Before(o.CreatedAt) {
		violations = append(violations, fmt.Sprintf(
			"delivery time %s is before order creation time %s",
			deliveredAt.Format(time.RFC3339), o.CreatedAt.Format(time.RFC3339)))
	}
	if deliveredAt.After(now.Add(futureSkewTolerance)) {
		violations = append(violations, fmt.Sprintf(
			"delivery time %s is more than %s in the future",
			deliveredAt.Format(time.RFC3339), futureSkewTolerance))
	}

	method := strings.TrimSpace(req.Method)
	if method == "" {
		violations = append(violations, "delivery method is required")
	} else if len(method) < 2 {
		violations = append(violations, fmt.Sprintf("delivery method %q is too short", req.Method))
	}

	if tn := strings.TrimSpace(req.TrackingNumber); tn != "" {
		switch {
		case len(tn) < 3:
			violations = append(violations, fmt.Sprintf("tracking number %q is shorter than 3 characters", tn))
		case len(tn) > 50:
			violations = append(violations, fmt.Sprintf("tracking number %q is longer than 50 characters", tn))
		case !trackingPattern.MatchString(tn):
			violations = append(violations, fmt.Sprintf("tracking number %q may only contain letters, digits, '-' and '_'", tn))
		}
	}

	return violations
}
