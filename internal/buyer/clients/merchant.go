// Package clients wraps the remote agents the buyer talks to. Each client
// speaks the agent-to-agent text protocol and decodes the structured reply.
package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/merchant/model"
)

type MerchantClient struct {
	a2a *a2a.Client
}

func NewMerchantClient(timeout time.Duration) *MerchantClient {
	return &MerchantClient{a2a: a2a.NewClient(timeout)}
}

// ArbitrationPreferences asks a merchant which arbitration agents it
// accepts. An empty list means unrestricted.
func (c *MerchantClient) ArbitrationPreferences(ctx context.Context, merchantURL string) ([]string, error) {
	var out struct {
		Success bool     `json:"success"`
		Error   string   `json:"error"`
		Agents  []string `json:"accepted_arbitration_agents"`
	}
	err := c.a2a.AskJSON(ctx, merchantURL, map[string]any{
		"type": a2a.TypeGetArbitrationPreferences,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("query arbitration preferences: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("merchant refused preferences query: %s", out.Error)
	}
	return out.Agents, nil
}

// CreateOrder places an order with the merchant.
func (c *MerchantClient) CreateOrder(ctx context.Context, merchantURL string, req model.CreateOrderRequest) (*model.Order, error) {
	payload := map[string]any{
		"type":            a2a.TypeCreateOrder,
		"buyer_id":        req.BuyerID,
		"buyer_name":      req.BuyerName,
		"buyer_agent_url": req.BuyerAgentURL,
		"amount":          req.Amount,
		"currency":        req.Currency,
		"product":         req.Product,
		"notes":           req.Notes,
	}
	if req.Payment != nil {
		payload["payment"] = req.Payment
	}
	if req.ArbitrationAgentURL != "" {
		payload["arbitration_agent_url"] = req.ArbitrationAgentURL
	}

	var out struct {
		Success    bool         `json:"success"`
		Error      string       `json:"error"`
		Violations []string     `json:"violations"`
		Order      *model.Order `json:"order"`
	}
	if err := c.a2a.AskJSON(ctx, merchantURL, payload, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if !out.Success {
		if len(out.Violations) > 0 {
			return nil, fmt.Errorf("merchant rejected order: %s (%v)", out.Error, out.Violations)
		}
		return nil, fmt.Errorf("merchant rejected order: %s", out.Error)
	}
	if out.Order == nil {
		return nil, fmt.Errorf("merchant reply carried no order")
	}
	return out.Order, nil
}

// GetOrder fetches the merchant's current view of an order.
func (c *MerchantClient) GetOrder(ctx context.Context, merchantURL string, orderID string) (*model.Order, error) {
	var out struct {
		Success bool         `json:"success"`
		Error   string       `json:"error"`
		Order   *model.Order `json:"order"`
	}
	err := c.a2a.AskJSON(ctx, merchantURL, map[string]any{
		"type":     a2a.TypeGetOrder,
		"order_id": orderID,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("merchant refused order query: %s", out.Error)
	}
	if out.Order == nil {
		return nil, fmt.Errorf("merchant reply carried no order")
	}
	return out.Order, nil
}

// CompleteOrder confirms receipt with the merchant.
func (c *MerchantClient) CompleteOrder(ctx context.Context, merchantURL string, orderID string) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Status  string `json:"status"`
	}
	err := c.a2a.AskJSON(ctx, merchantURL, map[string]any{
		"type":     a2a.TypeCompleteOrder,
		"order_id": orderID,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("complete order: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("merchant refused completion: %s", out.Error)
	}
	return out.Status, nil
}
