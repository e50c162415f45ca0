package clients

import (
	"context"
	"fmt"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
)

type ArbiterClient struct {
	a2a *a2a.Client
}

func NewArbiterClient(timeout time.Duration) *ArbiterClient {
	return &ArbiterClient{a2a: a2a.NewClient(timeout)}
}

// InitiateCase opens a dispute over an order. If the order already has a
// live case the arbiter reports it and the existing case id is returned.
func (c *ArbiterClient) InitiateCase(ctx context.Context, arbiterURL string, orderID, userAgentURL, merchantAgentURL, reason string, orderSnapshot map[string]any) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		CaseID  string `json:"case_id"`
	}
	err := c.a2a.AskJSON(ctx, arbiterURL, map[string]any{
		"type":               a2a.TypeInitiateArbitration,
		"order_id":           orderID,
		"user_agent_url":     userAgentURL,
		"merchant_agent_url": merchantAgentURL,
		"reason":             reason,
		"order_snapshot":     orderSnapshot,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("initiate arbitration: %w", err)
	}
	if !out.Success {
		// Resuming an existing live case is not a failure for the buyer.
		if out.CaseID != "" {
			return out.CaseID, nil
		}
		return "", fmt.Errorf("arbiter refused case: %s", out.Error)
	}
	return out.CaseID, nil
}

// CaseDecision is the arbiter's ruling on a dispute.
type CaseDecision struct {
	CaseID           string `json:"case_id"`
	Status           string `json:"status"`
	Decision         string `json:"decision"`
	DecisionReason   string `json:"decision_reason"`
	ResponsibleParty string `json:"responsible_party"`
}

// ProcessDispute asks the arbiter to decide a pending case.
func (c *ArbiterClient) ProcessDispute(ctx context.Context, arbiterURL string, caseID string) (*CaseDecision, error) {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		CaseDecision
	}
	err := c.a2a.AskJSON(ctx, arbiterURL, map[string]any{
		"type":    a2a.TypeProcessDispute,
		"case_id": caseID,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("process dispute: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("arbiter refused to decide: %s", out.Error)
	}
	return &out.CaseDecision, nil
}

// ConfirmDecision sends the buyer's agreement or disagreement.
func (c *ArbiterClient) ConfirmDecision(ctx context.Context, arbiterURL string, caseID string, agreed bool) (string, error) {
	var out struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Status  string `json:"status"`
	}
	err := c.a2a.AskJSON(ctx, arbiterURL, map[string]any{
		"type":    a2a.TypeConfirmDecision,
		"case_id": caseID,
		"party":   "user",
		"agreed":  agreed,
	}, &out)
	if err != nil {
		return "", fmt.Errorf("confirm decision: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("arbiter refused confirmation: %s", out.Error)
	}
	return out.Status, nil
}
