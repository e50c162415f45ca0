package model

import (
	"strings"
	"time"
)

type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "PENDING"
	CaseStatusProcessing CaseStatus = "PROCESSING"
	CaseStatusDecided    CaseStatus = "DECIDED"
	CaseStatusAgreed     CaseStatus = "AGREED"
	CaseStatusEscalated  CaseStatus = "ESCALATED"
	CaseStatusExecuted   CaseStatus = "EXECUTED"
)

// Live reports whether the case still blocks a new case for the same order.
// Only a fully executed case frees the order for re-arbitration.
func (s CaseStatus) Live() bool {
	return s != CaseStatusExecuted
}

type Decision string

const (
	DecisionSupportUser     Decision = "SUPPORT_USER"
	DecisionSupportMerchant Decision = "SUPPORT_MERCHANT"
	DecisionPartialSupport  Decision = "PARTIAL_SUPPORT"
)

// ArbitrationCase is a dispute between a user (buyer) agent and a merchant
// agent over one order. OrderSnapshot is the order as reported at case-open
// time and is never refreshed afterwards: the decision is made against the
// evidence submitted, not against later state.
type ArbitrationCase struct {
	CaseID  string     `json:"case_id" bson:"case_id"`
	OrderID string     `json:"order_id" bson:"order_id"`
	Status  CaseStatus `json:"status" bson:"status"`

	UserAgentURL     string `json:"user_agent_url" bson:"user_agent_url"`
	MerchantAgentURL string `json:"merchant_agent_url" bson:"merchant_agent_url"`
	Reason           string `json:"reason,omitempty" bson:"reason,omitempty"`

	OrderSnapshot map[string]any `json:"order_snapshot,omitempty" bson:"order_snapshot,omitempty"`

	Decision         Decision `json:"decision,omitempty" bson:"decision,omitempty"`
	DecisionReason   string   `json:"decision_reason,omitempty" bson:"decision_reason,omitempty"`
	ResponsibleParty string   `json:"responsible_party,omitempty" bson:"responsible_party,omitempty"`

	UserAgreed     *bool `json:"user_agreed,omitempty" bson:"user_agreed,omitempty"`
	MerchantAgreed *bool `json:"merchant_agreed,omitempty" bson:"merchant_agreed,omitempty"`

	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" bson:"updated_at"`
	DecidedAt  *time.Time `json:"decided_at,omitempty" bson:"decided_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty" bson:"executed_at,omitempty"`
}

// SnapshotOrderStatus returns the order status recorded in the snapshot.
// When no explicit status was submitted it is inferred from the evidence:
// delivery information means DELIVERED, an acceptance stamp means ACCEPTED,
// anything else counts as PENDING.
func (c *ArbitrationCase) SnapshotOrderStatus() string {
	if c.OrderSnapshot == nil {
		return ""
	}
	if s, _ := c.OrderSnapshot["status"].(string); s != "" {
		return strings.ToUpper(s)
	}
	if c.OrderSnapshot["delivered_at"] != nil || c.OrderSnapshot["delivery_info"] != nil {
		return "DELIVERED"
	}
	if c.OrderSnapshot["accepted_at"] != nil {
		return "ACCEPTED"
	}
	return "PENDING"
}
