package model

import "time"

// CreateOrderRequest is the payload of a create_order operation.
type CreateOrderRequest struct {
	OrderID             string          `json:"order_id,omitempty"`
	BuyerID             string          `json:"buyer_id"`
	BuyerName           string          `json:"buyer_name,omitempty"`
	BuyerAgentURL       string          `json:"buyer_agent_url,omitempty"`
	Amount              float64         `json:"amount"`
	Currency            string          `json:"currency,omitempty"`
	Product             ProductPayload  `json:"product"`
	Payment             *PaymentPayload `json:"payment,omitempty"`
	ArbitrationAgentURL string          `json:"arbitration_agent_url,omitempty"`
	Notes               string          `json:"notes,omitempty"`
}

type ProductPayload struct {
	ProductID   string  `json:"product_id,omitempty"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Category    string  `json:"category,omitempty"`
}

type PaymentPayload struct {
	Method        string     `json:"method"`
	Amount        float64    `json:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Status        string     `json:"status,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// DeliverRequest is the payload of a mark_delivered operation. A zero
// DeliveredAt means "now".
type DeliverRequest struct {
	OrderID        string     `json:"order_id"`
	Method         string     `json:"method"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
	Carrier        string     `json:"carrier,omitempty"`
	Address        string     `json:"address,omitempty"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
}

// ArbitrationUpdate is the payload of an update_order_arbitration operation.
type ArbitrationUpdate struct {
	OrderID          string `json:"order_id"`
	CaseID           string `json:"case_id,omitempty"`
	AgentURL         string `json:"agent_url,omitempty"`
	Status           string `json:"status,omitempty"`
	Decision         string `json:"decision,omitempty"`
	DecisionReason   string `json:"decision_reason,omitempty"`
	ResponsibleParty string `json:"responsible_party,omitempty"`
}
