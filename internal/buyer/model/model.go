package model

import "time"

// Purchase is the buyer's local record of an order placed with a merchant.
// The merchant owns the order; this record tracks what the buyer knows.
type Purchase struct {
	OrderID             string `json:"order_id" bson:"order_id"`
	MerchantAgentURL    string `json:"merchant_agent_url" bson:"merchant_agent_url"`
	ArbitrationAgentURL string `json:"arbitration_agent_url,omitempty" bson:"arbitration_agent_url,omitempty"`

	Status      string `json:"status" bson:"status"`
	ProductName string `json:"product_name" bson:"product_name"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	Amount      string `json:"amount" bson:"amount"`
	Currency    string `json:"currency" bson:"currency"`

	DeliveryProofHash string     `json:"delivery_proof_hash,omitempty" bson:"delivery_proof_hash,omitempty"`
	DeliveredAt       *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`

	CaseID           string `json:"case_id,omitempty" bson:"case_id,omitempty"`
	CaseStatus       string `json:"case_status,omitempty" bson:"case_status,omitempty"`
	Decision         string `json:"decision,omitempty" bson:"decision,omitempty"`
	DecisionReason   string `json:"decision_reason,omitempty" bson:"decision_reason,omitempty"`
	ResponsibleParty string `json:"responsible_party,omitempty" bson:"responsible_party,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// PlaceOrderRequest is what the buyer's operator submits to buy something.
type PlaceOrderRequest struct {
	MerchantAgentURL string  `json:"merchant_agent_url"`
	BuyerID          string  `json:"buyer_id"`
	BuyerName        string  `json:"buyer_name,omitempty"`
	ProductName      string  `json:"product_name"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unit_price"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency,omitempty"`
	PaymentMethod    string  `json:"payment_method,omitempty"`
	Notes            string  `json:"notes,omitempty"`
}
