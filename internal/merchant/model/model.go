package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusAccepted   OrderStatus = "ACCEPTED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transition is legal from s, other than
// cancellation which is blocked only from COMPLETED.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

type ArbitrationStatus string

const (
	ArbitrationNone      ArbitrationStatus = "none"
	ArbitrationInitiated ArbitrationStatus = "initiated"
	ArbitrationDecided   ArbitrationStatus = "decided"
	ArbitrationAgreed    ArbitrationStatus = "agreed"
	ArbitrationEscalated ArbitrationStatus = "escalated"
)

type BuyerInfo struct {
	BuyerID   string `json:"buyer_id" bson:"buyer_id"`
	BuyerName string `json:"buyer_name,omitempty" bson:"buyer_name,omitempty"`
	Address   string `json:"address,omitempty" bson:"address,omitempty"`
	Email     string `json:"email,omitempty" bson:"email,omitempty"`
	AgentURL  string `json:"agent_url,omitempty" bson:"agent_url,omitempty"`
}

type ProductInfo struct {
	ProductID   string `json:"product_id,omitempty" bson:"product_id,omitempty"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	UnitPrice   string `json:"unit_price" bson:"unit_price"`
	Category    string `json:"category,omitempty" bson:"category,omitempty"`
}

type PaymentInfo struct {
	Method        string     `json:"method" bson:"method"`
	Amount        string     `json:"amount,omitempty" bson:"amount,omitempty"`
	Currency      string     `json:"currency,omitempty" bson:"currency,omitempty"`
	Status        string     `json:"status,omitempty" bson:"status,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty" bson:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty" bson:"paid_at,omitempty"`
}

type DeliveryInfo struct {
	Method         string `json:"method" bson:"method"`
	TrackingNumber string `json:"tracking_number,omitempty" bson:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty" bson:"carrier,omitempty"`
	Address        string `json:"address,omitempty" bson:"address,omitempty"`
}

// ArbitrationInfo is the order's back-reference to an arbitration case. It is
// written only via update_order_arbitration requests from the arbitration
// agent.
type ArbitrationInfo struct {
	AgentURL         string            `json:"agent_url,omitempty" bson:"agent_url,omitempty"`
	Status           ArbitrationStatus `json:"status" bson:"status"`
	CaseID           string            `json:"case_id,omitempty" bson:"case_id,omitempty"`
	Decision         string            `json:"decision,omitempty" bson:"decision,omitempty"`
	DecisionReason   string            `json:"decision_reason,omitempty" bson:"decision_reason,omitempty"`
	ResponsibleParty string            `json:"responsible_party,omitempty" bson:"responsible_party,omitempty"`
}

type Order struct {
	OrderID  string      `json:"order_id" bson:"order_id"`
	Status   OrderStatus `json:"status" bson:"status"`
	Amount   string      `json:"amount" bson:"amount"`
	Currency string      `json:"currency" bson:"currency"`

	Buyer   BuyerInfo   `json:"buyer" bson:"buyer"`
	Product ProductInfo `json:"product" bson:"product"`

	Payment     *PaymentInfo     `json:"payment,omitempty" bson:"payment,omitempty"`
	Delivery    *DeliveryInfo    `json:"delivery,omitempty" bson:"delivery,omitempty"`
	Arbitration *ArbitrationInfo `json:"arbitration,omitempty" bson:"arbitration,omitempty"`

	DeliveryProofHash string `json:"delivery_proof_hash,omitempty" bson:"delivery_proof_hash,omitempty"`

	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" bson:"updated_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" bson:"accepted_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`

	Notes string `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Snapshot is the immutable view of an order handed to the arbitration agent
// at case-open time.
func (o Order) Snapshot() map[string]any {
	snap := map[string]any{
		"order_id":     o.OrderID,
		"status":       string(o.Status),
		"amount":       o.Amount,
		"currency":     o.Currency,
		"product_name": o.Product.Name,
		"quantity":     o.Product.Quantity,
		"created_at":   o.CreatedAt,
	}
	if o.AcceptedAt != nil {
		snap["accepted_at"] = *o.AcceptedAt
	}
	if o.DeliveredAt != nil {
		snap["delivered_at"] = *o.DeliveredAt
		snap["delivery_info"] = o.Delivery
	}
	if o.CompletedAt != nil {
		snap["completed_at"] = *o.CompletedAt
	}
	return snap
}
