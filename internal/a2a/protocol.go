// Package a2a implements the agent-to-agent request/response envelope.
//
// The wire payload is free-form text; structured operations embed a JSON
// object in the text with a "type" field. Transport is a plain HTTP POST
// carrying {"text": ...} and returning {"text": ...}.
package a2a

import (
	"encoding/json"
	"errors"
	"strings"
)

// Recognized request types.
const (
	TypeInitiateArbitration    = "initiate_arbitration"
	TypeProcessDispute         = "process_dispute"
	TypeConfirmDecision        = "confirm_decision"
	TypeCheckTimeout           = "check_timeout"
	TypeExecuteDecision        = "execute_decision"
	TypeUpdateOrderArbitration = "update_order_arbitration"

	TypeGetArbitrationPreferences = "get_arbitration_preferences"
	TypeCreateOrder               = "create_order"
	TypeMarkDelivered             = "mark_delivered"
	TypeCompleteOrder             = "complete_order"
	TypeCancelOrder               = "cancel_order"
	TypeGetOrder                  = "get_order"
	TypeGetCase                   = "get_case"
	TypeDeliveryCompleted         = "delivery_completed"
	TypeArbitrationDecision       = "arbitration_decision"

	TypePlaceOrder     = "place_order"
	TypeOpenDispute    = "open_dispute"
	TypeConfirmReceipt = "confirm_receipt"
	TypeGetPurchase    = "get_purchase"
	TypeListPurchases  = "list_purchases"
)

// Message is the transport-level envelope: a single text payload.
type Message struct {
	Text string `json:"text"`
}

// Request is the structured form embedded in a message's text.
type Request struct {
	Type   string
	Fields map[string]any
}

var ErrNoJSON = errors.New("no JSON object in payload")

// IsHealthCheck reports whether the text is a bare liveness probe. Health
// probes must be answered without touching any state.
func IsHealthCheck(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "", "health", "health check", "ping":
		return true
	}
	return false
}

// ExtractJSON returns the JSON object embedded in free-form text, delimited
// by the first '{' and the last '}'.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseRequest extracts and decodes the structured request from a payload.
func ParseRequest(text string) (Request, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return Request{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Request{}, err
	}
	typ, _ := fields["type"].(string)
	return Request{Type: typ, Fields: fields}, nil
}

// String returns a field as a trimmed string, empty when absent.
func (r Request) String(key string) string {
	v, _ := r.Fields[key].(string)
	return strings.TrimSpace(v)
}

// Bool returns a boolean field; def is used when the field is absent.
func (r Request) Bool(key string, def bool) bool {
	v, ok := r.Fields[key].(bool)
	if !ok {
		return def
	}
	return v
}

// Decode unmarshals the request fields into a typed payload struct.
func (r Request) Decode(v any) error {
	b, err := json.Marshal(r.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// Object returns a nested object field, nil when absent or mistyped.
func (r Request) Object(key string) map[string]any {
	v, _ := r.Fields[key].(map[string]any)
	return v
}

// Respond encodes a success response payload.
func Respond(fields map[string]any) string {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// Fail encodes a failure response payload. Extra fields carry diagnostics
// such as existing ids or validation violation lists.
func Fail(msg string, extra map[string]any) string {
	out := map[string]any{"success": false, "error": msg}
	for k, v := range extra {
		out[k] = v
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// HealthAck is the liveness reply for bare health-check payloads.
func HealthAck(agent string) string {
	b, _ := json.Marshal(map[string]any{"success": true, "status": "alive", "agent": agent})
	return string(b)
}
