package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xoobay/agent-commerce/internal/a2a"
	"github.com/xoobay/agent-commerce/internal/events"
	"github.com/xoobay/agent-commerce/internal/merchant/service"
	"github.com/xoobay/agent-commerce/internal/merchant/store"
	"github.com/xoobay/agent-commerce/internal/notify"
)

func newTestRouter() http.Handler {
	notifier := notify.NewNotifier("merchant-test", time.Second, notify.RetryConfig{
		MaxRetries:     1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
	svc := service.New(store.NewMemoryOrderStore(), notifier, events.NewPublisher("merchant-test"),
		[]string{"credit_card"}, []string{"http://arb.example"})
	return NewRouter(svc, "merchant-test")
}

func postA2A(t *testing.T, srv *httptest.Server, text string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(a2a.Message{Text: text})
	resp, err := http.Post(srv.URL+"/a2a", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /a2a error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /a2a status = %d, want 200", resp.StatusCode)
	}

	var msg a2a.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	raw, err := a2a.ExtractJSON(msg.Text)
	if err != nil {
		t.Fatalf("reply %q carries no JSON: %v", msg.Text, err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode reply JSON: %v", err)
	}
	return out
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestA2AHealthCheckText(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	out := postA2A(t, srv, "health check")
	if out["success"] != true || out["status"] != "alive" {
		t.Errorf("health reply = %v", out)
	}
}

func TestA2ACreateOrderRoundTrip(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	payload := `{"type":"create_order","buyer_id":"buyer-001","amount":100.00,"currency":"USD",` +
		`"product":{"name":"widget","quantity":1,"unit_price":100.00}}`
	out := postA2A(t, srv, payload)
	if out["success"] != true {
		t.Fatalf("create_order reply = %v", out)
	}
	if out["status"] != "ACCEPTED" {
		t.Errorf("status = %v, want ACCEPTED", out["status"])
	}

	orderID, _ := out["order_id"].(string)
	if orderID == "" {
		t.Fatal("no order_id in reply")
	}

	got := postA2A(t, srv, `{"type":"get_order","order_id":"`+orderID+`"}`)
	if got["success"] != true {
		t.Errorf("get_order reply = %v", got)
	}
}

func TestA2AValidationFailureListsViolations(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	out := postA2A(t, srv, `{"type":"create_order","amount":-5,"product":{"name":"","quantity":0}}`)
	if out["success"] != false {
		t.Fatalf("reply = %v, want failure", out)
	}
	violations, ok := out["violations"].([]any)
	if !ok || len(violations) < 3 {
		t.Errorf("violations = %v, want all of them listed", out["violations"])
	}
}

func TestA2AArbitrationPreferences(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	out := postA2A(t, srv, `{"type":"get_arbitration_preferences"}`)
	if out["success"] != true {
		t.Fatalf("reply = %v", out)
	}
	agents, ok := out["accepted_arbitration_agents"].([]any)
	if !ok || len(agents) != 1 || agents[0] != "http://arb.example" {
		t.Errorf("agents = %v", out["accepted_arbitration_agents"])
	}
}

func TestA2AUnknownType(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	out := postA2A(t, srv, `{"type":"make_coffee"}`)
	if out["success"] != false {
		t.Errorf("reply = %v, want failure", out)
	}
}

func TestA2AFreeTextWithoutJSON(t *testing.T) {
	srv := httptest.NewServer(newTestRouter())
	defer srv.Close()

	out := postA2A(t, srv, "hello, I would like to buy a widget")
	if out["success"] != false {
		t.Errorf("reply = %v, want failure", out)
	}
}
