package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestPublishSendsRegisteredWebhook(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var env Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			t.Errorf("decode envelope: %v", err)
		}
		got.Store(env)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewPublisher("merchant-test")
	p.RegisterEndpoint(EventOrderDelivered, srv.URL)

	err := p.Publish(context.Background(), EventOrderDelivered, map[string]any{
		"order_id": "ORDER_1",
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	env, ok := got.Load().(Envelope)
	if !ok {
		t.Fatal("webhook not called")
	}
	if env.EventType != EventOrderDelivered || env.Source != "merchant-test" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Data["order_id"] != "ORDER_1" {
		t.Errorf("data = %v", env.Data)
	}
	if env.EventID == "" || env.IdempotencyKey == "" {
		t.Error("envelope missing ids")
	}
}

func TestPublishWithoutEndpointOnlyLogs(t *testing.T) {
	p := NewPublisher("merchant-test")
	if err := p.Publish(context.Background(), EventCaseDecided, map[string]any{"case_id": "CASE_1"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}

func TestPublishSurvivesFailingWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewPublisher("merchant-test")
	p.RegisterEndpoint(EventOrderDelivered, srv.URL)
	if err := p.Publish(context.Background(), EventOrderDelivered, nil); err != nil {
		t.Fatalf("Publish() error = %v, webhook failures must not propagate", err)
	}
}
