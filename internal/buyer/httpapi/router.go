// Package httpapi exposes the buyer agent: the agent-to-agent endpoint for
// inbound merchant and arbiter notices, plus the same endpoint for operator
// commands such as placing orders and opening disputes.
package httpapi

import (
	"net/http"

	"github.com/xoobay/agent-commerce/internal/buyer/service"
)

func NewRouter(svc *service.Service, agentName string) http.Handler {
	h := NewHandlers(svc, agentName)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /a2a", h.HandleA2A)
	mux.HandleFunc("GET /health", h.Health)

	return mux
}
