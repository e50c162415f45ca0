// Package httpapi exposes the arbitration agent over the agent-to-agent text
// protocol.
package httpapi

import (
	"net/http"

	"github.com/xoobay/agent-commerce/internal/arbiter/service"
)

func NewRouter(svc *service.Service, agentName string) http.Handler {
	h := NewHandlers(svc, agentName)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /a2a", h.HandleA2A)
	mux.HandleFunc("GET /health", h.Health)

	return mux
}
