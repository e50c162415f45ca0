// Package httpapi exposes the merchant agent over the agent-to-agent text
// protocol: a single POST /a2a endpoint that dispatches on the embedded
// request type, plus a plain health endpoint.
package httpapi

import (
	"net/http"

	"github.com/xoobay/agent-commerce/internal/merchant/service"
)

func NewRouter(svc *service.Service, agentName string) http.Handler {
	h := NewHandlers(svc, agentName)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /a2a", h.HandleA2A)
	mux.HandleFunc("GET /health", h.Health)

	return mux
}
