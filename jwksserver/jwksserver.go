// Package jwksserver is a reference chi handler for publishing a JWKS
// document: the publishing side of the protocol jwtkeys verifies. It
// serves an arbitrary set of public JWKs supplied by the caller.
package jwksserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Handler serves a JWKS document at one route. Keys are supplied up
// front or added later with AddKey; Handler itself never generates or
// stores private material.
type Handler struct {
	mu   sync.RWMutex
	keys []map[string]any
}

// NewHandler builds a Handler publishing the given public JWKs.
func NewHandler(keys ...map[string]any) *Handler {
	h := &Handler{}
	h.keys = append(h.keys, keys...)
	return h
}

// AddKey appends a public JWK to the set the handler serves.
func (h *Handler) AddKey(jwk map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.keys = append(h.keys, jwk)
}

// ServeHTTP writes the current key set as a JWKS document.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	keys := make([]map[string]any, len(h.keys))
	copy(keys, h.keys)
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
}

// RegisterRoutes mounts the handler at the standard
// /.well-known/jwks.json path on r.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/.well-known/jwks.json", h.ServeHTTP)
}
