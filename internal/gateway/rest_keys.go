package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/logging"
)

// The keys API never echoes a stored key back. Responses carry the masked
// form only.

type keySetRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleKeySet(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "key store not configured")
		return
	}

	user := chi.URLParam(r, "user")
	provider := chi.URLParam(r, "provider")

	var p keySetRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Key == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "key is required")
		return
	}

	if err := s.keys.Set(user, provider, p.Key); err != nil {
		s.respondMapped(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user":     user,
		"provider": provider,
		"key":      logging.MaskSecret(p.Key),
	})
}

func (s *Server) handleKeysList(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "key store not configured")
		return
	}

	user := chi.URLParam(r, "user")
	writeJSON(w, http.StatusOK, map[string]any{
		"user": user,
		"keys": s.keys.MaskedKeys(user),
	})
}

func (s *Server) handleKeyDelete(w http.ResponseWriter, r *http.Request) {
	if s.keys == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "key store not configured")
		return
	}

	user := chi.URLParam(r, "user")
	provider := chi.URLParam(r, "provider")

	if err := s.keys.Delete(user, provider); err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
