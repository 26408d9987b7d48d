package gateway

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
)

func (s *Server) handleVectorsIndex(w http.ResponseWriter, r *http.Request) {
	if s.vectors == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector service not configured")
		return
	}

	var req vector.IndexRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	// Textual kinds may arrive without content; the tracked workspace copy
	// is read directly. Office kinds always carry client-extracted content.
	if req.Text == "" && len(req.Sheets) == 0 && s.workspace != nil {
		if m, _, err := s.workspace.Lookup(req.Path); err == nil && m != nil && m.Kind.IsTextual() {
			data, err := os.ReadFile(m.TempPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "reading tracked copy: "+err.Error())
				return
			}
			req.Text = string(data)
		}
	}

	doc, err := s.vectors.IndexDocument(r.Context(), req)
	if err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": doc.ID,
		"name":        doc.Name,
		"chunks":      doc.ChunkCount,
		"dimensions":  s.vectors.Dimensions(),
	})
}

func (s *Server) handleVectorsSearch(w http.ResponseWriter, r *http.Request) {
	if s.vectors == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector service not configured")
		return
	}

	var req vector.SearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	results, err := s.vectors.Search(r.Context(), req)
	if err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleDocumentsList(w http.ResponseWriter, r *http.Request) {
	if s.vectors == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector service not configured")
		return
	}

	docs, err := s.vectors.ListDocuments(r.Context())
	if err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleDocumentDelete(w http.ResponseWriter, r *http.Request) {
	if s.vectors == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "vector service not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.vectors.DeleteDocument(r.Context(), id); err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
