package gateway

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// safeConfigPrefixes lists config path prefixes that can be read and
// written via RPC. All other paths are denied by default (allowlist);
// provider keys in particular never travel over it.
var safeConfigPrefixes = []string{
	"server.port",
	"server.allowedOrigins",
	"logging",
	"retrieval",
	"agent",
	"workspace.maxFileMb",
	"workspace.maxFiles",
}

func isAllowedConfigPath(key string) bool {
	for _, prefix := range safeConfigPrefixes {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			return true
		}
	}
	return false
}

// routes builds the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(loggingMiddleware(s.log))
	r.Use(corsMiddleware(s.cfg.Server.AllowedOrigins))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.authMiddleware)

		api.Route("/excel", func(ex chi.Router) {
			ex.Post("/chat", s.handleChat)
			ex.Post("/chat/stream", s.handleChatStream)
			ex.Post("/formula", s.handleFormula)
			ex.Post("/edit", s.handleEdit)
			ex.Get("/files", s.handleFilesList)
			ex.Post("/files", s.handleFilesTrack)
			ex.Delete("/files", s.handleFilesUntrack)
			ex.Post("/files/sync", s.handleFilesSync)
		})

		api.Route("/vectors", func(v chi.Router) {
			v.Post("/index", s.handleVectorsIndex)
			v.Post("/search", s.handleVectorsSearch)
			v.Get("/documents", s.handleDocumentsList)
			v.Delete("/documents/{id}", s.handleDocumentDelete)
		})

		api.Route("/keys", func(k chi.Router) {
			k.Put("/{user}/{provider}", s.handleKeySet)
			k.Get("/{user}", s.handleKeysList)
			k.Delete("/{user}/{provider}", s.handleKeyDelete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+req.URL.Path)
	})

	return r
}

// registerRPCHandlers sets up all WebSocket RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("status.get", s.rpcStatusGet)
	s.Handle("chat.send", s.rpcChatSend)
	s.Handle("chat.stream", s.rpcChatStream)
	s.Handle("workspace.list", s.rpcWorkspaceList)
	s.Handle("vectors.search", s.rpcVectorsSearch)
	s.Handle("config.get", s.rpcConfigGet)
	s.Handle("config.set", s.rpcConfigSet)
	s.Handle("writer.result", s.rpcWriterResult)
}

// Helpers that mirror config.ParseConfigPath / GetValueAtPath on the raw
// map, so the RPC surface never round-trips through typed config.

func parseConfigPathForRPC(raw string) ([]string, error) {
	if raw == "" {
		return nil, ErrEmptyConfigPath
	}
	var parts []string
	start := 0
	for i := 0; i <= len(raw); i++ {
		if i == len(raw) || raw[i] == '.' {
			if i == start {
				return nil, ErrEmptyConfigPath
			}
			parts = append(parts, raw[start:i])
			start = i + 1
		}
	}
	return parts, nil
}

func getValueAtPathRPC(root map[string]any, path []string) (any, bool) {
	current := any(root)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func setValueAtPathRPC(root map[string]any, path []string, value any) {
	current := root
	for _, key := range path[:len(path)-1] {
		next, ok := current[key]
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		m, ok := next.(map[string]any)
		if !ok {
			m = map[string]any{}
			current[key] = m
		}
		current = m
	}
	current[path[len(path)-1]] = value
}
