package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/agent"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

// llmCallTimeout bounds one chat turn end to end, tool rounds included.
const llmCallTimeout = 5 * time.Minute

// defaultUserID is used when a request doesn't name a user. The service is
// single-user locally; the ID mainly namespaces keys and conversations.
const defaultUserID = "local"

type chatRequest struct {
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	FilePath       string `json:"file_path,omitempty"`
	Model          string `json:"model,omitempty"`
}

func (p *chatRequest) normalize() {
	if p.UserID == "" {
		p.UserID = defaultUserID
	}
}

type chatResponse struct {
	ConversationID string    `json:"conversation_id"`
	Route          string    `json:"route"`
	Reply          string    `json:"reply"`
	Model          string    `json:"model,omitempty"`
	Usage          llm.Usage `json:"usage"`
	DurationMs     int64     `json:"duration_ms"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "no LLM provider configured")
		return
	}

	var p chatRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "message is required")
		return
	}
	p.normalize()

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx, agent.Request{
		UserID:         p.UserID,
		ConversationID: p.ConversationID,
		DocumentPath:   p.FilePath,
		Query:          p.Message,
		Model:          p.Model,
	})
	if err != nil {
		s.respondMapped(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		ConversationID: result.ConversationID,
		Route:          result.Route,
		Reply:          result.Response,
		Model:          result.Model,
		Usage:          result.Usage,
		DurationMs:     result.Duration.Milliseconds(),
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "no LLM provider configured")
		return
	}

	var p chatRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Message == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "message is required")
		return
	}
	p.normalize()

	stream, err := newSSEStream(w, s.log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.RunStream(ctx, agent.Request{
		UserID:         p.UserID,
		ConversationID: p.ConversationID,
		DocumentPath:   p.FilePath,
		Query:          p.Message,
		Model:          p.Model,
	}, func(evt llm.StreamEvent) {
		if evt.Type == "delta" {
			stream.Delta(evt.Content)
		}
	})

	if err != nil {
		stream.Error(err)
		return
	}

	stream.Done(chatResponse{
		ConversationID: result.ConversationID,
		Route:          result.Route,
		Reply:          result.Response,
		Model:          result.Model,
		Usage:          result.Usage,
		DurationMs:     result.Duration.Milliseconds(),
	})
}

type formulaRequest struct {
	UserID       string `json:"user_id,omitempty"`
	Description  string `json:"description"`
	SheetContext string `json:"sheet_context,omitempty"`
	Model        string `json:"model,omitempty"`
}

func (s *Server) handleFormula(w http.ResponseWriter, r *http.Request) {
	if s.runner == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "no LLM provider configured")
		return
	}

	var p formulaRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Description == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "description is required")
		return
	}
	if p.UserID == "" {
		p.UserID = defaultUserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	formula, explanation, err := s.runner.Formula(ctx, p.UserID, p.Description, p.SheetContext, p.Model)
	if err != nil {
		s.respondMapped(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"formula":     formula,
		"explanation": explanation,
	})
}

type editRequest struct {
	UserID      string      `json:"user_id,omitempty"`
	FilePath    string      `json:"file_path"`
	Instruction string      `json:"instruction,omitempty"`
	Ops         []writer.Op `json:"ops,omitempty"`
	Model       string      `json:"model,omitempty"`
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if s.writer == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "no edit dispatcher configured")
		return
	}

	var p editRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.FilePath == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "file_path is required")
		return
	}
	if p.UserID == "" {
		p.UserID = defaultUserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), llmCallTimeout)
	defer cancel()

	var batch writer.Batch
	switch {
	case len(p.Ops) > 0:
		batch = writer.NewBatch(p.FilePath, p.Ops...)
		if err := batch.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_batch", err.Error())
			return
		}
	case p.Instruction != "":
		if s.runner == nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", "no LLM provider configured")
			return
		}
		planned, err := s.runner.PlanEdits(ctx, p.UserID, p.FilePath, p.Instruction, p.Model)
		if err != nil {
			s.respondMapped(w, err)
			return
		}
		batch = *planned
	default:
		writeError(w, http.StatusBadRequest, "invalid_body", "instruction or ops required")
		return
	}

	res, err := s.writer.Apply(ctx, batch)
	if err != nil {
		s.respondMapped(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// trackedFile is one workspace entry in API responses; Mapping keeps the
// original path out of its own JSON because the manifest keys on it.
type trackedFile struct {
	OriginalPath string `json:"original_path"`
	workspace.Mapping
}

func (s *Server) handleFilesList(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workspace not configured")
		return
	}

	mappings := s.workspace.List()
	files := make([]trackedFile, 0, len(mappings))
	for _, m := range mappings {
		files = append(files, trackedFile{OriginalPath: m.OriginalPath, Mapping: m})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"dir":   s.workspace.Dir(),
	})
}

type filePathRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleFilesTrack(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workspace not configured")
		return
	}

	var p filePathRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Path == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "path is required")
		return
	}

	mapping, err := s.workspace.Track(r.Context(), p.Path)
	if err != nil {
		s.respondMapped(w, err)
		return
	}

	s.clients.Broadcast("workspace.changed", map[string]any{
		"action": "tracked",
		"path":   p.Path,
	})
	writeJSON(w, http.StatusOK, trackedFile{OriginalPath: mapping.OriginalPath, Mapping: *mapping})
}

func (s *Server) handleFilesUntrack(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workspace not configured")
		return
	}

	var p filePathRequest
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if p.Path == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "path is required")
		return
	}

	if err := s.workspace.Untrack(r.Context(), p.Path); err != nil {
		s.respondMapped(w, err)
		return
	}

	s.clients.Broadcast("workspace.changed", map[string]any{
		"action": "untracked",
		"path":   p.Path,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "untracked"})
}

func (s *Server) handleFilesSync(w http.ResponseWriter, r *http.Request) {
	if s.workspace == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "workspace not configured")
		return
	}

	report, err := s.workspace.Sync(r.Context())
	if err != nil {
		s.respondMapped(w, err)
		return
	}

	s.clients.Broadcast("workspace.changed", map[string]any{
		"action": "synced",
	})
	writeJSON(w, http.StatusOK, report)
}
