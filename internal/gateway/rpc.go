package gateway

import (
	"context"
	"time"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/agent"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

// WebSocket RPC handlers. The desktop host talks to these over its long
// lived connection; the REST API covers the same ground for the task panes.

func (s *Server) rpcStatusGet(rc *RequestContext) {
	status := map[string]any{
		"version":       s.version,
		"uptimeSeconds": int(time.Since(s.startedAt).Seconds()),
		"clients":       s.clients.Count(),
		"auth":          s.auth.Mode,
	}
	if s.vectors != nil {
		status["indexedChunks"] = s.vectors.IndexedChunks()
	}
	if s.workspace != nil {
		status["trackedFiles"] = len(s.workspace.List())
	}
	if s.writer != nil {
		status["pendingBatches"] = s.writer.Pending()
	}
	rc.Respond(status)
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	if s.runner == nil {
		rc.RespondError("unavailable", "no LLM provider configured")
		return
	}

	var p chatRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Message == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}
	if p.UserID == "" {
		p.UserID = rc.Client.UserID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx, agent.Request{
		UserID:         p.UserID,
		ConversationID: p.ConversationID,
		DocumentPath:   p.FilePath,
		Query:          p.Message,
		Model:          p.Model,
	})
	if err != nil {
		rc.RespondMapped(err)
		return
	}

	rc.Respond(chatResponse{
		ConversationID: result.ConversationID,
		Route:          result.Route,
		Reply:          result.Response,
		Model:          result.Model,
		Usage:          result.Usage,
		DurationMs:     result.Duration.Milliseconds(),
	})
}

// rpcChatStream runs a chat turn with deltas pushed as chat.delta events to
// the requesting client, a chat.done event at the end, and the full result
// as the response frame.
func (s *Server) rpcChatStream(rc *RequestContext) {
	if s.runner == nil {
		rc.RespondError("unavailable", "no LLM provider configured")
		return
	}

	var p chatRequest
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Message == "" {
		rc.RespondError("invalid_params", "message is required")
		return
	}
	if p.UserID == "" {
		p.UserID = rc.Client.UserID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), llmCallTimeout)
	defer cancel()

	result, err := s.runner.RunStream(ctx, agent.Request{
		UserID:         p.UserID,
		ConversationID: p.ConversationID,
		DocumentPath:   p.FilePath,
		Query:          p.Message,
		Model:          p.Model,
	}, func(evt llm.StreamEvent) {
		if evt.Type != "delta" || evt.Content == "" {
			return
		}
		rc.Client.SendEvent("chat.delta", map[string]string{
			"request_id": rc.Frame.ID,
			"text":       evt.Content,
		}, s.clients.NextSeq())
	})
	if err != nil {
		rc.RespondMapped(err)
		return
	}

	final := chatResponse{
		ConversationID: result.ConversationID,
		Route:          result.Route,
		Reply:          result.Response,
		Model:          result.Model,
		Usage:          result.Usage,
		DurationMs:     result.Duration.Milliseconds(),
	}
	rc.Client.SendEvent("chat.done", map[string]string{
		"request_id":      rc.Frame.ID,
		"conversation_id": result.ConversationID,
	}, s.clients.NextSeq())
	rc.Respond(final)
}

func (s *Server) rpcWorkspaceList(rc *RequestContext) {
	if s.workspace == nil {
		rc.RespondError("unavailable", "workspace not configured")
		return
	}

	mappings := s.workspace.List()
	files := make([]trackedFile, 0, len(mappings))
	for _, m := range mappings {
		files = append(files, trackedFile{OriginalPath: m.OriginalPath, Mapping: m})
	}
	rc.Respond(map[string]any{
		"files": files,
		"dir":   s.workspace.Dir(),
	})
}

func (s *Server) rpcVectorsSearch(rc *RequestContext) {
	if s.vectors == nil {
		rc.RespondError("unavailable", "vector service not configured")
		return
	}

	var req vector.SearchRequest
	if err := rc.Params(&req); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := s.vectors.Search(ctx, req)
	if err != nil {
		rc.RespondMapped(err)
		return
	}
	rc.Respond(map[string]any{
		"results": results,
		"count":   len(results),
	})
}

type configGetParams struct {
	Path string `json:"path"`
}

type configSetParams struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (s *Server) rpcConfigGet(rc *RequestContext) {
	var p configGetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if !isAllowedConfigPath(p.Path) {
		rc.RespondError("forbidden", "config path not readable over rpc: "+p.Path)
		return
	}

	path, err := parseConfigPathForRPC(p.Path)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.RLock()
	value, ok := getValueAtPathRPC(s.configRaw, path)
	s.mu.RUnlock()
	if !ok {
		rc.RespondError("not_found", "no config value at "+p.Path)
		return
	}
	rc.Respond(map[string]any{"path": p.Path, "value": value})
}

// rpcConfigSet updates the raw config map. Changes live in memory until the
// CLI persists them; restart-sensitive values take effect on next start.
func (s *Server) rpcConfigSet(rc *RequestContext) {
	var p configSetParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if !isAllowedConfigPath(p.Path) {
		rc.RespondError("forbidden", "config path not writable over rpc: "+p.Path)
		return
	}

	path, err := parseConfigPathForRPC(p.Path)
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}

	s.mu.Lock()
	setValueAtPathRPC(s.configRaw, path, p.Value)
	s.mu.Unlock()

	s.log.Info().Str("path", p.Path).Str("user", rc.Client.UserID()).Msg("config updated over rpc")
	rc.Respond(map[string]any{"path": p.Path, "value": p.Value})
}

// rpcWriterResult completes a pending edit batch with the result the desktop
// host reports after applying it in Office.
func (s *Server) rpcWriterResult(rc *RequestContext) {
	if s.writer == nil {
		rc.RespondError("unavailable", "no edit dispatcher configured")
		return
	}

	var res writer.Result
	if err := rc.Params(&res); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if res.BatchID == "" {
		rc.RespondError("invalid_params", "batch_id is required")
		return
	}

	if err := s.writer.Resolve(res.BatchID, res); err != nil {
		rc.RespondMapped(err)
		return
	}
	rc.Respond(map[string]string{"status": "accepted", "batch_id": res.BatchID})
}
