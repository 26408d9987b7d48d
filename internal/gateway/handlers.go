package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/conversation"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/keystore"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/llm"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/store"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/vector"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/workspace"
	"github.com/shray-ya-sing/siffs-desktop-sub004/internal/writer"
)

// HealthResponse is returned by the public health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Clients int    `json:"clients,omitempty"`
}

// errorBody is the REST error envelope.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	writeJSON(w, status, body)
}

// decodeJSON reads a JSON request body into target.
func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(target)
}

// mapError translates library errors into an HTTP status and error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, conversation.ErrNotFound),
		errors.Is(err, keystore.ErrNotFound),
		errors.Is(err, workspace.ErrNotTracked):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, vector.ErrPathRequired),
		errors.Is(err, vector.ErrNoContent),
		errors.Is(err, vector.ErrEmptyQuery),
		errors.Is(err, keystore.ErrUnknownProvider):
		return http.StatusBadRequest, "invalid_request"

	case errors.Is(err, llm.ErrUnauthorized):
		return http.StatusUnprocessableEntity, "provider_key_missing"

	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests, "provider_rate_limited"

	case errors.Is(err, llm.ErrUnavailable):
		return http.StatusBadGateway, "provider_unavailable"

	case errors.Is(err, writer.ErrApplyTimeout):
		return http.StatusGatewayTimeout, "writer_timeout"

	case errors.Is(err, writer.ErrNoClient), errors.Is(err, ErrNoClients):
		return http.StatusConflict, "no_client"

	case errors.Is(err, writer.ErrUnknownBatch):
		return http.StatusConflict, "unknown_batch"

	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondMapped logs once and writes the mapped error response.
func (s *Server) respondMapped(w http.ResponseWriter, err error) {
	status, code := mapError(err)
	if status >= 500 {
		s.log.Error().Err(err).Msg("request failed")
	} else {
		s.log.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeError(w, status, code, err.Error())
}

// handleHealth returns the server health status. Only status is exposed
// publicly; details ride on the authenticated status surfaces.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(ctx *RequestContext)

// RequestContext carries everything a WS handler needs.
type RequestContext struct {
	Client *Client
	Frame  Frame
	Server *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// RespondMapped sends an error response with the library error mapped to a
// code, mirroring the REST mapping.
func (rc *RequestContext) RespondMapped(err error) {
	_, code := mapError(err)
	rc.RespondError(code, err.Error())
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	if rc.Frame.Params == nil {
		return nil
	}
	return json.Unmarshal(rc.Frame.Params, target)
}
