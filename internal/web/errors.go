package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/warecross/wms/internal/core"
)

// ErrorResponse is the JSON error payload returned by the API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code,omitempty"`
}

// respondError maps an internal error to a user-facing message, logs the
// underlying cause with the request ID, and writes a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, err error) {
	userMsg := core.MapError(err)

	s.logger.Error("request failed",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err,
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		s.logger.Error("encode error response", "error", encErr)
	}
}
