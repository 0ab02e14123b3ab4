// Package httpapi exposes the hsr_assistant tool as a small JSON HTTP API for
// clients that do not speak MCP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hsr-assistant/hsrdriver/internal/mcp"
	"github.com/hsr-assistant/hsrdriver/internal/supervisor"
	"github.com/hsr-assistant/hsrdriver/internal/task"
)

// maxBody bounds the size of an action request.
const maxBody = 1 << 20

// DataResponse wraps every successful response.
type DataResponse struct {
	Data any `json:"data"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Definition describes the tool to HTTP clients.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"input_schema"`
}

// ActionRequest is the body of POST /action.
type ActionRequest struct {
	Action    string          `json:"action"`
	RunConfig json.RawMessage `json:"run_config,omitempty"`
}

// New returns the API handler. Routes:
//
//	GET  /definition
//	POST /action
func New(ctl mcp.Controller, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{ctl: ctl, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /definition", s.handleDefinition)
	mux.HandleFunc("POST /action", s.handleAction)
	return s.recoverer(mux)
}

type server struct {
	ctl    mcp.Controller
	logger *slog.Logger
}

func (s *server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, DataResponse{Data: Definition{
		Name:        mcp.ToolName,
		Description: mcp.ToolDescription,
		InputSchema: task.Schema(),
	}})
}

func (s *server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		jsonError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	// The run outlives the request; the supervisor detaches it.
	text, err := s.ctl.Call(r.Context(), req.Action, req.RunConfig)
	switch {
	case errors.Is(err, supervisor.ErrUnknownAction), errors.Is(err, supervisor.ErrRunConfigMissing):
		jsonError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.logger.ErrorContext(r.Context(), "action failed", "action", req.Action, "error", err)
		jsonError(w, http.StatusInternalServerError, err.Error())
	default:
		jsonResponse(w, http.StatusOK, DataResponse{Data: text})
	}
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.ErrorContext(r.Context(), "handler panic", "path", r.URL.Path, "panic", v)
				jsonError(w, http.StatusInternalServerError, fmt.Sprint(v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, ErrorResponse{Error: message})
}
