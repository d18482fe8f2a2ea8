// Package api exposes the registry over HTTP. Handlers stay thin: decode,
// validate the obvious, call a service, map the sentinel errors onto status
// codes.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielwei123/llm-evals-platform/internal/platform/httpserver"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
	"github.com/danielwei123/llm-evals-platform/internal/service/prompts"
	"github.com/danielwei123/llm-evals-platform/internal/service/runs"
)

type API struct {
	logger  *slog.Logger
	prompts *prompts.Service
	runs    *runs.Service
}

func New(logger *slog.Logger, promptService *prompts.Service, runService *runs.Service) *API {
	if logger == nil || promptService == nil || runService == nil {
		return nil
	}
	return &API{logger: logger, prompts: promptService, runs: runService}
}

func (api *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /prompts", api.handleListPrompts)
	mux.HandleFunc("POST /prompts", api.handleCreatePrompt)
	mux.HandleFunc("GET /prompts/{prompt_id}", api.handleGetPrompt)
	mux.HandleFunc("PATCH /prompts/{prompt_id}", api.handleUpdatePrompt)
	mux.HandleFunc("DELETE /prompts/{prompt_id}", api.handleDeletePrompt)
	mux.HandleFunc("GET /prompts/by-name/{name}", api.handleResolvePrompt)

	mux.HandleFunc("POST /prompts/{prompt_id}/versions", api.handleAppendVersion)
	mux.HandleFunc("POST /prompts/{prompt_id}/activate", api.handleActivateVersion)

	mux.HandleFunc("PUT /prompts/{prompt_id}/tags/{name}", api.handleAttachTag)
	mux.HandleFunc("DELETE /prompts/{prompt_id}/tags/{name}", api.handleDetachTag)
	mux.HandleFunc("GET /tags", api.handleListTags)

	mux.HandleFunc("POST /runs", api.handleEnqueueRun)
	mux.HandleFunc("GET /runs", api.handleListRuns)
	mux.HandleFunc("GET /runs/{run_id}", api.handleGetRun)
	mux.HandleFunc("POST /runs/{run_id}/requeue", api.handleRequeueRun)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func (api *API) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *API) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	requestID, _ := httpserver.RequestIDFromContext(r.Context())
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": requestID,
	})
}

// writeServiceError maps repository sentinels onto HTTP statuses. An
// Inconsistent error means the ledger and the active pointer disagree; that
// is a bug or corruption, so it is logged loudly and surfaced as a 500
// instead of being dressed up as a client error.
func (api *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		api.writeError(w, r, http.StatusNotFound, "not_found")
	case errors.Is(err, repo.ErrConflict):
		api.writeError(w, r, http.StatusConflict, "conflict")
	case errors.Is(err, repo.ErrInconsistent):
		api.logger.Error("registry inconsistency", "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	default:
		api.logger.Error("request failed", "path", r.URL.Path, "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
