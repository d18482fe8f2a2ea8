package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
)

type runPayload struct {
	RunID         string          `json:"run_id"`
	PromptID      string          `json:"prompt_id"`
	PromptVersion int             `json:"prompt_version"`
	Status        string          `json:"status"`
	Input         domain.Metadata `json:"input,omitempty"`
	Output        string          `json:"output,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

func toRunPayload(run domain.Run) runPayload {
	return runPayload{
		RunID:         run.ID,
		PromptID:      run.PromptID,
		PromptVersion: run.PromptVersion,
		Status:        string(run.Status),
		Input:         run.Input,
		Output:        run.Output,
		Error:         run.Error,
		CreatedAt:     run.CreatedAt,
		StartedAt:     run.StartedAt,
		FinishedAt:    run.FinishedAt,
	}
}

type enqueueRunRequest struct {
	PromptName string          `json:"prompt_name"`
	Input      domain.Metadata `json:"input,omitempty"`
}

func (api *API) handleEnqueueRun(w http.ResponseWriter, r *http.Request) {
	var req enqueueRunRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.PromptName) == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_name_required")
		return
	}

	run, err := api.runs.Enqueue(r.Context(), strings.TrimSpace(req.PromptName), req.Input)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/runs/"+run.ID)
	api.writeJSON(w, http.StatusCreated, toRunPayload(run))
}

func (api *API) handleListRuns(w http.ResponseWriter, r *http.Request) {
	filter := repo.RunFilter{
		PromptID: strings.TrimSpace(r.URL.Query().Get("prompt_id")),
		Limit:    clampInt(parseIntQuery(r, "limit", 50), 1, 200),
		Offset:   clampInt(parseIntQuery(r, "offset", 0), 0, 1<<30),
	}

	list, err := api.runs.List(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]runPayload, 0, len(list))
	for _, run := range list {
		out = append(out, toRunPayload(run))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (api *API) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.runs.Get(r.Context(), runID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toRunPayload(run))
}

// handleRequeueRun is the operator path for a worker that died mid-run:
// the row sits in running forever because nothing reclaims it automatically.
func (api *API) handleRequeueRun(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimSpace(r.PathValue("run_id"))
	if runID == "" {
		api.writeError(w, r, http.StatusBadRequest, "run_id_required")
		return
	}

	run, err := api.runs.Requeue(r.Context(), runID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toRunPayload(run))
}
