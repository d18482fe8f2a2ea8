package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/danielwei123/llm-evals-platform/internal/domain"
	"github.com/danielwei123/llm-evals-platform/internal/repo"
	"github.com/danielwei123/llm-evals-platform/internal/service/prompts"
)

type promptPayload struct {
	PromptID      string    `json:"prompt_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	ActiveVersion int       `json:"active_version"`
	CreatedAt     time.Time `json:"created_at"`
}

type versionPayload struct {
	VersionID  string          `json:"version_id"`
	PromptID   string          `json:"prompt_id"`
	Version    int             `json:"version"`
	Content    string          `json:"content"`
	Parameters domain.Metadata `json:"parameters,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type tagPayload struct {
	TagID     string    `json:"tag_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toPromptPayload(p domain.Prompt) promptPayload {
	return promptPayload{
		PromptID:      p.ID,
		Name:          p.Name,
		Description:   p.Description,
		ActiveVersion: p.ActiveVersion,
		CreatedAt:     p.CreatedAt,
	}
}

func toVersionPayload(v domain.PromptVersion) versionPayload {
	return versionPayload{
		VersionID:  v.ID,
		PromptID:   v.PromptID,
		Version:    v.Version,
		Content:    v.Content,
		Parameters: v.Parameters,
		CreatedAt:  v.CreatedAt,
	}
}

func toTagPayload(t domain.Tag) tagPayload {
	return tagPayload{TagID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

type createPromptRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Content     string          `json:"content"`
	Parameters  domain.Metadata `json:"parameters,omitempty"`
}

func (api *API) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	var req createPromptRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}
	if req.Content == "" {
		api.writeError(w, r, http.StatusBadRequest, "content_required")
		return
	}

	prompt, err := api.prompts.Create(r.Context(), prompts.CreateInput{
		Name:        req.Name,
		Description: req.Description,
		Content:     req.Content,
		Parameters:  req.Parameters,
	})
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/prompts/"+prompt.ID)
	api.writeJSON(w, http.StatusCreated, toPromptPayload(prompt))
}

func (api *API) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	filter := repo.PromptFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  clampInt(parseIntQuery(r, "limit", 50), 1, 100),
		Offset: clampInt(parseIntQuery(r, "offset", 0), 0, 1<<30),
	}

	summaries, err := api.prompts.List(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	type promptSummaryPayload struct {
		promptPayload
		LatestVersion *versionPayload `json:"latest_version,omitempty"`
	}
	out := make([]promptSummaryPayload, 0, len(summaries))
	for _, summary := range summaries {
		entry := promptSummaryPayload{promptPayload: toPromptPayload(summary.Prompt)}
		if summary.LatestVersion != nil {
			latest := toVersionPayload(*summary.LatestVersion)
			entry.LatestVersion = &latest
		}
		out = append(out, entry)
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"prompts": out})
}

func (api *API) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	if promptID == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_id_required")
		return
	}

	prompt, err := api.prompts.Get(r.Context(), promptID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	versions, err := api.prompts.ListVersions(r.Context(), promptID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	tags, err := api.prompts.ListPromptTags(r.Context(), promptID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}

	versionsOut := make([]versionPayload, 0, len(versions))
	for _, entry := range versions {
		versionsOut = append(versionsOut, toVersionPayload(entry))
	}
	tagsOut := make([]tagPayload, 0, len(tags))
	for _, tag := range tags {
		tagsOut = append(tagsOut, toTagPayload(tag))
	}

	api.writeJSON(w, http.StatusOK, map[string]any{
		"prompt":   toPromptPayload(prompt),
		"versions": versionsOut,
		"tags":     tagsOut,
	})
}

func (api *API) handleResolvePrompt(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		api.writeError(w, r, http.StatusBadRequest, "name_required")
		return
	}

	prompt, entry, err := api.prompts.Resolve(r.Context(), name)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"prompt":         toPromptPayload(prompt),
		"active_version": toVersionPayload(entry),
	})
}

type updatePromptRequest struct {
	Description string `json:"description"`
}

func (api *API) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	if promptID == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_id_required")
		return
	}
	var req updatePromptRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}

	prompt, err := api.prompts.UpdateDescription(r.Context(), promptID, req.Description)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toPromptPayload(prompt))
}

func (api *API) handleDeletePrompt(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	if promptID == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_id_required")
		return
	}

	if err := api.prompts.Delete(r.Context(), promptID); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appendVersionRequest struct {
	Content    string          `json:"content"`
	Parameters domain.Metadata `json:"parameters,omitempty"`
}

func (api *API) handleAppendVersion(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	if promptID == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_id_required")
		return
	}
	var req appendVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Content == "" {
		api.writeError(w, r, http.StatusBadRequest, "content_required")
		return
	}

	entry, err := api.prompts.AppendVersion(r.Context(), promptID, req.Content, req.Parameters)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, toVersionPayload(entry))
}

type activateVersionRequest struct {
	Version int `json:"version"`
}

func (api *API) handleActivateVersion(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	if promptID == "" {
		api.writeError(w, r, http.StatusBadRequest, "prompt_id_required")
		return
	}
	var req activateVersionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.Version < 1 {
		api.writeError(w, r, http.StatusBadRequest, "version_required")
		return
	}

	prompt, err := api.prompts.Activate(r.Context(), promptID, req.Version)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toPromptPayload(prompt))
}

func (api *API) handleAttachTag(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	tagName := strings.TrimSpace(r.PathValue("name"))
	if promptID == "" || tagName == "" {
		api.writeError(w, r, http.StatusBadRequest, "tag_name_required")
		return
	}

	tag, err := api.prompts.AttachTag(r.Context(), promptID, tagName)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, toTagPayload(tag))
}

func (api *API) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	promptID := strings.TrimSpace(r.PathValue("prompt_id"))
	tagName := strings.TrimSpace(r.PathValue("name"))
	if promptID == "" || tagName == "" {
		api.writeError(w, r, http.StatusBadRequest, "tag_name_required")
		return
	}

	if err := api.prompts.DetachTag(r.Context(), promptID, tagName); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := api.prompts.ListTags(r.Context())
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	out := make([]tagPayload, 0, len(tags))
	for _, tag := range tags {
		out = append(out, toTagPayload(tag))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"tags": out})
}
