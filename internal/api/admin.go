package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"englishtutor/internal/agents"
	"englishtutor/internal/curriculum"
	"englishtutor/internal/prompts"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

type PromptResponse struct {
	AgentName  string `json:"agent_name"`
	PromptText string `json:"prompt_text"`
	Version    int    `json:"version"`
	// IsDefault is true when no version has been saved yet and the embedded
	// default text is in effect.
	IsDefault bool `json:"is_default"`
}

func (h *Handler) GetPromptHandler(w http.ResponseWriter, r *http.Request) {
	agentKey := chi.URLParam(r, "agent")
	if unknownAgentKey(w, agentKey) {
		return
	}

	active, text, err := h.promptService.Active(r.Context(), agentKey)
	if err != nil {
		logrus.Errorf("Failed to load prompt for %s: %v", agentKey, err)
		http.Error(w, "Failed to load prompt", http.StatusInternalServerError)
		return
	}

	resp := PromptResponse{AgentName: agentKey, PromptText: text, IsDefault: active == nil}
	if active != nil {
		resp.Version = active.Version
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) PromptHistoryHandler(w http.ResponseWriter, r *http.Request) {
	agentKey := chi.URLParam(r, "agent")
	if unknownAgentKey(w, agentKey) {
		return
	}

	history, err := h.promptService.History(r.Context(), agentKey)
	if err != nil {
		logrus.Errorf("Failed to load prompt history for %s: %v", agentKey, err)
		http.Error(w, "Failed to load prompt history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

type SavePromptRequest struct {
	PromptText string `json:"prompt_text"`
}

func (h *Handler) SavePromptHandler(w http.ResponseWriter, r *http.Request) {
	agentKey := chi.URLParam(r, "agent")
	if unknownAgentKey(w, agentKey) {
		return
	}

	var req SavePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	saved, err := h.promptService.Save(r.Context(), agentKey, req.PromptText)
	if err != nil {
		if errors.Is(err, prompts.ErrEmptyPrompt) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to save prompt", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

type RestorePromptRequest struct {
	Version int `json:"version"`
}

func (h *Handler) RestorePromptHandler(w http.ResponseWriter, r *http.Request) {
	agentKey := chi.URLParam(r, "agent")
	if unknownAgentKey(w, agentKey) {
		return
	}

	var req RestorePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.promptService.Restore(r.Context(), agentKey, req.Version); err != nil {
		if errors.Is(err, prompts.ErrVersionNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to restore prompt", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type OptimizePromptRequest struct {
	PromptText string `json:"prompt_text"`
	Goal       string `json:"goal"`
}

type OptimizePromptResponse struct {
	Suggestion string `json:"suggestion"`
}

const optimizeMetaPrompt = `You are a Prompt Engineering Expert.
Your task is to help the user improve an LLM system prompt for an English Tutoring app.

Current Prompt to improve:
---
%s
---

The goal for improvement is: %s

Please provide an improved version of the prompt.
IMPORTANT: Return the FULL improved prompt text clearly in your response.
Keep it professional and effective.
Response only with the improved prompt content or very brief explanation.`

// OptimizePromptHandler asks the counselor persona to rewrite a prompt toward
// a stated goal. The suggestion is returned to the admin, never saved
// directly.
func (h *Handler) OptimizePromptHandler(w http.ResponseWriter, r *http.Request) {
	agentKey := chi.URLParam(r, "agent")
	if unknownAgentKey(w, agentKey) {
		return
	}

	var req OptimizePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Goal == "" {
		http.Error(w, "Goal is required", http.StatusBadRequest)
		return
	}
	if req.PromptText == "" {
		text, err := h.promptService.ActiveOrDefault(r.Context(), agentKey)
		if err != nil {
			http.Error(w, "Failed to load prompt", http.StatusInternalServerError)
			return
		}
		req.PromptText = text
	}

	orch, err := agents.NewOrchestrator(r.Context(), h.completer, h.promptService)
	if err != nil {
		logrus.Errorf("Failed to build orchestrator: %v", err)
		http.Error(w, "Optimization failed", http.StatusInternalServerError)
		return
	}
	agent := orch.AgentFor(agents.TypeOnboarding)

	suggestion, _, err := agent.Respond(r.Context(), []agents.HistoryItem{{
		Sender: "user",
		Text:   fmt.Sprintf(optimizeMetaPrompt, req.PromptText, req.Goal),
	}}, nil)
	if err != nil {
		logrus.Errorf("Prompt optimization failed for %s: %v", agentKey, err)
		http.Error(w, "Optimization failed", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, OptimizePromptResponse{Suggestion: suggestion})
}

func (h *Handler) ListCurriculumHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.curriculumService.List(r.Context())
	if err != nil {
		logrus.Errorf("Failed to list curriculum: %v", err)
		http.Error(w, "Failed to list curriculum", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) SaveCurriculumHandler(w http.ResponseWriter, r *http.Request) {
	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		http.Error(w, "Invalid level", http.StatusBadRequest)
		return
	}

	var cur curriculum.Curriculum
	if err := json.NewDecoder(r.Body).Decode(&cur); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	cur.Level = level

	saved, err := h.curriculumService.Save(r.Context(), &cur)
	if err != nil {
		if errors.Is(err, curriculum.ErrInvalidLevel) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to save curriculum", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (h *Handler) UsageSummaryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	summary, err := h.usageService.Summary(r.Context(), limit)
	if err != nil {
		logrus.Errorf("Failed to build usage summary: %v", err)
		http.Error(w, "Failed to build usage summary", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
