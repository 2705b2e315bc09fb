package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"englishtutor/internal/agents"
	"englishtutor/internal/auth"
	"englishtutor/internal/chat"
	"englishtutor/internal/curriculum"
	"englishtutor/internal/evaluations"
	"englishtutor/internal/llm"
	"englishtutor/internal/prompts"
	"englishtutor/internal/sessions"
	"englishtutor/internal/tokenusage"
	"englishtutor/internal/users"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	tokenTTL         = 24 * time.Hour
	maxAudioBodySize = 10 << 20 // 10MB
)

// Transcriber converts a stored audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Handler struct {
	userService       *users.Service
	sessionService    *sessions.Service
	controller        *chat.Controller
	promptService     *prompts.Service
	curriculumService *curriculum.Service
	usageService      *tokenusage.Service
	evaluationService *evaluations.Service
	transcriber       Transcriber
	completer         llm.Completer
	jwtSigningKey     string
	audioDir          string
}

func NewHandler(
	userService *users.Service,
	sessionService *sessions.Service,
	controller *chat.Controller,
	promptService *prompts.Service,
	curriculumService *curriculum.Service,
	usageService *tokenusage.Service,
	evaluationService *evaluations.Service,
	transcriber Transcriber,
	completer llm.Completer,
	jwtSigningKey string,
	audioDir string,
) *Handler {
	return &Handler{
		userService:       userService,
		sessionService:    sessionService,
		controller:        controller,
		promptService:     promptService,
		curriculumService: curriculumService,
		usageService:      usageService,
		evaluationService: evaluationService,
		transcriber:       transcriber,
		completer:         completer,
		jwtSigningKey:     jwtSigningKey,
		audioDir:          audioDir,
	}
}

// Routes wires every endpoint onto a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/auth/register", h.RegisterHandler)
	r.Post("/auth/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(auth.JWTMiddleware(h.jwtSigningKey))

		r.Get("/me", h.MeHandler)
		r.Put("/me/level", h.UpdateLevelHandler)

		r.Get("/sessions", h.ListSessionsHandler)
		r.Post("/sessions", h.CreateSessionHandler)
		r.Post("/sessions/{id}/select", h.SelectSessionHandler)
		r.Delete("/sessions/{id}", h.DeleteSessionHandler)
		r.Get("/sessions/{id}/messages", h.TranscriptHandler)
		r.Post("/sessions/{id}/messages/{messageID}/feedback", h.FeedbackHandler)

		r.Get("/chat/{id}/ws", h.ChatWebSocketHandler)
		r.Post("/chat/{id}/audio", h.AudioTurnHandler)

		r.Get("/evaluations", h.ListEvaluationsHandler)
		r.Post("/evaluations", h.RecordEvaluationHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Get("/admin/prompts/{agent}", h.GetPromptHandler)
			r.Get("/admin/prompts/{agent}/history", h.PromptHistoryHandler)
			r.Post("/admin/prompts/{agent}", h.SavePromptHandler)
			r.Post("/admin/prompts/{agent}/restore", h.RestorePromptHandler)
			r.Post("/admin/prompts/{agent}/optimize", h.OptimizePromptHandler)

			r.Get("/admin/curriculum", h.ListCurriculumHandler)
			r.Put("/admin/curriculum/{level}", h.SaveCurriculumHandler)

			r.Get("/admin/usage", h.UsageSummaryHandler)
		})
	})

	return r
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrUserAlreadyExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	token, err := auth.GenerateJWTToken(user.ID, user.Role, h.jwtSigningKey, tokenTTL)
	if err != nil {
		logrus.Errorf("Failed to issue token for new user %d: %v", user.ID, err)
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, LoginResponse{Token: token, User: user})
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	token, err := auth.GenerateJWTToken(user.ID, user.Role, h.jwtSigningKey, tokenTTL)
	if err != nil {
		logrus.Errorf("Failed to issue token for user %d: %v", user.ID, err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type UpdateLevelRequest struct {
	Level int `json:"level"`
}

// UpdateLevelHandler records the proficiency level assigned after a
// placement or progress test.
func (h *Handler) UpdateLevelHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req UpdateLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdateCurrentLevel(r.Context(), userID, req.Level); err != nil {
		if errors.Is(err, users.ErrInvalidLevel) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to update level", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	list, err := h.sessionService.ListActive(r.Context(), userID)
	if err != nil {
		logrus.Errorf("Failed to list sessions for user %d: %v", userID, err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type CreateSessionRequest struct {
	Type string `json:"type"`
	// PreviousSessionID, when set, is the session the user is switching away
	// from; it gets a title synthesized in the background.
	PreviousSessionID int64 `json:"previous_session_id,omitempty"`
}

func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req CreateSessionRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	if req.PreviousSessionID != 0 {
		h.controller.SynthesizeTitleAsync(req.PreviousSessionID, userID)
	}

	session, err := h.sessionService.Create(r.Context(), userID, req.Type)
	if err != nil {
		logrus.Errorf("Failed to create session for user %d: %v", userID, err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type SelectSessionRequest struct {
	PreviousSessionID int64 `json:"previous_session_id,omitempty"`
}

type SelectSessionResponse struct {
	Session  *sessions.Session  `json:"session"`
	Messages []sessions.Message `json:"messages"`
}

func (h *Handler) SelectSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SelectSessionRequest
	if r.Body != nil && r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	session, err := h.sessionService.GetOwned(r.Context(), sessionID, userID)
	if err != nil {
		h.sessionError(w, err)
		return
	}

	if req.PreviousSessionID != 0 && req.PreviousSessionID != sessionID {
		h.controller.SynthesizeTitleAsync(req.PreviousSessionID, userID)
	}

	transcript, err := h.sessionService.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		logrus.Errorf("Failed to load transcript for session %d: %v", sessionID, err)
		http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, SelectSessionResponse{Session: session, Messages: transcript})
}

func (h *Handler) DeleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessionService.SoftDelete(r.Context(), sessionID, userID); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TranscriptHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.sessionService.GetOwned(r.Context(), sessionID, userID); err != nil {
		h.sessionError(w, err)
		return
	}

	transcript, err := h.sessionService.LoadTranscript(r.Context(), sessionID)
	if err != nil {
		logrus.Errorf("Failed to load transcript for session %d: %v", sessionID, err)
		http.Error(w, "Failed to load transcript", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

type FeedbackRequest struct {
	Feedback int `json:"feedback"`
}

func (h *Handler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	messageID, ok := pathID(w, r, "messageID")
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.sessionService.SetFeedback(r.Context(), sessionID, userID, messageID, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, sessions.ErrInvalidFeedback):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, sessions.ErrMessageNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			h.sessionError(w, err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type AudioTurnResponse struct {
	Transcription string            `json:"transcription"`
	UserMessage   *sessions.Message `json:"user_message"`
	AgentMessage  *sessions.Message `json:"agent_message"`
	Session       *sessions.Session `json:"session"`
}

// AudioTurnHandler accepts an audio recording, stores it, transcribes it,
// and runs a normal (non-streaming) turn with the transcription.
func (h *Handler) AudioTurnHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBodySize)
	file, header, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Missing audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".ogg"
	}
	audioPath := filepath.Join(h.audioDir, uuid.NewString()+ext)
	if err := saveUpload(file, audioPath); err != nil {
		logrus.Errorf("Failed to store audio upload: %v", err)
		http.Error(w, "Failed to store audio", http.StatusInternalServerError)
		return
	}

	transcription, err := h.transcriber.Transcribe(r.Context(), audioPath)
	if err != nil {
		logrus.Errorf("Failed to transcribe audio for session %d: %v", sessionID, err)
		http.Error(w, "Failed to transcribe audio", http.StatusBadGateway)
		return
	}

	result, err := h.controller.SendMessage(r.Context(), userID, sessionID, transcription, audioPath, nil)
	if err != nil {
		h.turnError(w, err)
		return
	}
	if result == nil {
		http.Error(w, "Empty transcription", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, AudioTurnResponse{
		Transcription: transcription,
		UserMessage:   result.UserMessage,
		AgentMessage:  result.AgentMessage,
		Session:       result.Session,
	})
}

func (h *Handler) ListEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())
	list, err := h.evaluationService.ListByUser(r.Context(), userID)
	if err != nil {
		logrus.Errorf("Failed to list evaluations for user %d: %v", userID, err)
		http.Error(w, "Failed to list evaluations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) RecordEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var e evaluations.Evaluation
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e.UserID = userID

	if _, err := h.sessionService.GetOwned(r.Context(), e.SessionID, userID); err != nil {
		h.sessionError(w, err)
		return
	}

	saved, err := h.evaluationService.Record(r.Context(), &e)
	if err != nil {
		if errors.Is(err, evaluations.ErrInvalidScore) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "Failed to store evaluation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, sessions.ErrNotSessionOwner):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		logrus.Errorf("Session operation failed: %v", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (h *Handler) turnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound), errors.Is(err, sessions.ErrNotSessionOwner):
		h.sessionError(w, err)
	default:
		logrus.Errorf("Turn failed: %v", err)
		http.Error(w, "The tutor is unavailable right now, please try again", http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func saveUpload(src io.Reader, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return nil
}

// unknownAgentKey guards the admin prompt endpoints.
func unknownAgentKey(w http.ResponseWriter, agentKey string) bool {
	if !agents.KnownType(agentKey) {
		http.Error(w, "Unknown agent", http.StatusNotFound)
		return true
	}
	return false
}
