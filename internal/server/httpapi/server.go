// Package httpapi exposes the account and task services over a thin HTTP surface.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/manus-bridge/internal/errs"
	"github.com/and161185/manus-bridge/internal/manus"
	"github.com/and161185/manus-bridge/internal/model"
	"github.com/and161185/manus-bridge/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	accounts service.AccountService
	tasks    service.TaskService
}

// New constructs a Server with injected services.
func New(accounts service.AccountService, tasks service.TaskService) *Server {
	return &Server{accounts: accounts, tasks: tasks}
}

// Router assembles the authenticated API surface.
func (s *Server) Router(log *zap.Logger, signKey []byte) http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(log))
	r.Use(Logging(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(AuthJWT(signKey))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", s.createAccount)
			r.Get("/", s.listAccounts)
			r.Delete("/{id}", s.deleteAccount)
			r.Post("/{id}/default", s.setDefaultAccount)
			r.Post("/{id}/test", s.testAccount)
		})
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.createTask)
			r.Get("/", s.listTasks)
			r.Get("/{id}", s.getTask)
			r.Post("/{id}/messages", s.continueTask)
			r.Get("/{id}/poll", s.pollTask)
			r.Delete("/{id}", s.deleteTask)
		})
	})
	return r
}

// --- Accounts ---

type createAccountRequest struct {
	Name    string `json:"name"`
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	a, err := s.accounts.Create(r.Context(), userID, service.CreateAccountParams{
		Name:    req.Name,
		APIKey:  req.APIKey,
		BaseURL: req.BaseURL,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no auth")
		return
	}
	out, err := s.accounts.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if out == nil {
		out = []model.Account{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Delete(r.Context(), userID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setDefaultAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	if err := s.accounts.SetDefault(r.Context(), userID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type testAccountResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func (s *Server) testAccount(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	err := s.accounts.Test(r.Context(), userID, id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, testAccountResponse{OK: true})
	case errors.Is(err, service.ErrInvalidAPIKey),
		errors.Is(err, service.ErrInsufficientPermission),
		errors.Is(err, service.ErrUpstreamUnavailable):
		respondJSON(w, http.StatusOK, testAccountResponse{OK: false, Message: err.Error()})
	default:
		respondServiceError(w, err)
	}
}

// --- Tasks ---

type createTaskRequest struct {
	Prompt       string             `json:"prompt"`
	AccountID    string             `json:"accountId,omitempty"`
	AgentProfile string             `json:"agentProfile,omitempty"`
	TaskMode     string             `json:"taskMode,omitempty"`
	ProjectID    string             `json:"projectId,omitempty"`
	Attachments  []manus.Attachment `json:"attachments,omitempty"`
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no auth")
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	accountID := uuid.Nil
	if req.AccountID != "" {
		var err error
		if accountID, err = uuid.FromString(req.AccountID); err != nil {
			respondError(w, http.StatusBadRequest, "bad accountId")
			return
		}
	}
	task, err := s.tasks.Create(r.Context(), userID, service.CreateTaskParams{
		Prompt:       req.Prompt,
		AccountID:    accountID,
		AgentProfile: req.AgentProfile,
		TaskMode:     req.TaskMode,
		ProjectID:    req.ProjectID,
		Attachments:  req.Attachments,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, task)
}

type continueTaskRequest struct {
	Prompt      string             `json:"prompt"`
	Attachments []manus.Attachment `json:"attachments,omitempty"`
}

func (s *Server) continueTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	var req continueTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	task, err := s.tasks.Continue(r.Context(), userID, id, service.ContinueTaskParams{
		Prompt:      req.Prompt,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	task, err := s.tasks.Get(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, task)
}

func (s *Server) pollTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	status, err := s.tasks.Poll(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromCtx(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "no auth")
		return
	}
	out, err := s.tasks.List(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if out == nil {
		out = []model.Task{}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := s.scopedID(w, r)
	if !ok {
		return
	}
	if err := s.tasks.Delete(r.Context(), userID, id); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// scopedID extracts the caller identity and the {id} path parameter.
func (s *Server) scopedID(w http.ResponseWriter, r *http.Request) (userID, id uuid.UUID, ok bool) {
	userID, authed := UserIDFromCtx(r.Context())
	if !authed {
		respondError(w, http.StatusUnauthorized, "no auth")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, id, true
}

// --- Responses ---

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	respondJSON(w, code, errorResponse{Error: msg})
}

// respondServiceError maps service errors onto the HTTP surface. Messages
// stay generic where the underlying error could carry sensitive detail.
func respondServiceError(w http.ResponseWriter, err error) {
	var apiErr *manus.APIError
	switch {
	case errors.Is(err, errs.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, errs.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, errs.ErrDecryptAuth):
		respondError(w, http.StatusInternalServerError, "credential decryption failed")
	case errors.As(err, &apiErr):
		respondError(w, http.StatusBadGateway, "upstream request failed")
	default:
		respondError(w, http.StatusInternalServerError, "internal")
	}
}
