package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/flow"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type SessionStore interface {
	Create(userType models.UserType) *flow.Flow
	Get(id string) (*flow.Flow, error)
	Delete(id string)
}

// SessionController exposes the registration form state machine over HTTP.
// Every response carries the flow snapshot so the form can re-render.
type SessionController struct {
	sessions SessionStore
}

func NewSessionController(s SessionStore) *SessionController {
	return &SessionController{sessions: s}
}

// POST /api/v1/waitlist/sessions
func (c *SessionController) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Unknown user type", nil, err)
		return
	}
	userType, err := models.ParseUserType(req.UserType)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Unknown user type", nil, err)
		return
	}

	f := c.sessions.Create(userType)
	utils.RespondWithJSON(w, http.StatusCreated, f.Snapshot())
}

// GET /api/v1/waitlist/sessions/{id}
func (c *SessionController) GetHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := c.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, f.Snapshot())
}

// DELETE /api/v1/waitlist/sessions/{id}
func (c *SessionController) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	c.sessions.Delete(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/waitlist/sessions/{id}/email
func (c *SessionController) EmailHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := c.lookup(w, r)
	if !ok {
		return
	}
	var req dtos.SessionEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	snap, err := f.SetEmail(req.Email)
	c.respond(w, snap, err)
}

// PUT /api/v1/waitlist/sessions/{id}/name
func (c *SessionController) NameHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := c.lookup(w, r)
	if !ok {
		return
	}
	var req dtos.SessionNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Name is too long", f.Snapshot(), err)
		return
	}
	snap, err := f.SetName(req.Name)
	c.respond(w, snap, err)
}

// POST /api/v1/waitlist/sessions/{id}/code
func (c *SessionController) CodeHandler(w http.ResponseWriter, r *http.Request) {
	f, ok := c.lookup(w, r)
	if !ok {
		return
	}
	var req dtos.SessionCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	snap, err := f.Submit(r.Context(), req.Code)
	c.respond(w, snap, err)
}

func (c *SessionController) lookup(w http.ResponseWriter, r *http.Request) (*flow.Flow, bool) {
	f, err := c.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusNotFound, utils.ErrCodeNotFound, "Registration session not found or expired", nil, err)
		return nil, false
	}
	return f, true
}

func (c *SessionController) respond(w http.ResponseWriter, snap flow.Snapshot, err error) {
	switch {
	case err == nil:
		utils.RespondWithJSON(w, http.StatusOK, snap)
	case errors.Is(err, flow.ErrClosed):
		utils.RespondErrorWithCode(w, http.StatusGone, utils.ErrCodeNotFound, "Registration session is closed", snap, err)
	case errors.Is(err, flow.ErrInvalidState):
		utils.RespondErrorWithCode(w, http.StatusConflict, utils.ErrCodeConflict, err.Error(), snap, err)
	case errors.Is(err, utils.ErrRateLimitExceeded):
		utils.RespondErrorWithCode(w, http.StatusTooManyRequests, utils.ErrCodeRateLimitExceeded, err.Error(), snap, err)
	case errors.Is(err, flow.ErrEmptyCode),
		errors.Is(err, services.ErrInvalidVerificationCode),
		errors.Is(err, services.ErrVerificationCodeExpired),
		errors.Is(err, services.ErrVerificationCodeNotFound):
		utils.RespondErrorWithCode(w, http.StatusUnprocessableEntity, utils.ErrCodeValidation, err.Error(), snap, err)
	default:
		utils.RespondErrorWithCode(w, http.StatusInternalServerError, utils.ErrCodeInternal, "An unexpected error occurred", snap, err)
	}
}
