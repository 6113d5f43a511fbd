package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type QuizSubmitter interface {
	SubmitQuizResponses(ctx context.Context, userID uuid.UUID, responses []models.QuizResponse) (*services.QuizSubmissionResult, error)
}

type TicketVerifier interface {
	Verify(ticket string, userID uuid.UUID) error
}

type QuizController struct {
	svc     QuizSubmitter
	tickets TicketVerifier
}

// NewQuizController builds the quiz endpoint. With a nil verifier the
// ticket field is ignored.
func NewQuizController(s QuizSubmitter, tickets TicketVerifier) *QuizController {
	return &QuizController{svc: s, tickets: tickets}
}

// -----------------------------------------------------------------------------
// POST /api/v1/waitlist/quiz
// -----------------------------------------------------------------------------
func (c *QuizController) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.QuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "A user id and at least one answer are required", nil, err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Malformed user id", nil, err)
		return
	}

	if c.tickets != nil {
		if req.Ticket == "" {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidToken, "Quiz ticket required", nil, services.ErrQuizTicketRequired)
			return
		}
		if err := c.tickets.Verify(req.Ticket, userID); err != nil {
			utils.RespondErrorWithCode(w, http.StatusUnauthorized, utils.ErrCodeInvalidToken, "Invalid or expired quiz ticket", nil, err)
			return
		}
	}

	res, err := c.svc.SubmitQuizResponses(r.Context(), userID, req.ToModels())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.QuizResponse{User: res.User, WaitlistPosition: res.WaitlistPosition})
}
