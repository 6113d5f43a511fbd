package dtos

import (
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
)

type HealthCheckResponse struct {
	Status string `json:"status"`
}

// ---------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------

type RegisterRequest struct {
	Name     string `json:"name"      validate:"required,min=1,max=100"`
	Email    string `json:"email"     validate:"required,email,max=254"`
	UserType string `json:"user_type" validate:"required,oneof=cat-parent cattery-owner"`
}

type RegisterResponse struct {
	User              *models.WaitlistUser `json:"user"`
	VerificationToken string               `json:"verification_token"`
}

type VerifyRequest struct {
	Token string `json:"token" validate:"required,min=6"`
}

type VerifyResponse struct {
	User        *models.WaitlistUser `json:"user"`
	RedirectURL string               `json:"redirect_url"`
}

// ---------------------------------------------------------------------
// Quiz
// ---------------------------------------------------------------------

type QuizAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer"`
}

type QuizRequest struct {
	UserID    string       `json:"user_id"   validate:"required,uuid"`
	Ticket    string       `json:"ticket,omitempty"`
	Responses []QuizAnswer `json:"responses" validate:"required,min=1,dive"`
}

func (r QuizRequest) ToModels() []models.QuizResponse {
	out := make([]models.QuizResponse, 0, len(r.Responses))
	for _, a := range r.Responses {
		out = append(out, models.QuizResponse{QuestionID: a.QuestionID, Answer: a.Answer})
	}
	return out
}

type QuizResponse struct {
	User             *models.WaitlistUser `json:"user"`
	WaitlistPosition int                  `json:"waitlist_position"`
}

// ---------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------

type StatsResponse struct {
	Stats   models.WaitlistStats `json:"stats"`
	Status  string               `json:"status"`
	Message string               `json:"message,omitempty"`
}

// ---------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------

type DeletionRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required,min=6"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// ---------------------------------------------------------------------
// Registration form sessions
// ---------------------------------------------------------------------

type CreateSessionRequest struct {
	UserType string `json:"user_type" validate:"required,oneof=cat-parent cattery-owner"`
}

type SessionEmailRequest struct {
	Email string `json:"email"`
}

type SessionNameRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type SessionCodeRequest struct {
	Code string `json:"code"`
}
