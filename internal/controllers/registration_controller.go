package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type Registrar interface {
	RegisterUser(ctx context.Context, name, email string, userType models.UserType) (*services.RegistrationResult, error)
	VerifyEmail(ctx context.Context, token string) (*services.VerificationResult, error)
}

// EmailChecker reports whether an address can receive mail. Errors mean
// the check itself failed.
type EmailChecker func(ctx context.Context, email string) (bool, error)

type RegistrationController struct {
	svc        Registrar
	checkEmail EmailChecker
	trustProxy bool
}

// NewRegistrationController builds the registration endpoints; checkEmail
// may be nil to skip the deliverability check.
func NewRegistrationController(s Registrar, checkEmail EmailChecker) *RegistrationController {
	return &RegistrationController{svc: s, checkEmail: checkEmail}
}

// WithTrustedProxy makes the controller read the client address from
// X-Forwarded-For.
func (c *RegistrationController) WithTrustedProxy(trust bool) *RegistrationController {
	c.trustProxy = trust
	return c
}

// -----------------------------------------------------------------------------
// POST /api/v1/waitlist/register
// -----------------------------------------------------------------------------
func (c *RegistrationController) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Name, email and user type are required", nil, err)
		return
	}
	userType, err := models.ParseUserType(req.UserType)
	if err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Unknown user type", nil, err)
		return
	}

	if c.checkEmail != nil {
		ok, err := c.checkEmail(r.Context(), req.Email)
		switch {
		case err != nil:
			// Deliverability checks are advisory; an outage must not block sign-ups.
			utils.Logger.WithError(err).Warn("Email deliverability check failed, continuing")
		case !ok:
			utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation,
				"This email address cannot receive mail", nil, utils.ErrInvalidEmail)
			return
		}
	}

	ctx := utils.WithClientIP(r.Context(), clientIP(r, c.trustProxy))
	res, err := c.svc.RegisterUser(ctx, req.Name, req.Email, userType)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, dtos.RegisterResponse{
		User:              res.User,
		VerificationToken: res.VerificationToken,
	})
}

// -----------------------------------------------------------------------------
// GET  /api/v1/waitlist/verify?token=...
// POST /api/v1/waitlist/verify
// -----------------------------------------------------------------------------
func (c *RegistrationController) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.VerifyRequest
	if r.Method == http.MethodGet {
		req.Token = r.URL.Query().Get("token")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidToken, "Invalid or expired token", nil, err)
		return
	}

	res, err := c.svc.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.VerifyResponse{User: res.User, RedirectURL: res.RedirectURL})
}
