package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/dtos"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

type Deleter interface {
	RequestDeletion(ctx context.Context, email, token string) error
}

type DeletionController struct {
	svc Deleter
}

func NewDeletionController(s Deleter) *DeletionController {
	return &DeletionController{svc: s}
}

// -----------------------------------------------------------------------------
// POST /api/v1/waitlist/deletion
// -----------------------------------------------------------------------------
func (c *DeletionController) DeletionHandler(w http.ResponseWriter, r *http.Request) {
	var req dtos.DeletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeInvalidPayload, "Invalid JSON payload", nil, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		utils.RespondErrorWithCode(w, http.StatusBadRequest, utils.ErrCodeValidation, "Email and verification token are required", nil, err)
		return
	}

	if err := c.svc.RequestDeletion(r.Context(), req.Email, req.Token); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dtos.MessageResponse{Message: "Your waitlist data has been deleted."})
}
