package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

// DeletionService handles GDPR erasure requests. The caller proves
// ownership with the verification token issued at registration.
type DeletionService struct {
	repo repositories.MaintenanceRepository
}

func NewDeletionService(repo repositories.MaintenanceRepository) *DeletionService {
	return &DeletionService{repo: repo}
}

func (s *DeletionService) RequestDeletion(ctx context.Context, email, token string) error {
	if s.repo == nil {
		return utils.ErrMaintenanceDisabled
	}
	email = strings.ToLower(strings.TrimSpace(email))
	token = strings.TrimSpace(token)
	if len(token) < minVerificationTokenLength {
		return fmt.Errorf("%w: token must be at least %d characters", utils.ErrInvalidToken, minVerificationTokenLength)
	}

	deleted, err := s.repo.DeleteByEmailAndToken(ctx, email, token)
	if err != nil {
		return err
	}
	if !deleted {
		return utils.ErrNotFound
	}
	utils.Logger.WithField("email", utils.MaskEmail(email)).Info("Waitlist user deleted on request")
	return nil
}
