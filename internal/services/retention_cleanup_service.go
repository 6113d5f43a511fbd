package services

import (
	"context"
	"time"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/metrics"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const UnverifiedRetention = 7 * 24 * time.Hour

// RetentionCleanupService removes registrations that never got verified.
type RetentionCleanupService interface {
	// CleanupDaily deletes unverified users older than the retention window.
	CleanupDaily(ctx context.Context) (int64, error)
}

type retentionCleanupService struct {
	repo repositories.MaintenanceRepository
	now  func() time.Time
}

// NewRetentionCleanupService accepts a nil repo; the job then reports
// ErrMaintenanceDisabled.
func NewRetentionCleanupService(repo repositories.MaintenanceRepository) RetentionCleanupService {
	return &retentionCleanupService{repo: repo, now: time.Now}
}

func (s *retentionCleanupService) CleanupDaily(ctx context.Context) (int64, error) {
	logger := utils.Logger

	if s.repo == nil {
		return 0, utils.ErrMaintenanceDisabled
	}
	cutoff := s.now().Add(-UnverifiedRetention)
	n, err := s.repo.DeleteUnverifiedOlderThan(ctx, cutoff)
	if err != nil {
		logger.WithError(err).Error("Failed to cleanup unverified waitlist_users")
		return 0, err
	}
	metrics.RetentionDeleted.Add(float64(n))

	logger.Infof("Daily unverified-user cleanup completed, %d removed.", n)
	return n, nil
}
