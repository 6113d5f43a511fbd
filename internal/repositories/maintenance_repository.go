package repositories

import (
	"context"
	"time"
)

// MaintenanceRepository works directly against Postgres for jobs the anon
// REST role is not allowed to run.
type MaintenanceRepository interface {
	// DeleteUnverifiedOlderThan removes never-verified registrations
	// created before cutoff and returns how many were removed.
	DeleteUnverifiedOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByEmailAndToken removes a user (and its quiz responses) only
	// when both the email and the verification token match.
	DeleteByEmailAndToken(ctx context.Context, email, token string) (bool, error)

	Ping(ctx context.Context) error
}

type maintenanceRepository struct {
	db DB
}

func NewMaintenanceRepository(db DB) MaintenanceRepository {
	return &maintenanceRepository{db: db}
}

func (r *maintenanceRepository) DeleteUnverifiedOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `
        DELETE FROM waitlist_users
        WHERE is_verified = FALSE
          AND created_at < $1
    `, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// DeleteByEmailAndToken is a single statement so the match and the delete
// are atomic; quiz_responses rows go with it through ON DELETE CASCADE.
func (r *maintenanceRepository) DeleteByEmailAndToken(ctx context.Context, email, token string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `
        DELETE FROM waitlist_users
        WHERE lower(email) = lower($1)
          AND verification_token = $2
    `, email, token)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *maintenanceRepository) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
