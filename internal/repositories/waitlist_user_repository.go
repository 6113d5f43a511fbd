package repositories

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
)

const (
	waitlistUsersTable    = "waitlist_users"
	submitQuizResponsesFn = "submit_quiz_responses"
	sendWelcomeEmailFn    = "send-welcome-email"
)

// QuizRPCResult is the envelope returned by submit_quiz_responses.
type QuizRPCResult struct {
	Success bool                 `json:"success"`
	User    *models.WaitlistUser `json:"user,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// WelcomeEmailPayload is the body the send-welcome-email function expects.
type WelcomeEmailPayload struct {
	Email            string `json:"email"`
	Name             string `json:"name"`
	WaitlistPosition int    `json:"waitlistPosition"`
	UserType         string `json:"userType"`
}

// BackendClient is the part of *backend.Client the repository uses.
type BackendClient interface {
	ConfigError() error
	Insert(ctx context.Context, table string, row any, out any) error
	Update(ctx context.Context, table string, filters []backend.Filter, patch any, out any) error
	Select(ctx context.Context, table string, q backend.Query, out any) error
	Count(ctx context.Context, table string, filters ...backend.Filter) (int, error)
	RPC(ctx context.Context, fn string, args any, out any) error
	Invoke(ctx context.Context, fn string, payload any, out any) error
}

type WaitlistUserRepository interface {
	// Configured returns a CONFIG_ERROR when the backend cannot be used.
	Configured() error
	Create(ctx context.Context, u *models.WaitlistUser) (*models.WaitlistUser, error)
	MarkVerified(ctx context.Context, id uuid.UUID) (*models.WaitlistUser, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.WaitlistUser, error)
	CountUsers(ctx context.Context) (int, error)
	ListStatsRows(ctx context.Context) ([]models.StatsRow, error)
	SubmitQuizResponses(ctx context.Context, userID uuid.UUID, responses []models.QuizResponse) (*QuizRPCResult, error)
	SendWelcomeEmail(ctx context.Context, p WelcomeEmailPayload) error
}

type waitlistUserRepository struct {
	client BackendClient
}

func NewWaitlistUserRepository(client BackendClient) WaitlistUserRepository {
	return &waitlistUserRepository{client: client}
}

func (r *waitlistUserRepository) Configured() error {
	return r.client.ConfigError()
}

// insertRow omits the columns the backend assigns.
type insertRow struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	UserType          string   `json:"user_type"`
	IsVerified        bool     `json:"is_verified"`
	VerificationToken *string  `json:"verification_token"`
	Country           *string  `json:"country,omitempty"`
	Region            *string  `json:"region,omitempty"`
	City              *string  `json:"city,omitempty"`
	Latitude          *float64 `json:"latitude,omitempty"`
	Longitude         *float64 `json:"longitude,omitempty"`
	Timezone          *string  `json:"timezone,omitempty"`
}

func (r *waitlistUserRepository) Create(ctx context.Context, u *models.WaitlistUser) (*models.WaitlistUser, error) {
	row := insertRow{
		Name:              u.Name,
		Email:             u.Email,
		UserType:          string(u.UserType),
		IsVerified:        u.IsVerified,
		VerificationToken: u.VerificationToken,
		Country:           u.Country,
		Region:            u.Region,
		City:              u.City,
		Latitude:          u.Latitude,
		Longitude:         u.Longitude,
		Timezone:          u.Timezone,
	}
	var rows []models.WaitlistUser
	if err := r.client.Insert(ctx, waitlistUsersTable, row, &rows); err != nil {
		return nil, err
	}
	return firstBackendRow(rows, "insert "+waitlistUsersTable)
}

func (r *waitlistUserRepository) MarkVerified(ctx context.Context, id uuid.UUID) (*models.WaitlistUser, error) {
	var rows []models.WaitlistUser
	err := r.client.Update(ctx, waitlistUsersTable,
		[]backend.Filter{backend.Eq("id", id.String())},
		map[string]any{"is_verified": true},
		&rows,
	)
	if err != nil {
		return nil, err
	}
	return firstBackendRow(rows, "update "+waitlistUsersTable)
}

// GetByVerificationToken never falls back to an id lookup.
func (r *waitlistUserRepository) GetByVerificationToken(ctx context.Context, token string) (*models.WaitlistUser, error) {
	var rows []models.WaitlistUser
	err := r.client.Select(ctx, waitlistUsersTable, backend.Query{
		Filters: []backend.Filter{backend.Eq("verification_token", token)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return firstBackendRow(rows, "select "+waitlistUsersTable)
}

func (r *waitlistUserRepository) CountUsers(ctx context.Context) (int, error) {
	return r.client.Count(ctx, waitlistUsersTable)
}

func (r *waitlistUserRepository) ListStatsRows(ctx context.Context) ([]models.StatsRow, error) {
	var rows []models.StatsRow
	err := r.client.Select(ctx, waitlistUsersTable, backend.Query{Columns: "is_verified,quiz_completed"}, &rows)
	return rows, err
}

func (r *waitlistUserRepository) SubmitQuizResponses(
	ctx context.Context,
	userID uuid.UUID,
	responses []models.QuizResponse,
) (*QuizRPCResult, error) {
	encoded, err := json.Marshal(responses)
	if err != nil {
		return nil, err
	}
	args := map[string]any{
		"p_user_id":   userID.String(),
		"p_responses": json.RawMessage(encoded),
	}
	var res QuizRPCResult
	if err := r.client.RPC(ctx, submitQuizResponsesFn, args, &res); err != nil {
		return nil, err
	}
	if res.User != nil {
		res.User.Origin = models.OriginBackend
	}
	return &res, nil
}

func (r *waitlistUserRepository) SendWelcomeEmail(ctx context.Context, p WelcomeEmailPayload) error {
	return r.client.Invoke(ctx, sendWelcomeEmailFn, p, nil)
}

func firstBackendRow(rows []models.WaitlistUser, op string) (*models.WaitlistUser, error) {
	if len(rows) == 0 {
		return nil, backend.NewError(backend.KindNotFound, op, "no matching row", nil)
	}
	u := rows[0]
	u.Origin = models.OriginBackend
	return &u, nil
}
