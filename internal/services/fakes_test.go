package services

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
)

// fakeWaitlistRepo is an in-memory WaitlistUserRepository with a unique
// email constraint and injectable failures.
type fakeWaitlistRepo struct {
	mu sync.Mutex

	users map[uuid.UUID]*models.WaitlistUser

	configErr   error
	createErr   error
	countErr    error
	statsErr    error
	quizResult  *repositories.QuizRPCResult
	quizErr     error
	welcomeErrs []error

	calls        int
	welcomeCalls int
	nextPosition int
}

func newFakeWaitlistRepo() *fakeWaitlistRepo {
	return &fakeWaitlistRepo{users: map[uuid.UUID]*models.WaitlistUser{}, nextPosition: 1}
}

func (r *fakeWaitlistRepo) Configured() error { return r.configErr }

func (r *fakeWaitlistRepo) Create(_ context.Context, u *models.WaitlistUser) (*models.WaitlistUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, backend.NewError(backend.KindDuplicate, "insert waitlist_users",
				`duplicate key value violates unique constraint "waitlist_users_email_key"`, nil)
		}
	}
	row := *u
	row.ID = uuid.New()
	row.Origin = models.OriginBackend
	r.users[row.ID] = &row
	out := row
	return &out, nil
}

func (r *fakeWaitlistRepo) MarkVerified(_ context.Context, id uuid.UUID) (*models.WaitlistUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	u, ok := r.users[id]
	if !ok {
		return nil, backend.NewError(backend.KindNotFound, "update waitlist_users", "no matching row", nil)
	}
	u.IsVerified = true
	out := *u
	return &out, nil
}

func (r *fakeWaitlistRepo) GetByVerificationToken(_ context.Context, token string) (*models.WaitlistUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, u := range r.users {
		if u.VerificationToken != nil && *u.VerificationToken == token {
			out := *u
			return &out, nil
		}
	}
	return nil, backend.NewError(backend.KindNotFound, "select waitlist_users", "no matching row", nil)
}

func (r *fakeWaitlistRepo) CountUsers(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.users), nil
}

func (r *fakeWaitlistRepo) ListStatsRows(ctx context.Context) ([]models.StatsRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.statsErr != nil {
		return nil, r.statsErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := make([]models.StatsRow, 0, len(r.users))
	for _, u := range r.users {
		rows = append(rows, models.StatsRow{IsVerified: u.IsVerified, QuizCompleted: u.QuizCompleted})
	}
	return rows, nil
}

func (r *fakeWaitlistRepo) SubmitQuizResponses(
	_ context.Context,
	userID uuid.UUID,
	_ []models.QuizResponse,
) (*repositories.QuizRPCResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.quizErr != nil {
		return nil, r.quizErr
	}
	if r.quizResult != nil {
		return r.quizResult, nil
	}
	u, ok := r.users[userID]
	if !ok {
		return &repositories.QuizRPCResult{Success: false, Error: "user not found"}, nil
	}
	pos := r.nextPosition
	r.nextPosition++
	u.QuizCompleted = true
	u.WaitlistPosition = &pos
	out := *u
	return &repositories.QuizRPCResult{Success: true, User: &out}, nil
}

func (r *fakeWaitlistRepo) SendWelcomeEmail(context.Context, repositories.WelcomeEmailPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.welcomeCalls++
	if len(r.welcomeErrs) == 0 {
		return nil
	}
	err := r.welcomeErrs[0]
	r.welcomeErrs = r.welcomeErrs[1:]
	return err
}

func (r *fakeWaitlistRepo) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *fakeWaitlistRepo) welcomeCallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.welcomeCalls
}

// abortError mimics an error from a foreign client carrying a name field.
type abortError struct{ msg string }

func (e abortError) Error() string { return e.msg }
func (e abortError) Name() string  { return "AbortError" }
