package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/metrics"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const (
	minVerificationTokenLength = 6

	defaultWelcomeRetries    = 2
	defaultWelcomeRetryDelay = time.Second
	welcomeAttemptTimeout    = 15 * time.Second
)

type RegistrationResult struct {
	User              *models.WaitlistUser `json:"user"`
	VerificationToken string               `json:"verification_token"`
}

type VerificationResult struct {
	User        *models.WaitlistUser `json:"user"`
	RedirectURL string               `json:"redirect_url"`
}

type QuizSubmissionResult struct {
	User             *models.WaitlistUser `json:"user"`
	WaitlistPosition int                  `json:"waitlist_position"`
}

type RegistrationOptions struct {
	// AppURL prefixes the quiz redirect built by VerifyEmail.
	AppURL string

	// StatsFallback is returned by GetWaitlistStats when the backend
	// cannot answer. Zero value means all zeros.
	StatsFallback models.WaitlistStats

	// WelcomeRetries is the number of extra welcome email attempts. Zero
	// selects the default; a negative value disables retries.
	WelcomeRetries    int
	WelcomeRetryDelay time.Duration

	Logger logrus.FieldLogger
	Now    func() time.Time
}

// RegistrationService turns validated form input into backend records and
// reads aggregate waitlist numbers.
type RegistrationService struct {
	repo     repositories.WaitlistUserRepository
	geo      GeolocationService
	notifier WelcomeNotifier
	tickets  *QuizTicketService

	appURL            string
	statsFallback     models.WaitlistStats
	welcomeRetries    int
	welcomeRetryDelay time.Duration
	log               logrus.FieldLogger
	now               func() time.Time

	welcomeWG sync.WaitGroup
}

// NewRegistrationService wires the coordinator. geo, notifier and tickets
// may be nil.
func NewRegistrationService(
	repo repositories.WaitlistUserRepository,
	geo GeolocationService,
	notifier WelcomeNotifier,
	tickets *QuizTicketService,
	opts RegistrationOptions,
) *RegistrationService {
	s := &RegistrationService{
		repo:              repo,
		geo:               geo,
		notifier:          notifier,
		tickets:           tickets,
		appURL:            strings.TrimRight(opts.AppURL, "/"),
		statsFallback:     opts.StatsFallback,
		welcomeRetries:    opts.WelcomeRetries,
		welcomeRetryDelay: opts.WelcomeRetryDelay,
		log:               opts.Logger,
		now:               opts.Now,
	}
	switch {
	case s.welcomeRetries == 0:
		s.welcomeRetries = defaultWelcomeRetries
	case s.welcomeRetries < 0:
		s.welcomeRetries = 0
	}
	if s.welcomeRetryDelay <= 0 {
		s.welcomeRetryDelay = defaultWelcomeRetryDelay
	}
	if s.log == nil {
		s.log = utils.Logger
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// ------------------------------------------------------------------
// Registration
// ------------------------------------------------------------------

// RegisterUser inserts an unverified user and immediately marks it verified.
// A crash between the two calls leaves an unverified row that the
// retention job removes.
func (s *RegistrationService) RegisterUser(
	ctx context.Context,
	name, email string,
	userType models.UserType,
) (*RegistrationResult, error) {
	if err := s.repo.Configured(); err != nil {
		metrics.RegistrationErrors.WithLabelValues(backend.KindConfig.String()).Inc()
		return nil, err
	}

	token := utils.SixDigitCode()
	user := &models.WaitlistUser{
		Name:              strings.TrimSpace(name),
		Email:             strings.ToLower(strings.TrimSpace(email)),
		UserType:          userType,
		IsVerified:        false,
		VerificationToken: &token,
	}
	s.attachGeolocation(ctx, user)

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, s.registrationError(err)
	}

	verified, err := s.repo.MarkVerified(ctx, created.ID)
	if err != nil {
		return nil, s.registrationError(err)
	}
	if verified.VerificationToken == nil {
		verified.VerificationToken = &token
	}

	metrics.Registrations.WithLabelValues(string(models.OriginBackend)).Inc()
	s.log.WithFields(logrus.Fields{
		"user_id": verified.ID,
		"email":   utils.MaskEmail(verified.Email),
	}).Info("Waitlist user registered")

	return &RegistrationResult{User: verified, VerificationToken: token}, nil
}

// attachGeolocation is best effort and never retried.
func (s *RegistrationService) attachGeolocation(ctx context.Context, user *models.WaitlistUser) {
	if s.geo == nil {
		return
	}
	loc, err := s.geo.Lookup(ctx, utils.ClientIPFrom(ctx))
	if err != nil {
		if !utils.IsCancellation(err) {
			s.log.WithError(err).Info("Geolocation lookup failed, continuing without location")
		}
		return
	}
	user.ApplyGeolocation(loc)
}

func (s *RegistrationService) registrationError(err error) error {
	if utils.IsCancellation(err) {
		return err
	}
	kind := backend.KindOf(err)
	metrics.RegistrationErrors.WithLabelValues(kind.String()).Inc()

	switch kind {
	case backend.KindConfig:
		return err
	case backend.KindNetwork, backend.KindCors:
		return backend.NewError(kind, "register", "could not reach the waitlist service, check your connection and try again", err)
	case backend.KindDuplicate:
		return backend.NewError(kind, "register", "this email is already registered", err)
	default:
		return backend.NewError(backend.KindBackend, "register", fmt.Sprintf("registration failed: %v", err), err)
	}
}

// ------------------------------------------------------------------
// Verification
// ------------------------------------------------------------------

// VerifyEmail looks a user up strictly by verification token and builds the
// quiz redirect for a verified match.
func (s *RegistrationService) VerifyEmail(ctx context.Context, token string) (*VerificationResult, error) {
	token = strings.TrimSpace(token)
	if len(token) < minVerificationTokenLength {
		return nil, fmt.Errorf("%w: token must be at least %d characters", utils.ErrInvalidToken, minVerificationTokenLength)
	}
	if err := s.repo.Configured(); err != nil {
		return nil, err
	}

	if _, err := s.repo.CountUsers(ctx); err != nil {
		if utils.IsCancellation(err) {
			return nil, err
		}
		kind := backend.KindOf(err)
		if kind != backend.KindConfig && kind != backend.KindCors {
			kind = backend.KindNetwork
		}
		return nil, backend.NewError(kind, "verify", "backend unreachable", err)
	}

	user, err := s.repo.GetByVerificationToken(ctx, token)
	if err != nil {
		if utils.IsCancellation(err) {
			return nil, err
		}
		if backend.KindOf(err) == backend.KindNotFound {
			return nil, backend.NewError(backend.KindNotFound, "verify", "invalid or expired token", err)
		}
		return nil, backend.NewError(backend.KindOf(err), "verify", fmt.Sprintf("verification lookup failed: %v", err), err)
	}
	if !user.IsVerified {
		return nil, fmt.Errorf("%w: email not verified", utils.ErrEmailNotVerified)
	}

	redirect, err := s.quizRedirect(user)
	if err != nil {
		return nil, err
	}
	return &VerificationResult{User: user, RedirectURL: redirect}, nil
}

func (s *RegistrationService) quizRedirect(user *models.WaitlistUser) (string, error) {
	q := url.Values{}
	q.Set("user_id", user.ID.String())
	q.Set("user_type", string(user.UserType))
	q.Set("ts", strconv.FormatInt(s.now().UnixMilli(), 10))
	if s.tickets != nil {
		ticket, err := s.tickets.Issue(user.ID, string(user.UserType))
		if err != nil {
			return "", fmt.Errorf("issue quiz ticket: %w", err)
		}
		q.Set("ticket", ticket)
	}
	return s.appURL + "/quiz?" + q.Encode(), nil
}

// ------------------------------------------------------------------
// Quiz
// ------------------------------------------------------------------

// SubmitQuizResponses stores every answer, completes the quiz and assigns
// the waitlist position in one RPC. Failures are never papered over.
func (s *RegistrationService) SubmitQuizResponses(
	ctx context.Context,
	userID uuid.UUID,
	responses []models.QuizResponse,
) (*QuizSubmissionResult, error) {
	if err := s.repo.Configured(); err != nil {
		return nil, err
	}

	res, err := s.repo.SubmitQuizResponses(ctx, userID, responses)
	if err != nil {
		metrics.QuizSubmissions.WithLabelValues("error").Inc()
		if utils.IsCancellation(err) {
			return nil, err
		}
		return nil, backend.NewError(backend.KindOf(err), "submit quiz", fmt.Sprintf("quiz submission failed: %v", err), err)
	}
	if !res.Success {
		metrics.QuizSubmissions.WithLabelValues("rejected").Inc()
		msg := res.Error
		if msg == "" {
			msg = "quiz submission was rejected"
		}
		return nil, backend.NewError(backend.KindBackend, "submit quiz", msg, nil)
	}
	if res.User == nil {
		metrics.QuizSubmissions.WithLabelValues("error").Inc()
		return nil, backend.NewError(backend.KindBackend, "submit quiz", "backend returned no user", nil)
	}

	position := utils.Val(res.User.WaitlistPosition)
	metrics.QuizSubmissions.WithLabelValues("ok").Inc()

	s.sendWelcomeAsync(ctx, res.User, position)
	return &QuizSubmissionResult{User: res.User, WaitlistPosition: position}, nil
}

func (s *RegistrationService) sendWelcomeAsync(ctx context.Context, user *models.WaitlistUser, position int) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	s.welcomeWG.Add(1)
	go func() {
		defer s.welcomeWG.Done()
		s.sendWelcome(detached, user, position)
	}()
}

func (s *RegistrationService) sendWelcome(ctx context.Context, user *models.WaitlistUser, position int) {
	entry := s.log.WithField("user_id", user.ID)

	var err error
	for attempt := 0; attempt <= s.welcomeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.welcomeRetryDelay)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, welcomeAttemptTimeout)
		err = s.notifier.SendWelcome(attemptCtx, user, position)
		cancel()
		if err == nil {
			return
		}
		entry.WithError(err).Debugf("Welcome email attempt %d failed", attempt+1)
	}

	metrics.WelcomeEmailFailures.Inc()
	entry.WithError(err).Warn("Welcome email failed after retries")
}

// Drain blocks until pending welcome notifications finish.
func (s *RegistrationService) Drain() {
	s.welcomeWG.Wait()
}

// ------------------------------------------------------------------
// Stats
// ------------------------------------------------------------------

// GetWaitlistStats never fails: cancellations resolve silently to the
// fallback, anything else is logged and also resolves to the fallback.
func (s *RegistrationService) GetWaitlistStats(ctx context.Context) models.WaitlistStats {
	if ctx.Err() != nil {
		return s.statsFallback
	}

	stats, err := s.FetchWaitlistStats(ctx)
	if err != nil {
		if utils.IsCancellation(err) {
			return s.statsFallback
		}
		s.log.WithError(err).Warn("Failed to fetch waitlist stats, using fallback")
		return s.statsFallback
	}
	return stats
}

// FetchWaitlistStats is the strict variant used by the poller.
func (s *RegistrationService) FetchWaitlistStats(ctx context.Context) (models.WaitlistStats, error) {
	if err := s.repo.Configured(); err != nil {
		return models.WaitlistStats{}, err
	}
	rows, err := s.repo.ListStatsRows(ctx)
	if err != nil {
		return models.WaitlistStats{}, err
	}
	return models.AggregateStats(rows), nil
}

// Ping reports whether the backend answers a count probe.
func (s *RegistrationService) Ping(ctx context.Context) error {
	if err := s.repo.Configured(); err != nil {
		return err
	}
	_, err := s.repo.CountUsers(ctx)
	return err
}
