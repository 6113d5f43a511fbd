package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/storage"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

var (
	ErrVerificationCodeNotFound = errors.New("no verification code found, please request a new one")
	ErrVerificationCodeExpired  = errors.New("verification code expired, please request a new one")
	ErrTooManyAttempts          = fmt.Errorf("%w: too many verification attempts, please wait and try again", utils.ErrRateLimitExceeded)
	ErrInvalidVerificationCode  = errors.New("Invalid verification code. A new code has been generated.")
)

// VerificationCodeService issues and checks the 6-digit human-presence
// code shown during registration. One code per slot key.
type VerificationCodeService struct {
	store   storage.CodeStore
	now     func() time.Time
	newCode func() string
}

func NewVerificationCodeService(store storage.CodeStore) *VerificationCodeService {
	return &VerificationCodeService{
		store:   store,
		now:     time.Now,
		newCode: utils.SixDigitCode,
	}
}

// WithClock replaces the time source; used by tests and the flow's fake clock.
func (s *VerificationCodeService) WithClock(now func() time.Time) *VerificationCodeService {
	s.now = now
	return s
}

// Generate writes a fresh code for key, replacing any previous one.
func (s *VerificationCodeService) Generate(key, email string) models.VerificationCode {
	return s.issue(key, email, 0)
}

func (s *VerificationCodeService) issue(key, email string, attempts int) models.VerificationCode {
	now := s.now()
	code := models.VerificationCode{
		Code:      s.newCode(),
		Email:     email,
		ExpiresAt: now.Add(models.VerificationCodeTTL),
		Attempts:  attempts,
		CreatedAt: now,
	}
	s.store.Save(key, code)
	return code
}

// Current returns the active code for key, if any.
func (s *VerificationCodeService) Current(key string) (models.VerificationCode, bool) {
	return s.store.Load(key)
}

// Validate checks input against the stored code for key.
//
// On a mismatch the code is regenerated (the returned code is the new one)
// and ErrInvalidVerificationCode is returned. The attempt count carries over
// to the replacement so regeneration cannot reset the ceiling.
func (s *VerificationCodeService) Validate(key, input string) (*models.VerificationCode, error) {
	stored, ok := s.store.Load(key)
	if !ok {
		return nil, ErrVerificationCodeNotFound
	}
	if stored.AttemptsExhausted() {
		return nil, ErrTooManyAttempts
	}
	if stored.Expired(s.now()) {
		s.store.Clear(key)
		return nil, ErrVerificationCodeExpired
	}
	if strings.TrimSpace(input) != stored.Code {
		next := s.issue(key, stored.Email, stored.Attempts+1)
		return &next, ErrInvalidVerificationCode
	}

	s.store.Clear(key)
	return nil, nil
}

func (s *VerificationCodeService) Clear(key string) {
	s.store.Clear(key)
}
