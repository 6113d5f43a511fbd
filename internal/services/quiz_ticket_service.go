package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const quizTicketIssuer = "purrfect-waitlist"

var ErrQuizTicketRequired = errors.New("quiz ticket required")

// QuizTicketService signs the short-lived ticket embedded in the quiz
// redirect so the quiz endpoint can tell the user id was not typed in.
type QuizTicketService struct {
	secret []byte
	ttl    time.Duration
}

type quizTicketClaims struct {
	UserType string `json:"user_type"`
	jwt.RegisteredClaims
}

func NewQuizTicketService(secret string, ttl time.Duration) *QuizTicketService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &QuizTicketService{secret: []byte(secret), ttl: ttl}
}

func (s *QuizTicketService) Issue(userID uuid.UUID, userType string) (string, error) {
	now := time.Now()
	claims := quizTicketClaims{
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    quizTicketIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the ticket signature and that it was issued for userID.
func (s *QuizTicketService) Verify(ticket string, userID uuid.UUID) error {
	var claims quizTicketClaims
	_, err := jwt.ParseWithClaims(ticket, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(quizTicketIssuer),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", utils.ErrInvalidToken, err)
	}
	if claims.Subject != userID.String() {
		return fmt.Errorf("%w: ticket issued for a different user", utils.ErrInvalidToken)
	}
	return nil
}
