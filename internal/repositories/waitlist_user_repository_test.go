package repositories

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
)

func TestSubmitQuizResponsesSendsRPCArgs(t *testing.T) {
	userID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/rpc/submit_quiz_responses", r.URL.Path)

		var args struct {
			UserID    string                `json:"p_user_id"`
			Responses []models.QuizResponse `json:"p_responses"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, userID.String(), args.UserID)
		assert.Len(t, args.Responses, 2)

		_, _ = w.Write([]byte(`{"success":true,"user":{"id":"` + userID.String() + `","email":"a@b.co","quiz_completed":true,"waitlist_position":7}}`))
	}))
	defer srv.Close()

	repo := NewWaitlistUserRepository(backend.NewClient(backend.Settings{URL: srv.URL, AnonKey: "k"}))
	res, err := repo.SubmitQuizResponses(context.Background(), userID, []models.QuizResponse{
		{QuestionID: "q1", Answer: "a"},
		{QuestionID: "q2", Answer: "b"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.User)
	require.Equal(t, 7, *res.User.WaitlistPosition)
	require.Equal(t, models.OriginBackend, res.User.Origin)
}

func TestGetByVerificationTokenNoRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.654321", r.URL.Query().Get("verification_token"))
		assert.Empty(t, r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	repo := NewWaitlistUserRepository(backend.NewClient(backend.Settings{URL: srv.URL, AnonKey: "k"}))
	_, err := repo.GetByVerificationToken(context.Background(), "654321")
	require.Error(t, err)
	require.Equal(t, backend.KindNotFound, backend.KindOf(err))
}
