package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

func newTestClient(t *testing.T, h http.HandlerFunc, origin string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Settings{URL: srv.URL, AnonKey: "anon-key", Origin: origin, RetryInitial: time.Millisecond})
}

func TestMissingConfigFailsWithoutCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	for _, s := range []Settings{
		{URL: "", AnonKey: "k"},
		{URL: srv.URL, AnonKey: ""},
		{URL: "not a url", AnonKey: "k"},
		{URL: "ftp://example.com", AnonKey: "k"},
	} {
		c := NewClient(s)
		require.Error(t, c.ConfigError())

		_, err := c.Count(context.Background(), "waitlist_users")
		require.Error(t, err)
		assert.Equal(t, KindConfig, KindOf(err))
		assert.True(t, errors.Is(err, ErrConfig))
	}
	assert.False(t, called)
}

func TestInsertSendsHeadersAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/waitlist_users", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.co", body["email"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"email":"a@b.co","is_verified":false}]`))
	}, "")

	var rows []map[string]any
	err := c.Insert(context.Background(), "waitlist_users", map[string]any{"email": "a@b.co"}, &rows)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, false, rows[0]["is_verified"])
}

func TestSelectEncodesFilters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "eq.123456", q.Get("verification_token"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, "id,email", q.Get("select"))
		_, _ = w.Write([]byte(`[]`))
	}, "")

	var rows []map[string]any
	err := c.Select(context.Background(), "waitlist_users", Query{
		Columns: "id,email",
		Filters: []Filter{Eq("verification_token", "123456")},
		Limit:   1,
	}, &rows)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCountParsesContentRange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "*/42")
	}, "")

	n, err := c.Count(context.Background(), "waitlist_users")
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   Kind
	}{
		{"conflict", http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint"}`, KindDuplicate},
		{"unique code on 400", http.StatusBadRequest, `{"code":"23505","message":"duplicate"}`, KindDuplicate},
		{"not found", http.StatusNotFound, `{"message":"relation does not exist"}`, KindNotFound},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Invalid API key"}`, KindConfig},
		{"server error", http.StatusInternalServerError, `boom`, KindBackend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, "")
			err := c.Insert(context.Background(), "waitlist_users", map[string]string{}, nil)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestBackendErrorPreservesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"column \"foo\" does not exist"}`))
	}, "")
	err := c.RPC(context.Background(), "submit_quiz_responses", map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "foo" does not exist`)
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Settings{URL: url, AnonKey: "k"})
	_, err := c.Count(context.Background(), "waitlist_users")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.False(t, utils.IsCancellation(err))
}

func TestClientTimeoutIsANetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(300 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Settings{URL: srv.URL, AnonKey: "k", HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}})
	_, err := c.Count(context.Background(), "waitlist_users")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.False(t, utils.IsCancellation(err))

	var ce *utils.CancellationError
	assert.False(t, errors.As(err, &ce))
}

func TestCancelledContextBecomesCancellationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Count(ctx, "waitlist_users")
	require.Error(t, err)

	var ce *utils.CancellationError
	assert.True(t, errors.As(err, &ce))
	assert.Equal(t, KindCancelled, KindOf(err))
}

func TestCorsMismatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://purrfectstays.org", r.Header.Get("Origin"))
		w.Header().Set("Content-Range", "*/3")
	}, "https://purrfectstays.org")

	_, err := c.Count(context.Background(), "waitlist_users")
	require.Error(t, err)
	assert.Equal(t, KindCors, KindOf(err))
}

func TestCorsAllowed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "https://purrfectstays.org")
		w.Header().Set("Content-Range", "0-2/3")
	}, "https://purrfectstays.org")

	n, err := c.Count(context.Background(), "waitlist_users")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRateLimitRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{URL: srv.URL, AnonKey: "k", MaxRetries: 2, RetryInitial: time.Millisecond})
	var out map[string]bool
	require.NoError(t, c.Invoke(context.Background(), "send-welcome-email", map[string]string{}, &out))
	assert.True(t, out["ok"])
	assert.Equal(t, 2, calls)
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("0-24/573")
	require.NoError(t, err)
	assert.Equal(t, 573, n)

	_, err = parseContentRange("0-24/*")
	assert.Error(t, err)
	_, err = parseContentRange("")
	assert.Error(t, err)
}
