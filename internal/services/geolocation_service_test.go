package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeolocationSkipsPrivateAddresses(t *testing.T) {
	svc := NewGeolocationService("http://127.0.0.1:1")
	for _, ip := range []string{"", "127.0.0.1", "10.1.2.3", "192.168.0.5", "::1", "garbage"} {
		loc, err := svc.Lookup(context.Background(), ip)
		require.NoError(t, err, ip)
		assert.Nil(t, loc, ip)
	}
}

func TestGeolocationFillsTimezoneFromCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/81.2.69.142/json/", r.URL.Path)
		_, _ = w.Write([]byte(`{"city":"London","region":"England","country_name":"United Kingdom","latitude":51.5074,"longitude":-0.1278}`))
	}))
	defer srv.Close()

	loc, err := NewGeolocationService(srv.URL).Lookup(context.Background(), "81.2.69.142")
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "London", loc.City)
	assert.Equal(t, "Europe/London", loc.Timezone)
}

func TestGeolocationReportsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
	}))
	defer srv.Close()

	_, err := NewGeolocationService(srv.URL).Lookup(context.Background(), "8.8.8.8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RateLimited")
}
