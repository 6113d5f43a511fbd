package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/config"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

func TestNewAppWithoutDatabase(t *testing.T) {
	cfg := &config.Config{
		AppName:        config.DefaultAppName,
		AppUrl:         "https://purrfectstays.org",
		StatsFallback:  25,
		FlowSessionTTL: 0,
	}
	a, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.DB)
	assert.Nil(t, a.Poller)
	assert.Nil(t, a.PollerView())
	assert.Nil(t, a.TicketVerifier())
	assert.Nil(t, a.EmailChecker())

	_, err = a.Retention.CleanupDaily(context.Background())
	assert.ErrorIs(t, err, utils.ErrMaintenanceDisabled)
	assert.ErrorIs(t, a.Deletion.RequestDeletion(context.Background(), "a@b.co", "123456"), utils.ErrMaintenanceDisabled)

	// No backend configured: calls fail fast with a config error and stats
	// fall back to the configured totals.
	assert.Equal(t, backend.KindConfig, backend.KindOf(a.Registration.Ping(context.Background())))
	assert.Equal(t, 25, a.Registration.GetWaitlistStats(context.Background()).TotalUsers)
}

func TestNewAppOptionalComponents(t *testing.T) {
	cfg := &config.Config{
		AppName:                         config.DefaultAppName,
		AppUrl:                          "https://purrfectstays.org",
		SupabaseURL:                     "https://abc.supabase.co",
		SupabaseAnonKey:                 "anon",
		QuizTicketSecret:                "secret",
		StatsOrigin:                     "https://purrfectstays.org",
		LDFlag_StatsPollingEnabled:      true,
		LDFlag_CheckEmailDeliverability: true,
	}
	a, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Tickets)
	assert.NotNil(t, a.TicketVerifier())
	assert.NotNil(t, a.Poller)
	assert.NotNil(t, a.PollerView())
	assert.NotNil(t, a.EmailChecker())
}
