package app

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/config"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/controllers"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/db"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/flow"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/models"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/storage"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

const (
	quizTicketTTL       = 24 * time.Hour
	fallbackRetention   = 7 * 24 * time.Hour
	codeStoreEvictAfter = time.Hour
)

// App holds config, the DB pool (when DB_URL is set) and every service.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool

	Registration *services.RegistrationService
	Codes        *services.VerificationCodeService
	Flows        *services.RegistrationFlowService
	Reconciler   *services.FallbackReconciler
	Tickets      *services.QuizTicketService
	Retention    services.RetentionCleanupService
	Deletion     *services.DeletionService

	// Poller is nil when stats polling is switched off.
	Poller *services.StatsPoller
}

func NewApp(cfg *config.Config) (*App, error) {
	utils.Logger.Info("Initializing waitlist App")
	log := utils.Logger.WithField("component", "waitlist")

	a := &App{Config: cfg}

	if cfg.DBUrl != "" {
		pool, err := db.Connect(context.Background(), cfg.DBUrl)
		if err != nil {
			return nil, err
		}
		a.DB = pool
	}

	client := backend.NewClient(backend.Settings{
		URL:        cfg.SupabaseURL,
		AnonKey:    cfg.SupabaseAnonKey,
		MaxRetries: 3,
	})
	repo := repositories.NewWaitlistUserRepository(client)

	if cfg.QuizTicketSecret != "" {
		a.Tickets = services.NewQuizTicketService(cfg.QuizTicketSecret, quizTicketTTL)
	}

	var notifier services.WelcomeNotifier
	if cfg.SendgridAPIKey != "" {
		notifier = services.NewSendgridNotifier(cfg.SendgridAPIKey, cfg.LDFlag_SendgridFromEmail)
	} else {
		notifier = services.NewEdgeFunctionNotifier(repo)
	}

	geoURL := cfg.GeoLookupURL
	if geoURL == "" {
		geoURL = services.DefaultGeoLookupURL
	}

	a.Registration = services.NewRegistrationService(
		repo,
		services.NewGeolocationService(geoURL),
		notifier,
		a.Tickets,
		services.RegistrationOptions{
			AppURL:        cfg.AppUrl,
			StatsFallback: models.WaitlistStats{TotalUsers: cfg.StatsFallback},
			Logger:        log,
		},
	)

	a.Codes = services.NewVerificationCodeService(storage.NewMemoryCodeStore(codeStoreEvictAfter))
	a.Reconciler = services.NewFallbackReconciler(a.Registration, fallbackRetention, log)
	a.Flows = services.NewRegistrationFlowService(a.Registration, a.Codes, a.Reconciler, cfg.FlowSessionTTL, flow.Options{
		Logger: log,
	})

	var maintenance repositories.MaintenanceRepository
	if a.DB != nil {
		maintenance = repositories.NewMaintenanceRepository(a.DB)
	}
	a.Retention = services.NewRetentionCleanupService(maintenance)
	a.Deletion = services.NewDeletionService(maintenance)

	if cfg.LDFlag_StatsPollingEnabled {
		a.Poller = services.NewStatsPoller(statsFetcher(cfg, a.Registration, log), services.StatsPollerOptions{
			Logger: log.WithField("component", "stats-poller"),
		})
	}

	return a, nil
}

// statsFetcher uses a dedicated client when STATS_ORIGIN is set so the
// poller can detect a missing CORS allowance for the public site.
func statsFetcher(cfg *config.Config, reg *services.RegistrationService, log logrus.FieldLogger) services.StatsFetcher {
	if cfg.StatsOrigin == "" {
		return reg
	}
	originClient := backend.NewClient(backend.Settings{
		URL:     cfg.SupabaseURL,
		AnonKey: cfg.SupabaseAnonKey,
		Origin:  cfg.StatsOrigin,
	})
	return services.NewRegistrationService(
		repositories.NewWaitlistUserRepository(originClient),
		nil, nil, nil,
		services.RegistrationOptions{Logger: log},
	)
}

// EmailChecker returns the deliverability check for the registration
// endpoint, or nil when the flag is off.
func (a *App) EmailChecker() controllers.EmailChecker {
	if !a.Config.LDFlag_CheckEmailDeliverability {
		return nil
	}
	apiKey := a.Config.SendgridAPIKey
	withSG := a.Config.LDFlag_ValidateEmailWithSG && apiKey != ""
	return func(ctx context.Context, email string) (bool, error) {
		return utils.ValidateEmail(ctx, apiKey, email, withSG)
	}
}

// TicketVerifier returns nil when no ticket secret is configured.
func (a *App) TicketVerifier() controllers.TicketVerifier {
	if a.Tickets == nil {
		return nil
	}
	return a.Tickets
}

// PollerView returns nil when polling is disabled.
func (a *App) PollerView() controllers.PollerView {
	if a.Poller == nil {
		return nil
	}
	return a.Poller
}

func (a *App) Close() {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	if a.Flows != nil {
		a.Flows.Close()
	}
	if a.Registration != nil {
		a.Registration.Drain()
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("waitlist DB connection closed.")
	}
	utils.Logger.Info("waitlist app shutting down.")
}
