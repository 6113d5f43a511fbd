package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"
	_ "time/tzdata"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/app"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/config"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/controllers"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/routes"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

func main() {
	utils.InitLogger(config.AppName)

	// 1) Config
	cfg := config.LoadConfig()
	defer cfg.Close()

	// 2) Core application
	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if application.Poller != nil {
		application.Poller.Start(ctx)
	}

	// 3) Controllers
	healthCtrl := controllers.NewHealthController(application.Registration)
	registrationCtrl := controllers.NewRegistrationController(application.Registration, application.EmailChecker()).
		WithTrustedProxy(cfg.TrustProxy)
	quizCtrl := controllers.NewQuizController(application.Registration, application.TicketVerifier())
	statsCtrl := controllers.NewStatsController(application.Registration, application.PollerView())
	deletionCtrl := controllers.NewDeletionController(application.Deletion)
	sessionCtrl := controllers.NewSessionController(application.Flows)

	// 4) Router
	router := mux.NewRouter()
	router.HandleFunc(routes.Health, healthCtrl.HealthCheckHandler).Methods(http.MethodGet)
	router.Handle(routes.Metrics, promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc(routes.WaitlistRegister, registrationCtrl.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.WaitlistVerify, registrationCtrl.VerifyHandler).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc(routes.WaitlistQuiz, quizCtrl.SubmitHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.WaitlistStats, statsCtrl.StatsHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.WaitlistDeletion, deletionCtrl.DeletionHandler).Methods(http.MethodPost)

	router.HandleFunc(routes.RegisterSessions, sessionCtrl.CreateHandler).Methods(http.MethodPost)
	router.HandleFunc(routes.RegisterSession, sessionCtrl.GetHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.RegisterSession, sessionCtrl.DeleteHandler).Methods(http.MethodDelete)
	router.HandleFunc(routes.SessionEmail, sessionCtrl.EmailHandler).Methods(http.MethodPut)
	router.HandleFunc(routes.SessionName, sessionCtrl.NameHandler).Methods(http.MethodPut)
	router.HandleFunc(routes.SessionCode, sessionCtrl.CodeHandler).Methods(http.MethodPost)

	// 5) Scheduled jobs
	c := cron.New()

	// unverified registrations past retention
	_, schErr1 := c.AddFunc("0 3 * * *", func() {
		if _, e := application.Retention.CleanupDaily(context.Background()); e != nil && !errors.Is(e, utils.ErrMaintenanceDisabled) {
			utils.Logger.WithError(e).Error("Scheduled retention cleanup failed")
		}
	})
	if schErr1 != nil {
		utils.Logger.WithError(schErr1).Fatal("Failed to schedule retention cleanup job")
	}

	// placeholder users created while the backend was down
	_, schErr2 := c.AddFunc("@every 5m", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		report, e := application.Reconciler.Reconcile(jobCtx)
		if e != nil {
			utils.Logger.WithError(e).Debug("Fallback reconciliation skipped, backend unreachable")
			return
		}
		if report.Reconciled+report.Duplicates+report.Failed > 0 {
			utils.Logger.WithField("report", report).Info("Fallback reconciliation finished")
		}
	})
	if schErr2 != nil {
		utils.Logger.WithError(schErr2).Fatal("Failed to schedule fallback reconciliation job")
	}

	c.Start()
	defer c.Stop()

	// 6) CORS
	co := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           co.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	utils.Logger.Infof("Starting %s on :%s", cfg.AppName, cfg.AppPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Logger.Fatal("Server error:", err)
	}
	utils.Logger.Info("Server stopped")
}
