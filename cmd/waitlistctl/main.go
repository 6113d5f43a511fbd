package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/purrfectstays/purrfect-neko-sub001/internal/backend"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/db"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/repositories"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/services"
	"github.com/purrfectstays/purrfect-neko-sub001/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	utils.InitLogger("waitlistctl")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "waitlistctl",
		Short:         "Operator tooling for the Purrfect Stays waitlist",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newStatsCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newCleanupCommand())
	cmd.AddCommand(newDeleteCommand())
	return cmd
}

func registrationFromEnv(origin string) *services.RegistrationService {
	client := backend.NewClient(backend.Settings{
		URL:     os.Getenv("SUPABASE_URL"),
		AnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		Origin:  origin,
	})
	return services.NewRegistrationService(
		repositories.NewWaitlistUserRepository(client),
		nil, nil, nil,
		services.RegistrationOptions{},
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// -----------------------------------------------------------------------------
// stats
// -----------------------------------------------------------------------------

func newStatsCommand() *cobra.Command {
	var (
		watch    bool
		origin   string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print waitlist totals, optionally polling with backoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registrationFromEnv(origin)
			if !watch {
				stats, err := reg.FetchWaitlistStats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(stats)
			}

			poller := services.NewStatsPoller(reg, services.StatsPollerOptions{BaseInterval: interval})
			poller.Start(cmd.Context())
			defer poller.Stop()

			var (
				lastStatus  services.PollStatus
				lastSuccess time.Time
			)
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-ticker.C:
				}
				snap := poller.Snapshot()
				fresh := snap.LastSuccess != nil && snap.LastSuccess.After(lastSuccess)
				if snap.Status == lastStatus && !fresh {
					continue
				}
				lastStatus = snap.Status
				if fresh {
					lastSuccess = *snap.LastSuccess
				}
				if err := printJSON(snap); err != nil {
					return err
				}
			}
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep polling and print every status change")
	cmd.Flags().StringVar(&origin, "origin", os.Getenv("STATS_ORIGIN"), "Origin header to send, used to detect CORS misconfiguration")
	cmd.Flags().DurationVar(&interval, "interval", services.DefaultPollBaseInterval, "Base polling interval")
	return cmd
}

// -----------------------------------------------------------------------------
// migrate
// -----------------------------------------------------------------------------

func newMigrateCommand() *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the waitlist database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.PersistentFlags().StringVar(&dbURL, "db-url", os.Getenv("DB_URL"), "Postgres connection string")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return db.MigrateUp(cmd.Context(), dbURL)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return db.MigrationStatus(cmd.Context(), dbURL)
		},
	})
	return cmd
}

// -----------------------------------------------------------------------------
// cleanup / delete
// -----------------------------------------------------------------------------

func maintenanceFromFlag(ctx context.Context, dbURL string) (repositories.MaintenanceRepository, func(), error) {
	if dbURL == "" {
		return nil, nil, utils.ErrMaintenanceDisabled
	}
	pool, err := db.Connect(ctx, dbURL)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewMaintenanceRepository(pool), pool.Close, nil
}

func newCleanupCommand() *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete unverified registrations older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := maintenanceFromFlag(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := services.NewRetentionCleanupService(repo).CleanupDaily(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d unverified registrations\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "db-url", os.Getenv("DB_URL"), "Postgres connection string")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	var dbURL, email, token string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Erase a waitlist user given their email and verification token",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := maintenanceFromFlag(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := services.NewDeletionService(repo).RequestDeletion(cmd.Context(), email, token); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbURL, "db-url", os.Getenv("DB_URL"), "Postgres connection string")
	cmd.Flags().StringVar(&email, "email", "", "Email address of the user")
	cmd.Flags().StringVar(&token, "token", "", "Verification token issued at registration")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
