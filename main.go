// Command tracker serves the board-game match tracker API and runs its
// maintenance tasks.
//
// Usage:
//
//	tracker serve
//	tracker migrate
//	tracker reshare --user <owner id> --match <match id>
//	tracker purge
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"boardgame-tracker/config"
	"boardgame-tracker/database"
	"boardgame-tracker/handlers"
	"boardgame-tracker/middleware"
	"boardgame-tracker/services"
	"boardgame-tracker/workers"
)

func main() {
	root := &cobra.Command{
		Use:           "tracker",
		Short:         "Board-game match tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), reshareCmd(), purgeCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// withDB loads configuration, installs the logger and opens the database for
// one command.
func withDB(fn func(ctx context.Context, cfg *config.Config, db *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, cfg, db)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the schema and serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				if cfg.GatewayToken == "" {
					return errors.New("GATEWAY_TOKEN must be set to serve")
				}
				if err := database.Migrate(db); err != nil {
					return err
				}

				log := slog.Default()
				sharing := services.NewSharingService(db, log)
				matches := services.NewMatchService(db, sharing, log)

				app := fiber.New(fiber.Config{
					ErrorHandler: func(c *fiber.Ctx, err error) error {
						code := fiber.StatusInternalServerError
						if fe, ok := err.(*fiber.Error); ok {
							code = fe.Code
						}
						return c.Status(code).JSON(fiber.Map{"error": err.Error()})
					},
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 10 * time.Second,
				})
				app.Use(recover.New())
				app.Use(fiberlogger.New(fiberlogger.Config{
					Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
				}))
				app.Use(cors.New(cors.Config{
					AllowOrigins: strings.Join(cfg.AllowedOrigins, ","),
					AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
					AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID, X-Request-ID",
					MaxAge:       86400,
				}))
				app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

				handlers.SetupMatchRoutes(app, matches, services.NewResolver(db))
				handlers.SetupSharingRoutes(app, sharing, services.NewLinkService(db))
				app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

				if cfg.PurgeInterval > 0 {
					purger := workers.NewPurgeWorker(db, cfg.PurgeInterval, cfg.PurgeRetention, log)
					if err := purger.Start(); err != nil {
						return fmt.Errorf("start purge worker: %w", err)
					}
					defer purger.Stop()
				}

				errc := make(chan error, 1)
				go func() {
					errc <- app.Listen(fmt.Sprintf(":%d", cfg.Port))
				}()
				log.Info("server running", "port", cfg.Port, "origins", cfg.AllowedOrigins)

				select {
				case err := <-errc:
					return err
				case <-ctx.Done():
				}
				log.Info("shutting down server")
				return app.ShutdownWithTimeout(10 * time.Second)
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				return database.Migrate(db)
			})
		},
	}
}

func reshareCmd() *cobra.Command {
	var userID, matchID string
	cmd := &cobra.Command{
		Use:   "reshare",
		Short: "Re-run the sharing fan-out for one match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				sharing := services.NewSharingService(db, slog.Default())
				report, err := sharing.TriggerShareFanOut(ctx, userID, matchID)
				if report != nil {
					for _, r := range report.Results {
						slog.Info("fan-out result", "friend_id", r.FriendID, "status", r.Status, "seats", r.SharedSeats, "skipped", r.Skipped, "error", r.Error)
					}
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Owner user id")
	cmd.Flags().StringVar(&matchID, "match", "", "Match id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("match")
	return cmd
}

func purgeCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete matches soft-deleted longer than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
				if !cmd.Flags().Changed("retention") {
					retention = cfg.PurgeRetention
				}
				n, err := workers.NewPurgeWorker(db, 0, retention, slog.Default()).RunOnce(ctx)
				slog.Info("purge finished", "purged", n)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "Override PURGE_RETENTION_DAYS, e.g. 72h")
	return cmd
}
