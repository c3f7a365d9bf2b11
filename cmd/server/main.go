package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/njord/internal"
	"github.com/dukerupert/njord/internal/auth"
	"github.com/dukerupert/njord/internal/billing"
	"github.com/dukerupert/njord/internal/domain"
	"github.com/dukerupert/njord/internal/events"
	"github.com/dukerupert/njord/internal/handler/api"
	"github.com/dukerupert/njord/internal/middleware"
	"github.com/dukerupert/njord/internal/postgres"
	"github.com/dukerupert/njord/internal/routes"
	"github.com/dukerupert/njord/internal/service"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	store := postgres.New(pool)

	// Event publisher: NATS when configured, otherwise a no-op
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATS.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// Initialize services
	tokens := auth.NewTokenManager(cfg.SessionSecret, cfg.SessionTTL)
	provider := billing.NewStripeProvider(cfg.Stripe.SecretKey)

	identityService := service.NewIdentityService(store, tokens, logger)
	catalogService := service.NewCatalogService(store, logger)
	cartService := service.NewCartService(store, logger)
	checkoutService := service.NewCheckoutService(store, provider, publisher, cfg.Currency, logger)
	orderService := service.NewOrderService(store, cfg.Currency, logger)

	if err := seedAdmin(ctx, identityService, cfg, logger); err != nil {
		return err
	}

	// Assemble router
	metrics := middleware.NewMetrics("njord")
	handler := routes.New(routes.Deps{
		Identity: identityService,
		Auth:     api.NewAuthHandler(identityService, cfg.SessionTTL, cfg.Env == "prod"),
		Cart:     api.NewCartHandler(cartService),
		Catalog:  api.NewCatalogHandler(catalogService),
		Orders:   api.NewOrderHandler(checkoutService, orderService),
		Admin:    api.NewAdminHandler(orderService),
		Metrics:  metrics,
		Logger:   logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// seedAdmin creates the initial admin account on first startup when the
// config names one. An existing account is left alone.
func seedAdmin(ctx context.Context, identity service.IdentityService, cfg *internal.Config, logger *slog.Logger) error {
	if cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return nil
	}

	_, err := identity.Register(ctx, cfg.Admin.Email, cfg.Admin.Password, domain.RoleAdmin)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil
		}
		return fmt.Errorf("failed to seed admin account: %w", err)
	}
	logger.Info("Admin account created", "email", cfg.Admin.Email)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
