package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkout/internal/analytics"
	analytics_api "ms-checkout/internal/analytics/api"
	"ms-checkout/internal/auth"
	"ms-checkout/internal/catalog"
	"ms-checkout/internal/catalog/catalog_api"
	"ms-checkout/internal/clock"
	"ms-checkout/internal/config"
	"ms-checkout/internal/database/migrations"
	"ms-checkout/internal/discount"
	"ms-checkout/internal/inventory"
	"ms-checkout/internal/kafka"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/metrics"
	"ms-checkout/internal/notification"
	"ms-checkout/internal/order"
	orderdb "ms-checkout/internal/order/db"
	"ms-checkout/internal/order/order_api"
	rediswrap "ms-checkout/internal/order/redis"
	"ms-checkout/internal/payment"
	ticketdb "ms-checkout/internal/tickets/db"
	qr "ms-checkout/internal/tickets/qr_genrator"
	tickets "ms-checkout/internal/tickets/service"
	"ms-checkout/internal/tickets/ticket_api"
	"ms-checkout/internal/utils"
)

const organizerRole = "ORGANIZER"

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	if cfg.DSN == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	var sqldb *sql.DB
	var err error
	tries := cfg.ConnectTries
	if tries <= 0 {
		tries = 1
	}

	for i := 0; i < tries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, tries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		sqldb.Close()
		if i < tries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", tries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
	log.Info("DATABASE", "PostgreSQL connection successful")

	if cfg.AutoMigrate {
		runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
			MigrationsDir: cfg.MigrationsDir,
			SeedData:      cfg.SeedData,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
	}

	return bun.NewDB(sqldb, pgdialect.New())
}

// connectRedis returns nil when Redis is disabled or unreachable; payments
// then rely on the database transition alone.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Info("REDIS", "Redis disabled, in-flight payment lock off")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, in-flight payment lock off: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func newNotifier(cfg config.KafkaConfig, log *logger.Logger) (notification.Notifier, func()) {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info("KAFKA", "Kafka disabled, purchase events are logged only")
		return notification.LogNotifier{Logger: log}, func() {}
	}

	if err := kafka.EnsureTopicsExist(cfg.Brokers, []string{cfg.Topics.PurchaseApproved}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Brokers)
	log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Brokers))

	return notification.NewKafkaNotifier(producer, cfg.Topics.PurchaseApproved, log), func() {
		if err := producer.Close(); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Producer close: %v", err))
		}
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.TokenVerifier {
	if cfg.Mode == "unverified" {
		log.Warn("AUTH", "Token signatures are NOT verified (AUTH_MODE=unverified)")
		return auth.UnverifiedVerifier{Now: time.Now}
	}
	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Issuer)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("OIDC provider %q: %v", cfg.Issuer, err))
	}
	log.Info("AUTH", fmt.Sprintf("Verifying tokens against %s", cfg.Issuer))
	return verifier
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Dir, cfg.App.Name, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}
	log.Info("APP", fmt.Sprintf("Starting %s (%s)", cfg.App.Name, cfg.App.Env))

	ctx := context.Background()
	expose := cfg.App.IsDevelopment()
	clk := clock.NewSystem()
	ids := utils.NewUUIDGenerator()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}

	notifier, closeNotifier := newNotifier(cfg.Kafka, log)
	defer closeNotifier()

	verifier := newVerifier(ctx, cfg.Auth, log)

	catalogReader := catalog.NewDB(bunDB)
	discounts := discount.NewService(discount.NewDB(bunDB), clk, log)
	purchases := orderdb.NewDB(bunDB)
	ticketStore := ticketdb.NewDB(bunDB)

	gateway, err := payment.NewSimulatedGateway(cfg.Payment, log)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("Payment gateway: %v", err))
	}

	orderService := order.NewOrderService(purchases, catalogReader, discounts, ids, clk, log)
	paymentService := payment.NewService(
		purchases,
		inventory.NewLedger(bunDB),
		tickets.NewIssuer(ticketStore, ids),
		discounts,
		gateway,
		ids, clk, log,
	)
	paymentService.Notifier = notifier
	paymentService.NotifyTimeout = cfg.Payment.NotifyTimeout
	if redisClient != nil {
		paymentLock := rediswrap.NewRedis(redisClient, cfg.Payment.LockTTL, log)
		paymentService.Lock = paymentLock
		orderService.PaymentLocks = paymentLock
	}

	ticketService := tickets.NewTicketService(ticketStore, purchases,
		qr.NewQRGenerator(cfg.Tickets.QRSecret, cfg.Tickets.QRSize), clk, log)
	analyticsService := analytics.NewService(analytics.NewDB(bunDB), catalogReader, ticketStore)

	orderHandler := order_api.NewHandler(orderService, paymentService, log, expose)
	ticketHandler := ticket_api.NewHandler(ticketService, log, expose)
	catalogHandler := catalog_api.NewHandler(catalogReader, clk, log, expose)
	analyticsHandler := analytics_api.NewHandler(analyticsService, log, expose)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware(log))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		catalogHandler.RegisterRoutes(r)

		// --- Protected Routes ---
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(verifier, log))

			orderHandler.RegisterRoutes(r, ticketHandler.PurchaseRoutes)
			ticketHandler.RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(organizerRole, log))
				analyticsHandler.RegisterRoutes(r)
			})
		})
	})
	log.Info("ROUTER", "Routes registered under /api")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Checkout service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Checkout service shutdown complete")
	}
}
