package main // Entry point package

import (
	"context"
	"errors"
	"log" // Logging library
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4" // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-checkout/internal/config"   // Internal config loader
	"github.com/iliyamo/cinema-checkout/internal/database" // MySQL connection and schema
	"github.com/iliyamo/cinema-checkout/internal/handler"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/queue"
	"github.com/iliyamo/cinema-checkout/internal/repository"
	"github.com/iliyamo/cinema-checkout/internal/router" // Internal router setup
	"github.com/iliyamo/cinema-checkout/internal/service"
)

func main() {
	// A missing .env is fine: the environment may already be populated.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	cfg := config.Load() // Load environment config

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			log.Fatalf("mysql: migrate: %v", err)
		}
	}

	// Redis is optional; without it the confirm lock, catalog cache and
	// rate limiter degrade to no-ops.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	var provider payment.Provider
	switch cfg.Payment.Provider {
	case "stripe":
		provider = payment.NewStripeProvider(cfg.Payment.StripeSecretKey, cfg.Payment.StripeCurrency)
	default:
		provider = payment.NewTossClient(cfg.Payment.TossAPIBase, cfg.Payment.TossSecretKey, nil)
	}
	log.Printf("payment provider: %s", provider.Name())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events service.EventPublisher
	if cfg.EventsEnabled {
		url := queue.BrokerURL()
		events = queue.NewPublisher(url)
		go func() {
			if err := queue.StartBookingConsumer(ctx, url); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("booking-consumer: stopped: %v", err)
			}
		}()
	}

	catalogRepo := repository.NewCatalogRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	holdRepo := repository.NewSeatHoldRepo(db)
	checkoutRepo := repository.NewCheckoutRepo(db)
	paymentRepo := repository.NewPaymentRepo(db)

	catalog := service.NewCatalog(catalogRepo, cfg.CatalogTimeout, cfg.Timezone)
	inventory := service.NewInventory(bookingRepo, holdRepo)
	ledger := service.NewLedger(db, bookingRepo, holdRepo, checkoutRepo, paymentRepo, provider, events)
	orchestrator := service.NewOrchestrator(service.OrchestratorDeps{
		Ledger:    ledger,
		Checkouts: checkoutRepo,
		Payments:  paymentRepo,
		Showtimes: catalog,
		Occupancy: inventory,
		Provider:  provider,
		Lock:      service.NewConfirmLock(rdb, cfg.ConfirmLockTTL),
		Events:    events,
	}, service.OrchestratorConfig{
		PublicBaseURL:     cfg.PublicBaseURL,
		SuccessPath:       cfg.SuccessPath,
		FailPath:          cfg.FailPath,
		BookingDataSecret: cfg.BookingDataSecret,
		LeaseTTL:          cfg.SeatLeaseTTL,
	})

	sweeper := service.NewSweeper(ledger, checkoutRepo, holdRepo, cfg.PendingBookingTTL, cfg.SweepInterval)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer func() {
		if err := sweeper.Stop(); err != nil {
			log.Printf("sweeper: stop: %v", err)
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s: %v", v.Method, v.URI, v.Status, v.Latency, v.Error)
				return nil
			}
			log.Printf("http: %s %s %d %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	router.RegisterRoutes(e, router.Handlers{
		Health:   handler.Health(db),
		Catalog:  handler.NewCatalogHandler(catalog, inventory),
		Bookings: handler.NewBookingHandler(ledger, checkoutRepo),
		Payments: handler.NewPaymentHandler(orchestrator),
		Admin:    &handler.AdminHandler{Sweeper: sweeper},
	}, router.Options{
		JWTSecret: cfg.JWTSecret,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Redis:     rdb,
	})

	addr := ":" + cfg.Port                                // Address string with port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env) // Print startup info
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err) // Log and exit if server fails
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http: shutdown: %v", err)
	}
}
