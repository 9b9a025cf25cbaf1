package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/iliyamo/venue-slot-booking/internal/config"
	"github.com/iliyamo/venue-slot-booking/internal/database"
	"github.com/iliyamo/venue-slot-booking/internal/gateway"
	"github.com/iliyamo/venue-slot-booking/internal/handler"
	"github.com/iliyamo/venue-slot-booking/internal/lock"
	"github.com/iliyamo/venue-slot-booking/internal/logging"
	"github.com/iliyamo/venue-slot-booking/internal/middleware"
	"github.com/iliyamo/venue-slot-booking/internal/queue"
	"github.com/iliyamo/venue-slot-booking/internal/repository"
	"github.com/iliyamo/venue-slot-booking/internal/router"
	"github.com/iliyamo/venue-slot-booking/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; using process environment")
	}
	cfg := config.Load()
	bookingCfg, err := config.LoadBooking()
	if err != nil {
		log.Fatalf("booking config: %v", err)
	}
	paymentCfg, err := config.LoadPayment()
	if err != nil {
		log.Fatalf("payment config: %v", err)
	}
	brokerCfg, err := config.LoadBroker()
	if err != nil {
		log.Fatalf("broker config: %v", err)
	}
	redisCfg, err := config.LoadRedis()
	if err != nil {
		log.Fatalf("redis config: %v", err)
	}
	cacheCfg, err := config.LoadCache()
	if err != nil {
		log.Fatalf("cache config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("database open failed", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(context.Background(), db); err != nil {
			logger.Fatal("database migrate failed", zap.Error(err))
		}
		logger.Info("database schema applied")
	}
	store := repository.NewMySQLStore(db)

	rdb, err := config.NewRedisClient(context.Background(), redisCfg)
	if err != nil {
		logger.Warn("redis unavailable; caching off, local rate limits, every replica reaps", zap.Error(err))
	} else {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(brokerCfg.URL, brokerCfg.Exchange, logger)
	defer publisher.Close()
	events := service.NewEvents(publisher, logger)

	var gw service.OrderGateway
	switch {
	case paymentCfg.KeyID != "":
		gw = gateway.NewRazorpay(paymentCfg.KeyID, paymentCfg.KeySecret)
	case cfg.Env == "prod":
		logger.Fatal("RAZORPAY_KEY_ID is required in prod")
	default:
		logger.Warn("no payment gateway keys; issuing offline orders")
		gw = gateway.Offline{}
	}
	signer := gateway.NewSigner(paymentCfg.KeySecret)

	reservations := service.NewReservationService(store, events, logger, service.ReservationConfig{
		HoldTTL:        bookingCfg.HoldTTL,
		TaxBasisPoints: bookingCfg.TaxBasisPoints,
	})
	orders := service.NewOrderService(store, gw, events, logger, service.OrderConfig{Currency: paymentCfg.Currency})
	verifier := service.NewVerificationService(store, signer, events, logger, nil)
	slots := service.NewSlotService(store, logger)

	var locker service.Locker
	if rdb != nil {
		host, _ := os.Hostname()
		locker = lock.NewRedisLocker(rdb, host)
	}
	reaper := service.NewReaper(store, locker, events, logger, service.ReaperConfig{
		Interval:  bookingCfg.ReaperInterval,
		BatchSize: bookingCfg.ReaperBatchSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(ctx)
	}()
	if brokerCfg.ConsumerEnable {
		go func() {
			err := queue.StartBookingConsumer(ctx, queue.ConsumerConfig{
				URL: brokerCfg.URL, Exchange: brokerCfg.Exchange, LogDir: brokerCfg.LogDir,
			}, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("booking log consumer stopped", zap.Error(err))
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())
	router.Register(e, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Health:    handler.Health(db),
		Bookings:  handler.NewBookingHandler(reservations, orders, verifier, logger),
		Slots:     handler.NewSlotHandler(slots, logger),
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(cacheCfg, rdb),
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	}).Handler(e)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")
	<-reaperDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	events.Wait()
	logger.Info("server stopped")
}
