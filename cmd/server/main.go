package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/smartpreach/smartpreach-server/internal/config"
	"github.com/smartpreach/smartpreach-server/internal/database"
	"github.com/smartpreach/smartpreach-server/internal/handler"
	"github.com/smartpreach/smartpreach-server/internal/jobs"
	"github.com/smartpreach/smartpreach-server/internal/middleware"
	"github.com/smartpreach/smartpreach-server/internal/redis"
	"github.com/smartpreach/smartpreach-server/internal/repository"
	"github.com/smartpreach/smartpreach-server/internal/service"
	"github.com/smartpreach/smartpreach-server/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("APP_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	} else {
		log.Info().Msg("redis not configured, session events stay on this instance")
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionRepo := repository.NewLiveSessionRepository(db.DB)
	sessionService := service.NewLiveSessionService(sessionRepo, broker)

	var createLimiter middleware.Limiter
	if redisClient != nil {
		createLimiter = middleware.NewRedisRateLimiter(redisClient.Client, config.CreateRateLimitWindow)
	} else {
		createLimiter = middleware.NewMemoryRateLimiter(config.CreateRateLimitWindow)
	}
	createRateLimit := middleware.NewRateLimitMiddleware(createLimiter, cfg.CreateRateLimitPerMin, "session-create")
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	sessionHandler := handler.NewLiveSessionHandler(sessionService, handler.LiveSessionHandlerConfig{
		Events:         handler.NewEventsHandler(broker, sessionService),
		WebSocket:      handler.NewWebSocketHandler(broker, sessionService, cfg.CORSAllowedOrigins),
		QR:             handler.NewQRHandler(sessionService, cfg.PublicBaseURL),
		CreateLimit:    createRateLimit.Handler,
		RequestTimeout: config.ServerRequestTimeout,
	})
	healthHandler := handler.NewHealthHandler(db)
	remoteHandler := handler.NewRemoteAppHandler(cfg.StaticDir)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api/live-session", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			MaxAge:         300,
		}))
		r.Mount("/", sessionHandler.Routes())
	})

	r.Route("/remote", func(r chi.Router) {
		r.Use(securityHeadersMiddleware.Handler)
		r.Get("/*", remoteHandler.ServeHTTP)
	})

	cleanupJob := jobs.NewCleanupJob(sessionService, cfg.SessionMaxAge(), cfg.CleanupInterval())
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	// Streams only end when their clients leave; closing the broker
	// releases them so Shutdown does not wait out the full timeout.
	broker.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
