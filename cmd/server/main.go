package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/whatsdrip/dashboard/internal/apiclient"
	"github.com/whatsdrip/dashboard/internal/auth"
	"github.com/whatsdrip/dashboard/internal/config"
	"github.com/whatsdrip/dashboard/internal/database"
	"github.com/whatsdrip/dashboard/internal/handler"
	"github.com/whatsdrip/dashboard/internal/identity"
	"github.com/whatsdrip/dashboard/internal/middleware"
	"github.com/whatsdrip/dashboard/internal/model"
	"github.com/whatsdrip/dashboard/internal/notify"
	"github.com/whatsdrip/dashboard/internal/redis"
	"github.com/whatsdrip/dashboard/internal/repository"
	"github.com/whatsdrip/dashboard/internal/service"
	"github.com/whatsdrip/dashboard/internal/session"
	"github.com/whatsdrip/dashboard/internal/sse"
	"github.com/whatsdrip/dashboard/internal/status"
	"github.com/whatsdrip/dashboard/internal/util"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()

	db, err := database.Connect(cfg.LocalStorageURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local storage")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
	if err := db.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping local storage")
	}
	if err := db.Migrate(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate local storage")
	}
	cancel()
	log.Info().Msg("local storage ready")

	storage := repository.NewLocalStorageRepository(db.DB)
	if cfg.EncryptionKey != "" {
		cipher, err := util.NewCipher(cfg.EncryptionKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid encryption key")
		}
		storage = repository.NewEncryptedStorage(storage, cipher)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	broker := sse.NewBroker(redisClient)
	defer broker.Close()
	notifier := notify.NewBrokerNotifier(broker, sse.DefaultTopic)

	reqCtx := auth.NewRequestContext(cfg.BackendURL)
	tokens := auth.NewTokenStore(storage, reqCtx)
	if _, err := tokens.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore stored token")
	}

	provider := identity.NewFirebaseProvider(identity.FirebaseConfig{
		APIKey:   cfg.FirebaseAPIKey,
		AuthURL:  cfg.FirebaseAuthURL,
		TokenURL: cfg.FirebaseTokenURL,
		Timeout:  config.IdentityRequestTimeout,
	}, storage)

	source, err := status.NewFirestoreSource(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentialsFile, cfg.StatusCollection)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create firestore client")
	}
	defer source.Close()

	view := status.NewView()
	view.OnChange(func(current *status.ConnectionStatus) {
		publishEvent(broker, sse.EventStatus, current)
	})
	mirror := status.NewMirror(source, view, config.StatusWatchRetryDelay)

	client := apiclient.New(reqCtx, cfg.APITimeout(), notifier)
	dashboard := service.NewDashboardCache()
	dashboard.OnChange(func(data *model.DashboardData) {
		publishEvent(broker, sse.EventDashboard, data)
	})
	facade := service.NewFacade(client, view, dashboard, notifier)
	board := service.NewCampaignBoard(facade, notifier)

	sessions := session.NewManager(
		provider, tokens, view, mirror, facade, notifier, broker,
		session.DefaultTiming(), dashboard, board,
	)
	client.BindSession(sessions)
	sessions.Start()
	defer sessions.Stop()

	if err := provider.Init(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to restore identity session")
	}

	authMiddleware := middleware.NewAuthMiddleware(sessions)
	loginLimiter := middleware.NewLoginRateLimiter(redisClient.Client, config.LoginMaxAttempts, config.LoginAttemptWindow)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.SecureCookies)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(config.MaxJSONBodyBytes, config.MaxUploadBodyBytes)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(cfg.SecureCookies)

	authHandler := handler.NewAuthHandler(sessions, loginLimiter.Handler)
	eventsHandler := handler.NewEventsHandler(broker, view, dashboard)
	whatsappHandler := handler.NewWhatsAppHandler(facade, view)
	dashboardHandler := handler.NewDashboardHandler(facade, dashboard)
	templateHandler := handler.NewTemplateHandler(facade, board)
	campaignHandler := handler.NewCampaignHandler(facade, board)
	proxyHandler := handler.NewProxyHandler(cfg.BackendURL, &http.Client{Timeout: cfg.APITimeout()})
	healthHandler := handler.NewHealthHandler(map[string]handler.Pinger{
		"storage": db.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	})

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", healthHandler.ServeHTTP)

	// Called by other browser clients with their own bearer token, so no CSRF.
	r.Mount("/api", proxyHandler.Routes())

	r.Group(func(r chi.Router) {
		r.Use(csrfMiddleware.Handler)

		r.With(chimiddleware.Timeout(config.ServerRequestTimeout)).Mount("/auth", authHandler.Routes())

		r.Route("/v1", func(r chi.Router) {
			r.Use(authMiddleware.Handler)

			r.Get("/events", eventsHandler.ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))

				r.Mount("/whatsapp", whatsappHandler.Routes())
				r.Get("/dashboard", dashboardHandler.Dashboard)
				r.Get("/dashboard/export/{type}", dashboardHandler.Export)
				r.Get("/analytics/{kind}", dashboardHandler.Analytics)
				r.Get("/settings", dashboardHandler.GetSettings)
				r.Put("/settings", dashboardHandler.UpdateSettings)
				r.Mount("/templates", templateHandler.Routes())
				r.Mount("/campaigns", campaignHandler.Routes())
			})
		})

		r.NotFound(handler.NewUIHandler(cfg.StaticDir).ServeHTTP)
	})

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func publishEvent(broker *sse.Broker, eventType string, data any) {
	if err := broker.PublishJSON(context.Background(), sse.DefaultTopic, eventType, data); err != nil {
		log.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
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
