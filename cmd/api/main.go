package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/cache"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/database"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/events"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/providers/identity"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/queue"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/adapters/search"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/handlers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/middleware"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/api/routes"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/application/services"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/providers"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/domain/repositories"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/rabbitmq"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/notifications"
	"github.com/zatekoja/facility-maintenance-tracker/backend/internal/infrastructure/observability"
	"github.com/zatekoja/facility-maintenance-tracker/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Environment)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			observability.EnableOTelLogs()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Database
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	if cfg.App.AutoMigrate {
		if err := pgClient.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Redis backs the cache, rate limiter and event bus. Without it the API
	// falls back to in-process equivalents, which only suit a single instance.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-process cache and event bus")
		cacheProvider = cache.NewMemoryAdapter()
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		cacheProvider = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
		log.Info().Msg("Redis cache and event bus initialized")
	}

	// Typesense is optional; search falls back to the database
	var searchRepo repositories.RequestSearchRepository
	if typesenseClient, err := typesense.NewClient(&cfg.Typesense); err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, request search uses the database")
	} else {
		if err := typesenseClient.InitSchema(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to init Typesense schema")
		}
		searchRepo = search.NewTypesenseAdapter(typesenseClient)
	}

	// Outbound email goes through RabbitMQ when configured, inline otherwise
	var emailQueue providers.EmailQueue
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(&cfg.RabbitMQ)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer mqClient.Close()
		emailQueue = queue.NewRabbitMQEmailQueue(mqClient)
		log.Info().Str("queue", mqClient.QueueName()).Msg("Email queue backed by RabbitMQ")
	} else {
		emailQueue = queue.NewInlineEmailQueue(notifications.NewResendSender(&cfg.Email), metrics)
		log.Info().Msg("Email delivered inline (RABBITMQ_URL not set)")
	}

	// Adapters
	profileRepo := database.NewProfileAdapter(pgClient)
	requestRepo := database.NewMaintenanceRequestAdapter(pgClient)
	notificationRepo := database.NewNotificationAdapter(pgClient)
	analyticsRepo := database.NewAnalyticsAdapter(pgClient)
	facilityRepo := database.NewCachedFacilityAdapter(database.NewFacilityAdapter(pgClient), cacheProvider)

	identityProvider := identity.NewGoTrueProvider(&cfg.Auth)

	// Services
	authService := services.NewAuthService(identityProvider, profileRepo, cfg.App.SiteURL, cfg.Auth.JWTSecret)
	callbackService := services.NewCallbackService(identityProvider, profileRepo, cfg.Reconcile, metrics)
	accountService := services.NewAccountService(identityProvider, profileRepo, cfg.Reconcile, metrics)
	profileService := services.NewProfileService(profileRepo, identityProvider)
	notificationService := services.NewNotificationService(notificationRepo, eventBus)
	requestService := services.NewMaintenanceRequestService(services.MaintenanceRequestDeps{
		Requests:      requestRepo,
		Profiles:      profileRepo,
		Search:        searchRepo,
		Notifications: notificationService,
		Emails:        emailQueue,
		Renderer:      notifications.NewRenderer(cfg.App.SiteURL),
		Events:        eventBus,
		Limiter:       cacheProvider,
	})
	facilityService := services.NewFacilityService(facilityRepo)
	analyticsService := services.NewAnalyticsService(analyticsRepo, cacheProvider, metrics)
	dashboardService := services.NewDashboardService(requestRepo, profileRepo, facilityRepo, analyticsRepo, requestService)

	cacheInvalidationService := services.NewCacheInvalidationService(cacheProvider, eventBus)
	if err := cacheInvalidationService.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start cache invalidation service")
	}

	warmingService := services.NewCacheWarmingService(facilityRepo)
	warmingService.StartPeriodicWarming(ctx, 5*time.Minute)

	router := routes.NewRouter(routes.Dependencies{
		AuthHandler:         handlers.NewAuthHandler(authService, callbackService, accountService, cfg.Auth, cfg.IsLocal()),
		ProfileHandler:      handlers.NewProfileHandler(profileService, authService),
		RequestHandler:      handlers.NewRequestHandler(requestService),
		FacilityHandler:     handlers.NewFacilityHandler(facilityService),
		NotificationHandler: handlers.NewNotificationHandler(notificationService),
		AnalyticsHandler:    handlers.NewAnalyticsHandler(analyticsService, dashboardService),
		SSEHandler:          handlers.NewSSEHandler(eventBus),
		Authenticator:       authService,
		AccessCookieName:    cfg.Auth.AccessCookieName,
		ProfileRepo:         profileRepo,
		CacheMiddleware:     middleware.NewCacheMiddleware(cacheProvider),
		Metrics:             metrics,
		AllowedOrigins:      middleware.ParseAllowedOrigins(cfg.Server.AllowedOrigins),
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the notification stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.App.Environment).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	cacheInvalidationService.Stop()
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing event bus")
	}

	log.Info().Msg("Server stopped")
}
