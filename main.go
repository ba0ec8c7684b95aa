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

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"messaging-service/internal/cache"
	"messaging-service/internal/config"
	"messaging-service/internal/db"
	"messaging-service/internal/events"
	"messaging-service/internal/handlers"
	"messaging-service/internal/logger"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/profiles"
	"messaging-service/internal/rabbitmq"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
	"messaging-service/internal/ws"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_FILE", "config/messaging.yaml"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(logger.Config{
		Development: cfg.Log.Development,
		Level:       cfg.Log.Level,
		Service:     cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.ServiceName, cfg.Tracing.OTLPEndpoint)
	if err != nil {
		logg.Fatal("failed to init tracer", zap.Error(err))
	}

	database, err := db.Connect(ctx, cfg.DB, logg)
	if err != nil {
		logg.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	var store cache.Cache = cache.Noop{}
	if cfg.Redis.URL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.Redis.URL, cfg.ServiceName)
		if err != nil {
			logg.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			store = redisCache
			logg.Info("redis connected")
		}
	}
	defer store.Close()

	resolver, closeResolver, err := buildResolver(cfg, database, store, logg)
	if err != nil {
		logg.Fatal("failed to build identity resolver", zap.Error(err))
	}
	defer closeResolver()

	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	profileDir := profiles.NewCachedDirectory(repositories.NewProfileRepo(database), store, cfg.Cache.ProfileTTL, logg)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logg)
	defer publisher.Close()
	logg.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	emitter := events.NewEmitter(publisher, cfg.ServiceName, cfg.Environment, logg)

	hub := ws.NewHub(emitter, logg)

	conversationHandler := handlers.NewConversationHandler(services.NewConversationService(conversationRepo, profileDir, logg), emitter)
	messageHandler := handlers.NewMessageHandler(services.NewMessageService(conversationRepo, messageRepo, logg), hub, emitter)
	conversationWS := ws.NewConversationWebSocketHandler(hub, conversationRepo, resolver, cfg.Identity.CookieName, emitter, logg)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(
		middleware.Recovery(logg),
		middleware.RequestID(),
		otelgin.Middleware(cfg.ServiceName),
		observability.HTTPMetricsMiddleware(),
		middleware.RequestLogger(logg),
	)

	handlers.RegisterHealthRoutes(router, map[string]handlers.Pinger{
		"db":    database,
		"cache": handlers.PingerFunc(store.Ping),
	})
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	authMiddleware := middleware.AuthMiddleware(resolver, cfg.Identity.CookieName, logg)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/conversations", authMiddleware, conversationHandler.CreateConversation)
	router.GET("/messages/:conversationId", authMiddleware, messageHandler.ListMessages)
	router.POST("/messages", authMiddleware, messageHandler.SendMessage)
	router.POST("/messages/:conversationId/read", authMiddleware, messageHandler.MarkRead)

	router.GET("/ws/conversations/:conversationId", conversationWS.Handle)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logg.Info("http server listening", zap.String("addr", srv.Addr), zap.String("identity_mode", cfg.Identity.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("http shutdown failed", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logg.Error("tracer shutdown failed", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
