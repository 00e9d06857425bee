package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-core/internal/auth"
	"chat-core/internal/chat"
	"chat-core/internal/config"
	"chat-core/internal/db"
	grpcserver "chat-core/internal/grpc"
	"chat-core/internal/handlers"
	"chat-core/internal/hub"
	"chat-core/internal/middleware"
	"chat-core/internal/observability"
	"chat-core/internal/rabbitmq"
	"chat-core/internal/repositories"
	"chat-core/internal/telemetry"
	"chat-core/internal/ws"
)

const auditRoutingKey = "audit.chat"

func main() {
	if err := run(); err != nil {
		slog.Error("chat-core stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing disabled", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	database, err := db.Connect(ctx, cfg.DatabaseDSN, cfg.RetryPolicy(), log)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.RetryPolicy(), log)
	defer publisher.Close()
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "reason", rabbitmq.PublisherNoopReason(publisher))
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, auditRoutingKey, cfg.ServiceName, cfg.Environment, log)

	publicRepo := repositories.NewPublicMessageRepo(database)
	privateRepo := repositories.NewPrivateMessageRepo(database)
	userRepo := repositories.NewUserRepo(database)

	chatHub := hub.NewHub(log, cfg.MaxFileSize)
	service := chat.NewService(chatHub, publicRepo, privateRepo, userRepo, audit, log, chat.Options{
		HistoryLimit:  cfg.HistoryLimit,
		MaxTextLength: cfg.MaxTextLength,
		MaxFileSize:   cfg.MaxFileSize,
	})
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	chatWS := ws.NewHandler(service, verifier, cfg.AllowedOrigins, cfg.SendBuffer, cfg.MaxFileSize, log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"connections":  chatHub.Registry().Count(),
			"online_users": len(chatHub.Registry().OnlineIdentities()),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/chat", chatWS.Handle)

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.NewChatHandler(service).Register(api)
	handlers.NewFeedHandler(service).Register(api)
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	health := grpcserver.NewServer(log)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: router}
	errCh := make(chan error, 2)
	go func() {
		errCh <- health.Serve(grpcLis)
	}()
	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	health.SetServing(true)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-errCh:
		log.Error("server failed", "error", err)
	}

	health.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Warn("http shutdown", "error", shutdownErr)
	}
	// Hijacked websocket connections are not tracked by http.Server.
	chatHub.Shutdown()
	health.Stop()
	return err
}
