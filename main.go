package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/soheilhy/cmux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"messenger/internal/auth"
	"messenger/internal/chat"
	"messenger/internal/config"
	"messenger/internal/db"
	"messenger/internal/handlers"
	"messenger/internal/logger"
	"messenger/internal/middleware"
	"messenger/internal/observability"
	"messenger/internal/rabbitmq"
	"messenger/internal/realtime"
	"messenger/internal/repositories"
	"messenger/internal/storage"
	"messenger/internal/telemetry"
	"messenger/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Service.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Service.Name, cfg.Service.Env, cfg.Tracing.Endpoint, cfg.Tracing.Insecure)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	feed, err := newFeed(ctx, cfg, log)
	if err != nil {
		log.Fatalf("failed to start realtime feed: %v", err)
	}
	defer feed.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Service.Name, cfg.Service.Env, log)

	var opts []chat.Option
	if cfg.Storage.Enabled() {
		avatars, err := storage.NewAvatarStore(ctx, cfg.Storage, log)
		if err != nil {
			log.Fatalf("failed to init avatar storage: %v", err)
		}
		opts = append(opts, chat.WithAvatarResolver(avatars))
	}

	svc := chat.NewService(
		repositories.NewChatRepo(database),
		repositories.NewMessageRepo(database),
		repositories.NewProfileRepo(database),
		feed,
		log,
		opts...,
	)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	hub := ws.NewHub()

	router := newRouter(cfg, log, database, svc, verifier, hub, audit, publisher)
	httpServer := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.Service.ReadTimeout,
		WriteTimeout: cfg.Service.WriteTimeout,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(observability.GRPCServerMetricsUnaryInterceptor()),
	)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Service.Port))
	if err != nil {
		log.Fatalf("failed to start TCP listener: %v", err)
	}

	m := cmux.New(listener)
	grpcListener := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpListener := m.Match(cmux.HTTP1Fast())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) && gctx.Err() == nil {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) && gctx.Err() == nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := m.Serve(); err != nil && !errors.Is(err, net.ErrClosed) && gctx.Err() == nil {
			return fmt.Errorf("cannot start service: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		healthServer.Shutdown()
		hub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", zap.Error(err))
		}
		grpcServer.GracefulStop()
		m.Close()
		return nil
	})

	log.Info("messenger listening", zap.String("port", cfg.Service.Port), zap.String("realtime", cfg.Realtime.Driver))
	if err := g.Wait(); err != nil {
		log.Error("server error", zap.Error(err))
	}
}

func newFeed(ctx context.Context, cfg *config.Config, log *logger.Logger) (realtime.Feed, error) {
	switch cfg.Realtime.Driver {
	case config.RealtimeDriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return &closingFeed{Feed: realtime.NewRedisFeed(client, cfg.Realtime.Buffer, log), close: client.Close}, nil
	default:
		return realtime.NewPGFeed(cfg.Postgres.DSN, cfg.Realtime.Buffer, log)
	}
}

// closingFeed releases a resource the feed does not own once the feed is closed.
type closingFeed struct {
	realtime.Feed
	close func() error
}

func (f *closingFeed) Close() error {
	return errors.Join(f.Feed.Close(), f.close())
}

func newRouter(
	cfg *config.Config,
	log *logger.Logger,
	database *sqlx.DB,
	svc *chat.Service,
	verifier *auth.Verifier,
	hub *ws.Hub,
	audit *telemetry.AuditEmitter,
	publisher rabbitmq.Publisher,
) *gin.Engine {
	if cfg.Service.Env == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.Service.Name),
		middleware.RequestIDMiddleware(),
		middleware.LoggingMiddleware(log),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"ws_connections": hub.Count(),
			"watched_chats":  hub.Rooms(),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, audit, publisher, cfg.Service.DebugRoutes)

	api := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.NewChatHandler(svc, audit, log).Register(api)
	handlers.NewUserHandler(svc, log).Register(api)

	// websocket clients pass the token as a query parameter
	router.GET("/ws/chats/:chat_id", ws.NewChatWebSocketHandler(hub, svc, verifier, log).Handle)

	return router
}
