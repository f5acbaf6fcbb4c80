package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"quizwrap/internal/cache"
	"quizwrap/internal/cleanup"
	"quizwrap/internal/config"
	"quizwrap/internal/logger"
	"quizwrap/internal/metrics"
	"quizwrap/internal/repository"
	"quizwrap/internal/service"
	"quizwrap/internal/transport/rest"
	"quizwrap/internal/transport/ws"
)

// @title Quiz Wrapper API
// @version 1.0
// @description Quiz proctoring wrapper: registration, focus-loss tracking and instructor review
// @host localhost:8080
// @BasePath /v1
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Log.Sync()

	if err := run(cfg); err != nil {
		logger.Log.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	metrics.Init()

	// Session store
	var sessions cache.SessionCache
	var tokens cache.TokenCache
	if cfg.Storage.Sessions == config.StoreRedis {
		rdb, err := connectRedis(ctx, cfg.Storage.RedisURI)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sessions = cache.NewSessionCache(rdb, cfg.Quiz.SessionTTL)
		tokens = cache.NewTokenCache(rdb)
	} else {
		sessions = cache.NewMemorySessionCache(cfg.Quiz.SessionTTL)
		tokens = cache.NewMemoryTokenCache()
	}

	// Record store
	var records repository.RecordRepo
	if cfg.Storage.Records == config.StoreMongo {
		mongoClient, err := connectMongo(ctx, cfg.Storage.MongoURI)
		if err != nil {
			return err
		}
		defer mongoClient.Disconnect(context.Background())
		records = repository.NewRecordRepo(mongoClient.Database(cfg.Storage.MongoDB))
	} else {
		records = repository.NewMemoryRecordRepo()
	}

	// Initialize WebSocket hub
	wsHub := ws.NewHub()

	// Initialize services
	authSvc := service.NewStaticAuthService(cfg.Instructor, tokens, cfg.Quiz.SessionTTL)
	recordSvc := service.NewRecordService(records)
	sessionSvc := service.NewSessionService(sessions, recordSvc, authSvc, cfg.Features.DuplicateCheck)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	recordSvc.SetBroadcaster(wsHub)
	sessionSvc.SetBroadcaster(wsHub)

	cleanup.NewCleaner(sessionSvc, cfg.Quiz.CleanupInterval).Start(ctx)

	router := rest.NewRouter(&rest.Container{
		AuthService:    authSvc,
		SessionService: sessionSvc,
		RecordService:  recordSvc,
		WSHub:          wsHub,
		FormURL:        cfg.Quiz.FormURL,
		Features:       cfg.Features,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("sessions", cfg.Storage.Sessions),
			zap.String("records", cfg.Storage.Records),
			zap.Bool("instructorReview", cfg.Features.InstructorReview),
			zap.Bool("duplicateCheck", cfg.Features.DuplicateCheck))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Log.Info("shutting down server")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Log.Info("server exited")
	return nil
}

func connectRedis(ctx context.Context, uri string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.HasPrefix(uri, "redis://") || strings.HasPrefix(uri, "rediss://") {
		parsed, err := redis.ParseURL(uri)
		if err != nil {
			return nil, fmt.Errorf("parse redis uri: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: uri}
	}

	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Log.Info("connected to redis", zap.String("addr", opts.Addr))
	return rdb, nil
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Log.Info("connected to mongo")
	return client, nil
}
