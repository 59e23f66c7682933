package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Guyuepp/go-comment-engine/domain"
	"github.com/Guyuepp/go-comment-engine/internal/avatar"
	"github.com/Guyuepp/go-comment-engine/internal/config"
	"github.com/Guyuepp/go-comment-engine/internal/mailer"
	"github.com/Guyuepp/go-comment-engine/internal/metrics"
	"github.com/Guyuepp/go-comment-engine/internal/repository"
	"github.com/Guyuepp/go-comment-engine/internal/repository/memory"
	mysqlRepo "github.com/Guyuepp/go-comment-engine/internal/repository/mysql"
	redisCache "github.com/Guyuepp/go-comment-engine/internal/repository/redis"
	"github.com/Guyuepp/go-comment-engine/internal/rest"
	"github.com/Guyuepp/go-comment-engine/internal/rest/middleware"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/comment"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/notify"
	"github.com/Guyuepp/go-comment-engine/internal/usecase/query"
	"github.com/Guyuepp/go-comment-engine/internal/workers"
)

const shutdownTimeout = 5 * time.Second

func serveCommand(envFile *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			return serve(cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address, overrides SERVER_ADDRESS")
	return cmd
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// prepare database
	db, closeDB, err := openDB(cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	// prepare cache
	listCache, idFilter, closeCache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		return err
	}
	defer closeCache()

	// metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	// mail
	var sender mailer.Sender
	if cfg.Mail.URL == "" {
		sender = mailer.NewNopSender()
	} else if sender, err = mailer.NewShoutrrrSender(cfg.Mail.URL, cfg.Mail.Timeout); err != nil {
		return err
	}
	mail, err := mailer.New(sender, cfg.Mail.SiteURL)
	if err != nil {
		return err
	}
	mailWorker := workers.NewMailDispatchWorker(mail, cfg.Mail.QueueSize)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		mailWorker.Start(ctx)
	}()

	// Comment相关的三层架构
	// 1. DB层
	commentDBRepo := mysqlRepo.NewCommentRepository(db)
	// 2. Repository协调层 (缓存可选)
	commentRepo := repository.NewCommentRepository(commentDBRepo, listCache)
	if idFilter != nil {
		// Prepare bloom filter
		if _, err := repository.WarmIDFilter(ctx, commentDBRepo, idFilter, repository.DefaultWarmBatch); err != nil {
			return fmt.Errorf("failed to warm comment id filter: %w", err)
		}
		commentRepo.WithIDFilter(idFilter)
	}
	userRepo := mysqlRepo.NewUserRepository(db)

	// Build service Layer
	querySvc := query.NewService(commentRepo, avatar.NewResolver())
	notifySvc := notify.NewService(userRepo, mailWorker, m)
	commentSvc := comment.NewService(commentRepo, querySvc, userRepo, notifySvc, m)

	// prepare gin
	route := gin.New()
	route.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(cfg.Server.AppOrigin),
		middleware.SetRequestContextWithTimeout(cfg.Server.Timeout),
	)

	// Register routes
	rest.NewCommentHandler(commentSvc).Register(route, middleware.TrustedUser(cfg.Server.AuthHeader))
	route.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	route.GET("/healthz", rest.Health(sqlDB))

	// Start Server
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           route,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logrus.Infof("Server is running on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown
	select {
	case <-ctx.Done():
		logrus.Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		stop()
		<-workerDone
		return fmt.Errorf("listen: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Waiting for mail worker to flush...")
	<-workerDone

	logrus.Info("Server exiting")
	return nil
}

// openCache picks the list cache driver. "none" returns a nil cache, which disables caching.
// The comment id filter needs redis and is nil for the other drivers.
func openCache(ctx context.Context, cfg config.CacheConfig) (domain.CommentCache, domain.IDFilter, func(), error) {
	switch cfg.Driver {
	case config.CacheDriverMemory:
		return memory.NewCommentCache(cfg.TTL), nil, func() {}, nil
	case config.CacheDriverNone:
		logrus.Warn("comment list cache disabled")
		return nil, nil, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, cfg.Port),
		Password: cfg.Pass,
		DB:       cfg.DB,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to open connection to cache: %w", err)
	}
	closeCache := func() {
		if err := client.Close(); err != nil {
			logrus.Errorf("got error when closing the cache connection: %v", err)
		}
	}
	return redisCache.NewCommentCache(client, cfg.TTL), redisCache.NewCommentBloom(client, cfg.BloomBits), closeCache, nil
}
