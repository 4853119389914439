package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/password-policy/internal/config"
	"github.com/jwalitptl/password-policy/internal/handler"
	policyHandler "github.com/jwalitptl/password-policy/internal/handler/policy"
	"github.com/jwalitptl/password-policy/internal/middleware"
	"github.com/jwalitptl/password-policy/internal/policy"
	"github.com/jwalitptl/password-policy/internal/router"
	policyService "github.com/jwalitptl/password-policy/internal/service/policy"
	"github.com/jwalitptl/password-policy/internal/worker"
	"github.com/jwalitptl/password-policy/pkg/auth"
	"github.com/jwalitptl/password-policy/pkg/logger"
	"github.com/jwalitptl/password-policy/pkg/messaging/redis"
	"github.com/jwalitptl/password-policy/pkg/metrics"
)

func main() {
	// Load bootstrap settings from the environment
	boot, err := config.LoadBootstrap()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read environment")
	}

	// Bootstrap logger until the config file is read
	appLogger := logger.NewLogger(config.LogConfig{}.LoggerConfig(boot))
	log.Logger = appLogger.Zerolog()

	// Load configuration
	cfg, watcher, err := config.NewWatcher(boot.ConfigFile, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger = logger.NewLogger(cfg.Log.LoggerConfig(boot))
	log.Logger = appLogger.Zerolog()
	watcher.SetLogger(log.Logger)

	instanceID := boot.InstanceID
	if instanceID == "" {
		instanceID = uuid.New().String()
	}
	log.Info().Str("instance_id", instanceID).Msg("starting password policy service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg, cfg.Monitoring.Namespace)

	engine := policy.NewWithConfig(cfg.Policy)

	// Initialize Redis message broker
	var (
		publisher    policyService.Publisher
		broker       *redis.RedisBroker
		dependencies = map[string]handler.Pinger{}
	)
	if cfg.Redis.Enabled {
		broker, err = redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), log.Logger, m)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
		publisher = broker
		dependencies["redis"] = broker
	}

	svc := policyService.NewService(engine, publisher, m, appLogger, policyService.Config{
		InstanceID: instanceID,
		Channel:    cfg.Redis.Channel,
	})

	if broker != nil {
		policySync := worker.NewPolicySync(broker, svc, worker.PolicySyncConfig{
			Channel: cfg.Redis.Channel,
		}, appLogger)
		go policySync.Start(ctx)
	}

	// Reload the policy when the config file changes
	watcher.Start(func(p policy.Config) {
		if err := svc.ApplyPolicy(p, policyService.SourceFile); err != nil {
			log.Error().Err(err).Msg("failed to apply reloaded policy")
		}
	})

	// Initialize middleware
	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.JWTSecret != "" {
		jwtSvc, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize token verification")
		}
		authMiddleware = middleware.NewAuthMiddleware(jwtSvc)
	} else {
		log.Warn().Msg("auth.jwt_secret is empty, admin policy routes are disabled")
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.Security.AllowedOrigins

	sizeLimit := middleware.DefaultSizeLimitConfig()
	sizeLimit.MaxBodySize = cfg.Server.MaxBodyBytes

	routerConfig := router.RouterConfig{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		RateClientTTL:    cfg.RateLimit.ClientTTL,
		CORSConfig:       cors,
		SizeLimit:        sizeLimit,
		Security:         middleware.DefaultSecurityConfig(),
		AdminRole:        cfg.Auth.AdminRole,
	}
	if cfg.Monitoring.PrometheusEnabled {
		routerConfig.Metrics = m
		routerConfig.MetricsPath = cfg.Monitoring.MetricsPath
	}

	// Setup router
	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(
		authMiddleware,
		policyHandler.NewHandler(svc),
		handler.NewHandler(reg, dependencies),
		routerConfig,
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server exited properly")
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 5 * time.Second
	}
	return d
}
