package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sos-dispatch-api/api/swagger"
	"github.com/noah-isme/sos-dispatch-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sos-dispatch-api/internal/middleware"
	"github.com/noah-isme/sos-dispatch-api/internal/repository"
	"github.com/noah-isme/sos-dispatch-api/internal/service"
	"github.com/noah-isme/sos-dispatch-api/pkg/cache"
	"github.com/noah-isme/sos-dispatch-api/pkg/config"
	"github.com/noah-isme/sos-dispatch-api/pkg/jobs"
	"github.com/noah-isme/sos-dispatch-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sos-dispatch-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sos-dispatch-api/pkg/middleware/requestid"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand starts the HTTP API.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API using the store selected by STORE_DRIVER.

The memory driver keeps state in process and can be preloaded with SEED_FILE.
The sqlite driver migrates its database file on start; run "migrate" first for postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, rootOpts.cfg, rootOpts.log)
		},
	}
}

// app holds everything built for a running server so it can be torn down in order.
type app struct {
	router  *gin.Engine
	stores  *stores
	redis   *redis.Client
	queue   *jobs.Queue
	metrics *service.MetricsService
}

func (a *app) Close() {
	if a.queue != nil {
		a.queue.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.stores != nil {
		_ = a.stores.Close()
	}
}

func runServe(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	a, err := buildApp(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*app, error) {
	a := &app{metrics: service.NewMetricsService()}

	st, err := openStores(ctx, cfg, logr)
	if err != nil {
		return nil, err
	}
	a.stores = st

	checks := map[string]handler.ReadinessCheck{"store": st.ping}

	requests := service.NewInstrumentedHelpRequestStore(st.requests, a.metrics)
	helpOpts := []service.HelpRequestServiceOption{
		service.WithIdentityStore(st.users),
		service.WithTransitionMetrics(a.metrics),
	}
	var userOpts []service.UserServiceOption

	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.redis = client
		checks["cache"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		cacheRepo := repository.NewCacheRepository(client, "sos")
		pending := service.NewCacheService(cacheRepo, cfg.Cache.PendingTTL, logr, service.WithCacheMetrics(a.metrics))
		helpOpts = append(helpOpts, service.WithPendingCache(pending))
	}

	if cfg.Audit.Enabled {
		auditSvc := service.NewAuditService(nil, logr)
		if st.db != nil {
			worker := service.NewAuditWorker(repository.NewAuditRepository(st.db), logr)
			a.queue = jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{
				Workers:    cfg.Audit.Workers,
				MaxRetries: cfg.Audit.Retries,
				RetryDelay: cfg.Audit.RetryDelay,
				Logger:     logr,
			})
			a.queue.Start(context.WithoutCancel(ctx))
			auditSvc = service.NewAuditService(a.queue, logr)
		}
		helpOpts = append(helpOpts, service.WithAuditRecorder(auditSvc))
		userOpts = append(userOpts, service.WithUserAudit(auditSvc))
	}

	validate := validator.New()
	helpOpts = append(helpOpts, service.WithHelpRequestValidator(validate))
	helpSvc := service.NewHelpRequestService(requests, st.users, logr, helpOpts...)
	userSvc := service.NewUserService(st.users, validate, logr, userOpts...)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(a.metrics, "/metrics", "/health", "/ready"))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		HelpRequests: handler.NewHelpRequestHandler(helpSvc),
		Users:        handler.NewUserHandler(userSvc),
		Metrics:      handler.NewMetricsHandler(a.metrics, checks),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	a.router = r
	return a, nil
}
