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

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/office-portal/config"
	appointmentHandler "github.com/jwalitptl/office-portal/internal/handler/appointment"
	authHandler "github.com/jwalitptl/office-portal/internal/handler/auth"
	"github.com/jwalitptl/office-portal/internal/handler/health"
	officeHandler "github.com/jwalitptl/office-portal/internal/handler/office"
	rbacHandler "github.com/jwalitptl/office-portal/internal/handler/rbac"
	requestHandler "github.com/jwalitptl/office-portal/internal/handler/request"
	userHandler "github.com/jwalitptl/office-portal/internal/handler/user"
	"github.com/jwalitptl/office-portal/internal/middleware"
	"github.com/jwalitptl/office-portal/internal/repository"
	"github.com/jwalitptl/office-portal/internal/repository/memstore"
	"github.com/jwalitptl/office-portal/internal/repository/postgres"
	"github.com/jwalitptl/office-portal/internal/router"
	appointmentService "github.com/jwalitptl/office-portal/internal/service/appointment"
	authService "github.com/jwalitptl/office-portal/internal/service/auth"
	"github.com/jwalitptl/office-portal/internal/service/authz"
	eventService "github.com/jwalitptl/office-portal/internal/service/event"
	officeService "github.com/jwalitptl/office-portal/internal/service/office"
	rbacService "github.com/jwalitptl/office-portal/internal/service/rbac"
	requestService "github.com/jwalitptl/office-portal/internal/service/request"
	userService "github.com/jwalitptl/office-portal/internal/service/user"
	"github.com/jwalitptl/office-portal/internal/worker"
	"github.com/jwalitptl/office-portal/pkg/auth"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging/redis"
	"github.com/jwalitptl/office-portal/pkg/metrics"
	"github.com/jwalitptl/office-portal/pkg/notify"
	"github.com/jwalitptl/office-portal/pkg/security"
	"github.com/jwalitptl/office-portal/pkg/telemetry"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	}, log)

	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	checks := map[string]health.Check{}
	repos, closeStore, err := openStore(ctx, cfg, m, checks)
	if err != nil {
		log.Fatal(err, "failed to open store")
	}
	defer closeStore()

	roleNames := cfg.RBAC.RoleNames
	guard := authz.NewGuard(repos.Users, repos.RBAC, repos.Offices, roleNames, log, m)
	scope := authz.NewScope(guard, repos.Offices, repos.Requests, repos.Appointments)
	events := eventService.NewEventService(repos.Outbox, log)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)

	rbacSvc := rbacService.NewService(repos.RBAC, guard, roleNames, log)
	authSvc := authService.NewService(repos.Users, repos.RBAC, guard, jwtSvc, security.NewBcryptHasher(cfg.Security.BcryptCost), roleNames, log)
	userSvc := userService.NewService(repos.Users, repos.RBAC, guard, scope, log)
	officeSvc := officeService.NewService(repos.Offices, repos.Users, guard, scope, log)
	requestSvc := requestService.NewService(repos.Requests, repos.Offices, guard, scope, events, log, m)
	appointmentSvc := appointmentService.NewService(repos.Appointments, guard, scope, events, log, m)

	if cfg.RBAC.Seed {
		if err := rbacSvc.Seed(ctx); err != nil {
			log.Fatal(err, "failed to seed rbac defaults")
		}
	}
	if admin, ok := cfg.RBAC.AdminRequest(); ok {
		if err := authSvc.EnsureAdmin(ctx, admin); err != nil {
			log.Fatal(err, "failed to bootstrap admin")
		}
	}

	// The in-memory outbox is invisible to a separate worker process, so the
	// relay runs here when the broker is reachable.
	if cfg.Database.Driver == config.DriverMemory {
		startLocalRelay(ctx, cfg, repos, log, m, checks)
	}

	var limit rate.Limit
	if cfg.RateLimit.Enabled {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwtSvc, guard),
		router.Handlers{
			Health:       health.NewHandler(checks, prometheus.DefaultGatherer),
			Auth:         authHandler.NewHandler(authSvc),
			Users:        userHandler.NewHandler(userSvc),
			RBAC:         rbacHandler.NewHandler(rbacSvc),
			Offices:      officeHandler.NewHandler(officeSvc),
			Requests:     requestHandler.NewHandler(requestSvc),
			Appointments: appointmentHandler.NewHandler(appointmentSvc),
		},
		log,
		router.RouterConfig{
			ServiceName:   cfg.Telemetry.ServiceName,
			RateLimit:     limit,
			RateBurst:     cfg.RateLimit.Burst,
			MetricsPrefix: cfg.Metrics.Namespace + "_http",
			Debug:         cfg.Server.Debug,
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Starting server", "addr", srv.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Server forced to shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error(err, "Failed to flush traces")
	}
	log.Info("Server exited")
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics, checks map[string]health.Check) (repository.Repositories, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		return memstore.New().Repositories(), func() {}, nil
	}

	db, err := postgres.NewDB(cfg.Database.ToPostgresConfig())
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return repository.Repositories{}, nil, err
		}
	}
	checks["database"] = pingDB(db)

	repos := postgres.NewRepositories(db,
		postgres.WithReadRetry(cfg.Database.ToReadRetry()),
		postgres.WithMetrics(m),
	)
	return repos, func() { db.Close() }, nil
}

func pingDB(db *sqlx.DB) health.Check {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func startLocalRelay(ctx context.Context, cfg *config.Config, repos repository.Repositories, log *logger.Logger, m *metrics.Metrics, checks map[string]health.Check) {
	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Warn("Broker unavailable, notifications stay in the outbox", "error", err.Error())
		return
	}
	checks["redis"] = broker.Ping

	var smtp *notify.SMTPConfig
	if cfg.Notify.SMTPEnabled() {
		c := cfg.Notify.ToSMTPConfig()
		smtp = &c
	}
	relay := worker.NewRelay(repos, broker, cfg.Outbox.ToWorkerConfig(cfg.Notify.Channel), worker.NewDispatcher(smtp, log), log, m)
	go func() {
		relay.Run(ctx)
		broker.Close()
	}()
}
