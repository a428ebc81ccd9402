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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/office-portal/config"
	"github.com/jwalitptl/office-portal/internal/repository/postgres"
	"github.com/jwalitptl/office-portal/internal/worker"
	"github.com/jwalitptl/office-portal/pkg/logger"
	"github.com/jwalitptl/office-portal/pkg/messaging/redis"
	"github.com/jwalitptl/office-portal/pkg/metrics"
	"github.com/jwalitptl/office-portal/pkg/notify"
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

	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal(errors.New("worker requires the postgres driver"), "unsupported database driver", "driver", cfg.Database.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	db, err := postgres.NewDB(cfg.Database.ToPostgresConfig())
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	repos := postgres.NewRepositories(db,
		postgres.WithReadRetry(cfg.Database.ToReadRetry()),
		postgres.WithMetrics(m),
	)

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), log)
	if err != nil {
		log.Fatal(err, "failed to connect to Redis")
	}
	defer broker.Close()

	var smtp *notify.SMTPConfig
	if cfg.Notify.SMTPEnabled() {
		c := cfg.Notify.ToSMTPConfig()
		smtp = &c
	} else {
		log.Warn("SMTP not configured, notifications are only logged")
	}

	relay := worker.NewRelay(repos, broker, cfg.Outbox.ToWorkerConfig(cfg.Notify.Channel), worker.NewDispatcher(smtp, log), log, m)

	srv := healthServer(cfg.Server.Port+1, db.PingContext, broker.Ping)
	go func() {
		log.Info("Starting worker health server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health server failed")
		}
	}()

	log.Info("Starting outbox relay", "channel", cfg.Notify.Channel)
	relay.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server forced to shutdown")
	}
	log.Info("Worker exited")
}

func healthServer(port int, checks ...func(context.Context) error) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
