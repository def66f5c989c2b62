package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"pathfinder/internal/classify"
	detservice "pathfinder/internal/detection/service"
	detstore "pathfinder/internal/detection/store"
	"pathfinder/internal/ingest"
	"pathfinder/internal/ingest/cache"
	ingestservice "pathfinder/internal/ingest/service"
	ingeststore "pathfinder/internal/ingest/store"
	"pathfinder/internal/notify"
	"pathfinder/internal/notify/controlroom"
	"pathfinder/internal/platform/config"
	"pathfinder/internal/platform/httpserver"
	"pathfinder/internal/platform/logger"
	"pathfinder/internal/platform/metrics"
	"pathfinder/internal/platform/middleware"
	"pathfinder/internal/platform/postgres"
	"pathfinder/internal/platform/redis"
	"pathfinder/internal/processor"
	"pathfinder/internal/sweep"
)

const fingerprintTTL = 24 * time.Hour

// main wires dependencies and supervises the server plus its background
// workers. Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		events     ingeststore.EventStore
		states     detstore.StateStore
		detections detstore.DetectionStore
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		events = ingeststore.NewPostgresEventStore(db)
		states = detstore.NewPostgresStateStore(db)
		detections = detstore.NewPostgresDetectionStore(db)
		log.Info("using postgres stores")
	} else {
		events = ingeststore.NewInMemoryEventStore()
		states = detstore.NewInMemoryStateStore()
		detections = detstore.NewInMemoryDetectionStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	serviceOpts := []ingestservice.Option{ingestservice.WithMetrics(m)}
	if cfg.Redis.URL != "" {
		rc, err := redis.New(cfg.Redis)
		if err != nil {
			log.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		serviceOpts = append(serviceOpts,
			ingestservice.WithCache(cache.NewRedisCache(rc.Client, fingerprintTTL, log)))
		log.Info("fingerprint cache enabled")
	}

	classifier := classify.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout, "")
	notifier := notify.NewControlRoomNotifier(controlroom.New(cfg.ControlRoom), cfg.ControlRoom, log)
	dispatcher := notify.NewDispatcher(notifier, detections, log,
		notify.WithMetrics(m),
		notify.WithTimeout(cfg.ControlRoom.Timeout),
	)
	recorder := detservice.New(states, detections, log, detservice.WithMetrics(m))
	svc := ingest.NewService(events, classifier, recorder, dispatcher, cfg.Mode, log, serviceOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireWebhookToken(cfg.WebhookToken, log))
		ingest.NewHandler(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting pathfinder", "addr", cfg.Addr, "mode", string(cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if cfg.Mode == config.ModeDeferred {
		proc := processor.New(events, svc, log,
			processor.WithInterval(cfg.ProcessorPollInterval),
			processor.WithBatchSize(cfg.ProcessorBatchSize),
		)
		g.Go(func() error {
			err := proc.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	sweeper := sweep.New(events, cfg.EventRetention, cfg.PurgeInterval, log, sweep.WithMetrics(m))
	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
