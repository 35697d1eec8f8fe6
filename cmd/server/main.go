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

	"settlepos/internal/config"
	"settlepos/internal/infra"
	"settlepos/internal/metrics"
	"settlepos/internal/middleware"
	"settlepos/internal/repository"
	"settlepos/internal/router"
	"settlepos/internal/service"
	"settlepos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: dev pretty, prod JSON
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid store timezone")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	events, err := infra.NewEventPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}
	defer events.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workers are wired here (composition root) so the pool has direct access
	// to the drawer sidecar and SMTP.
	drawer := infra.NewDrawerClient(cfg.DrawerSidecarURL, nil)
	mailer := infra.NewMailer(cfg)
	pool := worker.NewPool(rdb, cfg.WorkerPoolSize,
		worker.NewDrawerWorker(drawer),
		worker.NewEmailWorker(mailer, cfg.LossReportEmail))
	sweeper := worker.NewArchiveSweeper(worker.ArchiveSweeperConfig{
		Orders:   repository.NewOrderRepository(db),
		Events:   events,
		Grace:    cfg.ArchiveGrace(),
		Interval: time.Duration(cfg.ArchiveIntervalSecs) * time.Second,
	})

	deps := router.Deps{
		Serializer:   service.NewSerializer(),
		Events:       events,
		Jobs:         worker.NewDispatcher(rdb),
		Drawer:       drawer,
		Location:     loc,
		APILimiter:   middleware.NewIPRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst),
		LoginLimiter: middleware.LoginRateLimiter(),
	}

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router.New(cfg, db, rdb, deps),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: snapshot streams are long lived.
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		purge := time.NewTicker(5 * time.Minute)
		defer purge.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				metrics.SetActiveLanes(deps.Serializer.Active())
			case <-purge.C:
				deps.APILimiter.Purge()
				deps.LoginLimiter.Purge()
			}
		}
	})
	g.Go(func() error {
		log.Info().Msgf("settlepos listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("server exited")
}
