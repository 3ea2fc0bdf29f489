// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/crm-backend/internal/batcher"
	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/gateway"
	"github.com/unclebandit/crm-backend/internal/handler"
	"github.com/unclebandit/crm-backend/internal/logger"
	"github.com/unclebandit/crm-backend/internal/model"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("service", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("worker stopped with error")
	}
	log.Info().Msg("worker stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	q, err := queue.New(cfg.Queue, log)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer q.Close()

	// Repositories
	campaignRepo := &repository.CampaignRepository{DB: conn}
	customerRepo := &repository.CustomerRepository{DB: conn}
	logRepo := &repository.CommunicationLogRepository{DB: conn, Now: time.Now}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		CustomerRepo: customerRepo,
		LogRepo:      logRepo,
		Queue:        q,
		Log:          log,
	}

	var onFlushed func(context.Context, []model.DeliveryReceipt)
	if cfg.Delivery.AutoComplete {
		onFlushed = campaignService.CompleteDelivered
	}
	receipts := batcher.New(logRepo, batcher.Options{
		Size:      cfg.Batcher.Size,
		Timeout:   cfg.Batcher.Timeout,
		OnFlushed: onFlushed,
		Log:       log.With().Str("component", "batcher").Logger(),
	})

	vendorGateway := gateway.NewGateway(cfg.Vendor, &gateway.QueueEmitter{Queue: q}, log.With().Str("component", "vendor").Logger())

	h := &handler.QueueHandler{
		Ingest: &service.IngestService{
			UserRepo:     &repository.UserRepository{DB: conn},
			CustomerRepo: customerRepo,
			OrderRepo:    &repository.OrderRepository{DB: conn},
			Log:          log,
		},
		Worker:   service.NewDeliveryWorker(vendorGateway, log),
		Receipts: receipts,
		Log:      log,
	}

	metrics := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: metricsMux()}
	go func() {
		if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().
		Str("queue", cfg.Queue.Type).
		Int("concurrency", cfg.Worker.Concurrency).
		Int("batch_size", cfg.Batcher.Size).
		Bool("auto_complete", cfg.Delivery.AutoComplete).
		Msg("worker running, waiting for messages")

	consumeErr := consume(ctx, q, h.Routes(), cfg.Worker.Concurrency, log)

	// consumers are gone; persist whatever the batcher still holds
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := receipts.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Int("buffered", receipts.Len()).Msg("final receipt flush failed")
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
	return consumeErr
}

// consume runs concurrency consumers per topic until ctx is done or one of
// them fails, in which case the others are cancelled and the first error is
// returned.
func consume(ctx context.Context, q queue.Queue, routes map[string]queue.Handler, concurrency int, log zerolog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	for topic, h := range routes {
		for i := 0; i < concurrency; i++ {
			g.Go(func() error {
				if err := q.Consume(ctx, topic, h); err != nil {
					log.Error().Err(err).Str("topic", topic).Int("consumer", i).Msg("consumer stopped")
					return fmt.Errorf("consume %s: %w", topic, err)
				}
				return nil
			})
		}
	}
	return g.Wait()
}

func metricsMux() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}
