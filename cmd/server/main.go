// cmd/server/main.go
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

	"github.com/unclebandit/crm-backend/internal/config"
	"github.com/unclebandit/crm-backend/internal/controller"
	"github.com/unclebandit/crm-backend/internal/db"
	"github.com/unclebandit/crm-backend/internal/logger"
	"github.com/unclebandit/crm-backend/internal/queue"
	"github.com/unclebandit/crm-backend/internal/repository"
	"github.com/unclebandit/crm-backend/internal/service"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("service", "server").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	q, err := queue.New(cfg.Queue, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to queue")
	}
	defer q.Close()
	if cfg.Queue.Type == "memory" {
		log.Warn().Msg("memory queue is process-local; no worker will see published messages")
	}

	campaignRepo := &repository.CampaignRepository{DB: conn}
	segmentRepo := &repository.SegmentRepository{DB: conn}
	customerRepo := &repository.CustomerRepository{DB: conn}
	logRepo := &repository.CommunicationLogRepository{DB: conn, Now: time.Now}

	campaignService := &service.CampaignService{
		CampaignRepo: campaignRepo,
		SegmentRepo:  segmentRepo,
		CustomerRepo: customerRepo,
		LogRepo:      logRepo,
		Queue:        q,
		RequireDraft: cfg.Dispatch.RequireDraft,
		Log:          log,
	}
	segmentService := &service.SegmentService{
		SegmentRepo:  segmentRepo,
		CustomerRepo: customerRepo,
		Log:          log,
	}

	router := controller.NewRouter(
		&controller.CampaignController{CampaignService: campaignService},
		&controller.SegmentController{SegmentService: segmentService},
		&controller.IngestController{Queue: q},
		cfg.HTTP.CORSOrigins,
		log,
	)

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}
