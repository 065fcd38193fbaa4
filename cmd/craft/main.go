package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	adhandler "github.com/aliskhannn/craft/internal/api/handlers/ad"
	"github.com/aliskhannn/craft/internal/api/router"
	"github.com/aliskhannn/craft/internal/api/server"
	"github.com/aliskhannn/craft/internal/config"
	"github.com/aliskhannn/craft/internal/httpclient"
	"github.com/aliskhannn/craft/internal/infra/kafka/consumer"
	"github.com/aliskhannn/craft/internal/infra/kafka/producer"
	admsg "github.com/aliskhannn/craft/internal/kafka/handlers/ad"
	"github.com/aliskhannn/craft/internal/openai"
	"github.com/aliskhannn/craft/internal/pipeline"
	"github.com/aliskhannn/craft/internal/processor"
	adrepo "github.com/aliskhannn/craft/internal/repository/ad"
	adsvc "github.com/aliskhannn/craft/internal/service/ad"
	"github.com/aliskhannn/craft/internal/storage/file"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	// Connect to PostgreSQL (master and slaves).
	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Retry strategy for Kafka and vendor calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize object storage (MinIO).
	storage, err := file.NewStorage(ctx, file.Options{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		BucketName:    cfg.Storage.BucketName,
		UseSSL:        cfg.Storage.UseSSL,
		Region:        cfg.Storage.Region,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// Model provider client shared by the research, copy and image stages.
	ai := openai.New(openai.Options{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.OpenAI.PreferIPv4,
			Timeout:    cfg.OpenAI.HTTPTimeout,
		}),
	})

	imageProcessor := processor.New(storage)

	gen := pipeline.New(ai, ai, imageProcessor, storage, pipeline.Options{
		Models: pipeline.Models{
			Research: cfg.OpenAI.ResearchModel,
			Copy:     cfg.OpenAI.CopyModel,
			Image:    cfg.OpenAI.ImageModel,
		},
		StageTimeout:  cfg.Pipeline.StageTimeout,
		MaxImageBytes: cfg.Pipeline.MaxImageBytes,
		Retry:         strategy,
		OnTransition: func(id uuid.UUID, from, to pipeline.Stage) {
			zlog.Logger.Debug().
				Str("request_id", id.String()).
				Str("from", string(from)).
				Str("to", string(to)).
				Msg("stage transition")
		},
	})

	// Initialize repository, producer and service layer.
	repo := adrepo.NewRepository(db)
	p := producer.New(&cfg.Kafka, strategy)
	service := adsvc.NewService(gen, p, repo, storage, imageProcessor)

	// Kafka consumer that builds the ad library from generated ad events.
	// Events it cannot record are parked on the dead letter topic.
	dlq := producer.NewDeadLetter(&cfg.Kafka, strategy)
	c := consumer.New(&cfg.Kafka, strategy, admsg.NewGeneratedHandler(service), dlq)

	// HTTP server.
	h := adhandler.NewHandler(service, cfg.Server.MaxBodyBytes)
	s := server.New(cfg.Server.HTTPPort, router.Setup(h), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.Consume(gctx)
	})

	g.Go(func() error {
		zlog.Logger.Info().Str("addr", cfg.Server.HTTPPort).Msg("starting server")
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Logger.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := s.Shutdown(shutdownCtx); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
		}
		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		zlog.Logger.Error().Err(err).Msg("service stopped with error")
	}

	// Let background event publishes finish before the producer is closed.
	service.Wait()

	// Close master and slave databases.
	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	// Close Kafka producer and consumer clients.
	if err := p.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer client")
	}
	if err := dlq.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka dead letter client")
	}
	if err := c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}
}
