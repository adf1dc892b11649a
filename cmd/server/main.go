package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/config"
	"github.com/grachmannico95/invoice-proof/internal/document"
	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/eventbus"
	"github.com/grachmannico95/invoice-proof/internal/handler"
	"github.com/grachmannico95/invoice-proof/internal/invoice"
	"github.com/grachmannico95/invoice-proof/internal/ledger"
	"github.com/grachmannico95/invoice-proof/internal/pipeline"
	"github.com/grachmannico95/invoice-proof/internal/proof"
	"github.com/grachmannico95/invoice-proof/internal/server"
	"github.com/grachmannico95/invoice-proof/internal/signing"
	"github.com/grachmannico95/invoice-proof/internal/storage"
	"github.com/grachmannico95/invoice-proof/internal/storage/postgres"
	"github.com/grachmannico95/invoice-proof/internal/tracing"
	"github.com/grachmannico95/invoice-proof/internal/transaction"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const serviceName = "invoice-proof"

type ledgerServices interface {
	ledger.TokenService
	ledger.FileService
	ledger.ConsensusService
}

func main() {
	cfg := config.Load()

	log := logger.New(cfg.Logging.Level)
	defer log.Sync()

	ctx := context.Background()
	log.Info(ctx, "Starting application")

	shutdownTracing, err := tracing.Init(ctx, serviceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		log.Fatal(ctx, "Failed to initialize tracing",
			"error", err,
		)
	}

	checks := map[string]handler.Pinger{}

	var repo domain.Repository
	if cfg.Database.URL != "" {
		if err := postgres.Migrate(cfg.Database.URL, log); err != nil {
			log.Fatal(ctx, "Failed to apply migrations",
				"error", err,
			)
		}
		pool, err := postgres.Connect(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns), log)
		if err != nil {
			log.Fatal(ctx, "Failed to connect to database",
				"error", err,
			)
		}
		defer pool.Close()

		store := postgres.New(pool)
		checks["postgres"] = store
		repo = store
	} else {
		repo = storage.NewMemoryStore()
	}
	log.Info(ctx, "Repository initialized",
		"durable", cfg.Database.URL != "",
	)

	var documents document.Store
	if cfg.Documents.Bucket != "" {
		documents, err = document.NewS3Store(ctx, document.S3Config{
			Bucket:   cfg.Documents.Bucket,
			Region:   cfg.Documents.Region,
			Endpoint: cfg.Documents.Endpoint,
			Prefix:   cfg.Documents.Prefix,
		})
		if err != nil {
			log.Fatal(ctx, "Failed to initialize document store",
				"error", err,
			)
		}
	} else {
		documents = document.NewMemoryStore()
	}

	var services ledgerServices
	if cfg.Ledger.GatewayURL != "" {
		services = ledger.NewGateway(ledger.GatewayConfig{
			BaseURL:     cfg.Ledger.GatewayURL,
			APIKey:      cfg.Ledger.APIKey,
			CallTimeout: cfg.Ledger.CallTimeout,
			RateLimit:   cfg.Ledger.RateLimitRPS,
			RateBurst:   cfg.Ledger.RateLimitBurst,
		}, log)
	} else {
		log.Warn(ctx, "LEDGER_GATEWAY_URL is empty, using the in-memory ledger")
		services = ledger.NewMemory(cfg.Ledger.OperatorAccount)
	}

	keys, err := keyResolver(cfg.Signing)
	if err != nil {
		log.Fatal(ctx, "Failed to load signer keys",
			"error", err,
		)
	}

	preparer, err := transaction.NewPreparer(transaction.PreparerConfig{
		NodeAccountID: cfg.Signing.NodeAccountID,
		Network:       cfg.Ledger.Network,
		ValidDuration: cfg.Signing.TxValidFor,
		MaxFeeTinybar: cfg.Signing.MaxFeeTinybars,
	})
	if err != nil {
		log.Fatal(ctx, "Failed to initialize transaction preparer",
			"error", err,
		)
	}

	bus := eventbus.New(log, &eventbus.Config{
		ChannelBuffer: cfg.EventBus.ChannelBufferSize,
		MaxRetries:    cfg.Worker.MaxRetries,
	})

	hub := eventbus.NewHub(log)
	if err := bus.Subscribe(eventbus.EventTypeProofRecorded, hub); err != nil {
		log.Fatal(ctx, "Failed to subscribe proof hub",
			"error", err,
		)
	}

	var stream *eventbus.StreamConsumer
	if cfg.Redis.URL != "" {
		stream, err = eventbus.NewStreamConsumer(ctx, eventbus.StreamConfig{
			URL:         cfg.Redis.URL,
			Stream:      cfg.Redis.Stream,
			MaxLen:      cfg.Redis.StreamMaxLen,
			WorkerCount: cfg.Worker.PoolSize,
		}, log)
		if err != nil {
			log.Fatal(ctx, "Failed to connect to Redis",
				"error", err,
			)
		}
		if err := bus.Subscribe(eventbus.EventTypeProofRecorded, stream); err != nil {
			log.Fatal(ctx, "Failed to subscribe proof stream",
				"error", err,
			)
		}
		checks["redis"] = stream
	}

	if err := bus.Start(ctx); err != nil {
		log.Fatal(ctx, "Failed to start event bus",
			"error", err,
		)
	}
	log.Info(ctx, "Event bus initialized",
		"redis_stream", stream != nil,
	)

	sessions := signing.NewManager(cfg.Signing.Timeout, log)
	tokenization := pipeline.New(pipeline.Config{
		NFTTokenID:     cfg.Ledger.NFTTokenID,
		TopicID:        cfg.Ledger.TopicID,
		SigningTimeout: cfg.Signing.Timeout,
		Retry: pipeline.RetryPolicy{
			MaxAttempts: cfg.Ledger.MaxAttempts,
			BaseDelay:   cfg.Ledger.RetryBaseDelay,
			MaxDelay:    cfg.Ledger.RetryMaxDelay,
		},
	}, pipeline.Dependencies{
		Repo:      repo,
		Preparer:  preparer,
		Sessions:  sessions,
		Verifier:  signing.NewVerifier(keys, log),
		Tokens:    services,
		Files:     services,
		Consensus: services,
		Documents: documents,
		Publisher: bus,
		Logger:    log,
	})

	recovered, err := tokenization.RecoverStranded(ctx)
	if err != nil {
		log.Error(ctx, "Failed to recover stranded attempts",
			"error", err,
		)
	} else if recovered > 0 {
		log.Info(ctx, "Recovered stranded attempts",
			"count", recovered,
		)
	}

	invoices := invoice.NewService(repo, documents, log)
	sweeper, err := invoice.NewSweeper(invoices, cfg.Invoice.OverdueSweepSchedule, log)
	if err != nil {
		log.Fatal(ctx, "Failed to schedule overdue sweep",
			"error", err,
		)
	}
	sweeper.Start()
	log.Info(ctx, "Services initialized")

	invoiceHandler := handler.NewInvoiceHandler(invoices, proof.NewLedger(repo), log)
	tokenizationHandler := handler.NewTokenizationHandler(tokenization, log)
	healthHandler := handler.NewHealthHandler(checks)
	log.Info(ctx, "Handlers initialized")

	srv := server.New(cfg, log, invoiceHandler, tokenizationHandler, healthHandler, hub)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case sig := <-quit:
			log.Info(ctx, "Received shutdown signal",
				"signal", sig.String(),
			)
		case <-gCtx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	log.Info(ctx, "Application started successfully")

	if err := g.Wait(); err != nil {
		log.Error(ctx, "HTTP server stopped with error",
			"error", err,
		)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown in order:
	// 1. Stop scheduling sweeps and end signing waits; ledger steps in
	//    flight run to completion.
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Sweeper shutdown error",
			"error", err,
		)
	}
	if err := tokenization.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Pipeline shutdown error",
			"error", err,
		)
	}

	// 2. Drain proof events, then close their sinks.
	if err := bus.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Event bus shutdown error",
			"error", err,
		)
	}
	hub.Close()
	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Error(shutdownCtx, "Redis close error",
				"error", err,
			)
		}
	}

	// 3. Flush spans.
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "Tracing shutdown error",
			"error", err,
		)
	}

	log.Info(ctx, "Application stopped gracefully")
}

// keyResolver reads account keys from the Mirror Node when configured,
// otherwise from SIGNER_PUBLIC_KEYS.
func keyResolver(cfg config.SigningConfig) (signing.KeyResolver, error) {
	if cfg.MirrorNodeURL != "" {
		return signing.NewMirrorKeyResolver(signing.MirrorConfig{
			BaseURL:  cfg.MirrorNodeURL,
			Timeout:  5 * time.Second,
			CacheTTL: cfg.KeyCacheTTL,
		}), nil
	}

	static := signing.NewStaticKeyResolver()
	for account, encoded := range cfg.StaticKeys {
		raw, err := hex.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, domain.Errorf(domain.KindMalformedInput, "key for %s is %d bytes, want %d", account, len(raw), ed25519.PublicKeySize)
		}
		static.Register(account, ed25519.PublicKey(raw))
	}
	return static, nil
}
