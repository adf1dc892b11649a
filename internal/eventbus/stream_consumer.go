package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const DefaultProofStream = "proofs"

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

type StreamConfig struct {
	URL         string
	Stream      string
	MaxLen      int64
	WorkerCount int
}

// StreamConsumer appends every recorded proof to a Redis stream so
// read-side services can follow proofs without polling.
type StreamConsumer struct {
	client  streamAdder
	closer  func() error
	pinger  func(ctx context.Context) error
	stream  string
	maxLen  int64
	workers int
	logger  *logger.Logger
}

func NewStreamConsumer(ctx context.Context, cfg StreamConfig, log *logger.Logger) (*StreamConsumer, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	c := newStreamConsumer(client, cfg, log)
	c.closer = client.Close
	c.pinger = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	return c, nil
}

func newStreamConsumer(client streamAdder, cfg StreamConfig, log *logger.Logger) *StreamConsumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultProofStream
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	return &StreamConsumer{
		client:  client,
		stream:  cfg.Stream,
		maxLen:  cfg.MaxLen,
		workers: cfg.WorkerCount,
		logger:  log,
	}
}

func (c *StreamConsumer) Consume(ctx context.Context, event Event) error {
	payload, ok := event.Payload.(ProofRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for %s", event.Payload, event.Type)
	}
	proof := payload.Proof

	body, err := json.Marshal(proof)
	if err != nil {
		return fmt.Errorf("marshal proof: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: c.stream,
		ID:     "*",
		Values: map[string]interface{}{
			"event_id":              event.ID,
			"invoice_id":            proof.InvoiceID,
			"attempt_id":            proof.AttemptID,
			"kind":                  string(proof.Kind),
			"ledger_transaction_id": proof.LedgerTransactionID,
			"timestamp":             proof.Timestamp.UTC().Format(time.RFC3339Nano),
			"proof":                 string(body),
		},
	}
	if c.maxLen > 0 {
		args.MaxLen = c.maxLen
		args.Approx = true
	}

	id, err := c.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", c.stream, err)
	}

	metrics.ProofsPublishedTotal.WithLabelValues("redis", string(proof.Kind)).Inc()
	c.logger.Debug(logger.WithInvoiceID(ctx, proof.InvoiceID), "Proof appended to stream",
		"stream", c.stream,
		"stream_id", id,
		"kind", proof.Kind,
	)
	return nil
}

func (c *StreamConsumer) GetWorkerCount() int {
	return c.workers
}

// Ping reports whether Redis is reachable, for readiness checks.
func (c *StreamConsumer) Ping(ctx context.Context) error {
	if c.pinger == nil {
		return nil
	}
	return c.pinger(ctx)
}

func (c *StreamConsumer) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}
