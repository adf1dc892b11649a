package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/domain"
	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/internal/tracing"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/grachmannico95/invoice-proof/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ledgerCall runs one logical ledger step. Unreachable is retried with the
// same request token. After a timeout the result is looked up by token
// first, and the call is resubmitted only when nothing landed. Other
// errors end the step at once.
func ledgerCall[T any](
	ctx context.Context,
	log *logger.Logger,
	policy RetryPolicy,
	step domain.Step,
	submit func(ctx context.Context) (T, error),
	lookup func(ctx context.Context) (T, error),
) (T, error) {
	var result T
	ambiguous := false

	err := retry.Do(ctx, func() error {
		if ambiguous {
			found, err := lookup(ctx)
			if err == nil {
				log.Info(ctx, "Ledger effect found after timeout", "step", step)
				result = found
				return nil
			}
			if !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			ambiguous = false
		}

		out, err := submit(ctx)
		if err == nil {
			result = out
			return nil
		}
		if errors.Is(err, domain.ErrTimeout) {
			ambiguous = true
		}
		return err
	},
		retry.WithMaxAttempts(policy.MaxAttempts),
		retry.WithBaseDelay(policy.BaseDelay),
		retry.WithMaxDelay(policy.MaxDelay),
		retry.WithRetryIf(retryableLedgerError),
		retry.WithOnRetry(func(attempt int, err error) {
			log.Warn(ctx, "Retrying ledger step",
				"step", step,
				"attempt", attempt,
				"error", err,
			)
		}),
	)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

func retryableLedgerError(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindUnreachable, domain.KindTimeout:
		return true
	default:
		return false
	}
}

// traceStep wraps fn in a span and records step metrics.
func traceStep(ctx context.Context, step domain.Step, fn func(ctx context.Context) error) error {
	ctx, span := tracing.Tracer("pipeline").Start(ctx, "pipeline."+string(step))
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice.id", logger.GetInvoiceID(ctx)),
		attribute.String("attempt.id", logger.GetAttemptID(ctx)),
	)

	start := time.Now()
	err := fn(ctx)
	metrics.PipelineStepDuration.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := domain.KindOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		metrics.PipelineStepsTotal.WithLabelValues(string(step), string(kind)).Inc()
		return err
	}

	span.SetStatus(codes.Ok, "")
	metrics.PipelineStepsTotal.WithLabelValues(string(step), "ok").Inc()
	return nil
}
