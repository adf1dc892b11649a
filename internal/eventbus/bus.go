package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/grachmannico95/invoice-proof/internal/metrics"
	"github.com/grachmannico95/invoice-proof/pkg/logger"
	"github.com/grachmannico95/invoice-proof/pkg/retry"
)

type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, consumer Consumer) error
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// subscription is one consumer's queue. Every subscription of an event type
// receives every event published for it.
type subscription struct {
	consumer Consumer
	ch       chan Event
}

type eventBus struct {
	subs          map[EventType][]*subscription
	mu            sync.RWMutex
	wg            sync.WaitGroup
	cancel        context.CancelFunc
	logger        *logger.Logger
	channelBuffer int
	maxRetries    int
	started       bool
	closed        bool
}

type Config struct {
	ChannelBuffer int
	MaxRetries    int
}

func New(log *logger.Logger, cfg *Config) EventBus {
	if cfg == nil {
		cfg = &Config{
			ChannelBuffer: 1000,
			MaxRetries:    5,
		}
	}

	return &eventBus{
		subs:          make(map[EventType][]*subscription),
		logger:        log,
		channelBuffer: cfg.ChannelBuffer,
		maxRetries:    cfg.MaxRetries,
	}
}

// Subscribe must be called before Start; later subscriptions get no workers.
func (eb *eventBus) Subscribe(eventType EventType, consumer Consumer) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subs[eventType] = append(eb.subs[eventType], &subscription{
		consumer: consumer,
		ch:       make(chan Event, eb.channelBuffer),
	})
	return nil
}

func (eb *eventBus) Start(ctx context.Context) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.started {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	eb.cancel = cancel

	for eventType, subs := range eb.subs {
		for _, sub := range subs {
			workerCount := sub.consumer.GetWorkerCount()
			eb.logger.Info(ctx, "Starting workers",
				"event_type", eventType,
				"worker_count", workerCount,
			)

			for i := 0; i < workerCount; i++ {
				eb.wg.Add(1)
				go eb.worker(workerCtx, sub, i)
			}
		}
	}

	eb.started = true
	eb.logger.Info(ctx, "Event bus started")

	return nil
}

// worker drains its queue until Shutdown closes it. Cancelling ctx only
// aborts retries in progress.
func (eb *eventBus) worker(ctx context.Context, sub *subscription, workerID int) {
	defer eb.wg.Done()

	for event := range sub.ch {
		eb.processEvent(ctx, event, sub.consumer, workerID)
	}
	eb.logger.Debug(ctx, "Queue closed, worker stopping", "worker_id", workerID)
}

func (eb *eventBus) processEvent(ctx context.Context, event Event, consumer Consumer, workerID int) {
	eventCtx := ctx
	if event.ID != "" {
		eventCtx = logger.WithTraceID(ctx, event.ID)
	}

	err := retry.Do(eventCtx, func() error {
		return consumer.Consume(eventCtx, event)
	},
		retry.WithMaxAttempts(eb.maxRetries),
		retry.WithBaseDelay(100*time.Millisecond),
		retry.WithMaxDelay(5*time.Second),
	)
	if err != nil {
		metrics.EventsFailedTotal.WithLabelValues(string(event.Type)).Inc()
		eb.logger.Error(eventCtx, "Failed to process event after retries",
			"event_id", event.ID,
			"event_type", event.Type,
			"worker_id", workerID,
			"error", err,
		)
		return
	}

	eb.logger.Debug(eventCtx, "Event processed",
		"event_id", event.ID,
		"event_type", event.Type,
		"worker_id", workerID,
	)
}

// Publish fans event out to every subscription without blocking. A full
// queue drops the event for that subscription only.
func (eb *eventBus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		eb.logger.Warn(ctx, "Event bus closed, event dropped",
			"event_type", event.Type,
			"event_id", event.ID,
		)
		return nil
	}

	subs := eb.subs[event.Type]
	if len(subs) == 0 {
		eb.logger.Debug(ctx, "No subscribers for event type",
			"event_type", event.Type,
			"event_id", event.ID,
		)
		return nil
	}

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			metrics.EventsDroppedTotal.WithLabelValues(string(event.Type)).Inc()
			eb.logger.Warn(ctx, "Event queue full, event dropped",
				"event_type", event.Type,
				"event_id", event.ID,
			)
		}
	}
	return nil
}

// Shutdown stops accepting events and waits for queued ones to be consumed.
// When ctx expires first, retries in progress are abandoned.
func (eb *eventBus) Shutdown(ctx context.Context) error {
	eb.logger.Info(ctx, "Shutting down event bus")

	eb.mu.Lock()
	if !eb.closed {
		eb.closed = true
		for _, subs := range eb.subs {
			for _, sub := range subs {
				close(sub.ch)
			}
		}
	}
	cancel := eb.cancel
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if cancel != nil {
			cancel()
		}
		eb.logger.Info(ctx, "Event bus shutdown complete")
		return nil
	case <-ctx.Done():
		if cancel != nil {
			cancel()
		}
		eb.logger.Warn(ctx, "Event bus shutdown timeout")
		return ctx.Err()
	}
}
