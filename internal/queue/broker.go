package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/applyflow/applyflow/internal/entities"
	"github.com/applyflow/applyflow/internal/logger"
	"github.com/applyflow/applyflow/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Handler processes one delivered task. Delivery is at-least-once: a handler
// may see the same payload again after a crash or a failure, so it must be
// safely re-executable for the same input.
type Handler func(ctx context.Context, payload []byte) error

type taskRepository interface {
	Add(ctx context.Context, queue string, payload []byte) error
	ClaimNext(ctx context.Context, queue string, now time.Time) (*entities.Task, error)
	MarkDone(ctx context.Context, id int) error
	Release(ctx context.Context, id int, attempts int, nextRunAt time.Time) error
	MarkDead(ctx context.Context, id int, attempts int) error
	ResetRunning(ctx context.Context) (int64, error)
}

type consumer struct {
	handler     Handler
	concurrency int
}

// Broker is a durable task queue on top of the relational store. Each
// registered queue gets its own claim loop bounded by its concurrency cap.
type Broker struct {
	tasks        taskRepository
	consumers    map[string]consumer
	pollInterval time.Duration
	backoffBase  time.Duration
	backoffMax   time.Duration
	maxAttempts  int
	wg           sync.WaitGroup
}

func NewBroker(tasks taskRepository) *Broker {
	return &Broker{
		tasks:        tasks,
		consumers:    map[string]consumer{},
		pollInterval: 250 * time.Millisecond,
		backoffBase:  30 * time.Second,
		backoffMax:   time.Hour,
		maxAttempts:  10,
	}
}

func (b *Broker) WithPollInterval(interval time.Duration) *Broker {
	b.pollInterval = interval
	return b
}

func (b *Broker) WithBackoff(base time.Duration, max time.Duration, maxAttempts int) *Broker {
	b.backoffBase = base
	b.backoffMax = max
	b.maxAttempts = maxAttempts
	return b
}

// Enqueue persists a task and returns once it is durable. A nil payload is
// stored as an empty JSON object.
func (b *Broker) Enqueue(ctx context.Context, queue string, payload any) error {
	raw := []byte("{}")
	if payload != nil {
		var err error
		if raw, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal payload for queue %v: %w", queue, err)
		}
	}

	if err := b.tasks.Add(ctx, queue, raw); err != nil {
		return fmt.Errorf("failed to enqueue task to %v: %w", queue, err)
	}

	metrics.TasksEnqueued.WithLabelValues(queue).Inc()
	return nil
}

func (b *Broker) Register(queue string, concurrency int, handler Handler) error {
	if concurrency <= 0 {
		return errors.New("concurrency must be greater than zero")
	}
	if _, exists := b.consumers[queue]; exists {
		return fmt.Errorf("queue %v already registered", queue)
	}
	b.consumers[queue] = consumer{handler: handler, concurrency: concurrency}
	return nil
}

// Run requeues tasks stranded by a previous crash, then consumes every
// registered queue until the context is cancelled.
func (b *Broker) Run(ctx context.Context) error {
	requeued, err := b.tasks.ResetRunning(ctx)
	if err != nil {
		return fmt.Errorf("failed to requeue stranded tasks: %w", err)
	}
	if requeued > 0 {
		log.Infof("requeued %v stranded tasks for redelivery", requeued)
	}

	for queue, c := range b.consumers {
		b.wg.Add(1)
		go b.consume(ctx, queue, c)
	}

	log.Infof("broker started with %v queues", len(b.consumers))
	<-ctx.Done()
	b.wg.Wait()
	return nil
}

func (b *Broker) consume(ctx context.Context, queue string, c consumer) {
	defer b.wg.Done()

	slots := make(chan struct{}, c.concurrency)
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		b.dispatchRunnable(ctx, queue, c.handler, slots, &inflight)
	}
}

// dispatchRunnable claims and dispatches tasks until the queue drains or its
// concurrency cap is reached.
func (b *Broker) dispatchRunnable(ctx context.Context, queue string, handler Handler,
	slots chan struct{}, inflight *sync.WaitGroup) {

	for {
		select {
		case slots <- struct{}{}:
		default:
			return
		}

		task, ok := b.claim(ctx, queue)
		if !ok {
			<-slots
			return
		}

		inflight.Add(1)
		go func(task *entities.Task) {
			defer inflight.Done()
			defer func() { <-slots }()
			b.process(ctx, queue, handler, task)
		}(task)
	}
}

func (b *Broker) claim(ctx context.Context, queue string) (*entities.Task, bool) {
	task, err := b.tasks.ClaimNext(ctx, queue, time.Now())
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to claim task from %v: %v", queue, err)
		return nil, false
	}
	if task == nil {
		return nil, false
	}
	return task, true
}

func (b *Broker) process(ctx context.Context, queue string, handler Handler, task *entities.Task) {
	start := time.Now()
	err := handler(ctx, task.Payload)
	metrics.TaskDuration.WithLabelValues(queue).Observe(time.Since(start).Seconds())

	if err == nil {
		if dbErr := b.tasks.MarkDone(ctx, task.ID); dbErr != nil {
			// The work is already done; on restart the task is redelivered
			// and the handler's idempotency absorbs the duplicate.
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to mark task %v done: %v", task.ID, dbErr)
		}
		metrics.TasksProcessed.WithLabelValues(queue, "ok").Inc()
		return
	}

	attempts := task.Attempts + 1
	log.Warnf("task %v on %v failed (attempt %v): %v", task.ID, queue, attempts, err)

	if attempts >= b.maxAttempts {
		metrics.TasksProcessed.WithLabelValues(queue, "dead").Inc()
		if dbErr := b.tasks.MarkDead(ctx, task.ID, attempts); dbErr != nil {
			log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
				Errorf("failed to mark task %v dead: %v", task.ID, dbErr)
		}
		return
	}

	metrics.TasksProcessed.WithLabelValues(queue, "retry").Inc()
	if dbErr := b.tasks.Release(ctx, task.ID, attempts, time.Now().Add(b.backoff(attempts))); dbErr != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeDb).
			Errorf("failed to release task %v: %v", task.ID, dbErr)
	}
}

func (b *Broker) backoff(attempts int) time.Duration {
	delay := b.backoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= b.backoffMax {
			return b.backoffMax
		}
	}
	return delay
}
