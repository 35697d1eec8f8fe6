package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"settlepos/internal/infra"
	"settlepos/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueDrawer = "jobs:drawer"
	QueueEmail  = "jobs:email"
)

const (
	jobDrawerKick = "drawer_kick"
	jobLossNotice = "loss_notice"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler processes one job payload. A returned error means the handler gave
// up after its own retries and the job belongs in the DLQ.
type Handler interface {
	Process(ctx context.Context, raw json.RawMessage) error
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueDrawerKick asks the drawer sidecar to open the cash drawer.
func (d *Dispatcher) EnqueueDrawerKick(ctx context.Context, kick infra.DrawerKick) error {
	return d.enqueue(ctx, QueueDrawer, jobDrawerKick, kick)
}

// EnqueueLossNotice schedules the loss settlement email.
func (d *Dispatcher) EnqueueLossNotice(ctx context.Context, notice LossNotice) error {
	return d.enqueue(ctx, QueueEmail, jobLossNotice, notice)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// Pool runs size goroutines consuming every registered queue.
type Pool struct {
	rdb      *redis.Client
	size     int
	handlers map[string]Handler // keyed by job type
}

// NewPool builds a pool for the drawer and email workers. Either worker may
// be nil when its backend is not configured; its jobs are then dropped.
func NewPool(rdb *redis.Client, size int, drawer *DrawerWorker, email *EmailWorker) *Pool {
	if size <= 0 {
		size = 1
	}
	handlers := map[string]Handler{}
	if drawer != nil {
		handlers[jobDrawerKick] = drawer
	}
	if email != nil {
		handlers[jobLossNotice] = email
	}
	return &Pool{rdb: rdb, size: size, handlers: handlers}
}

// Run blocks until ctx is cancelled and every worker has returned.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, id)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", p.size)
	wg.Wait()
	return nil
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	queues := []string{QueueDrawer, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		metrics.ObserveJob(queue, "malformed")
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("no handler for job, dropping")
		metrics.ObserveJob(queue, "dropped")
		return
	}
	if err := h.Process(ctx, job.Payload); err != nil {
		SendToDLQ(ctx, p.rdb, queue, job.Type, job.Payload, err.Error(), maxAttempts)
		metrics.ObserveJob(queue, "dead_lettered")
		return
	}
	metrics.ObserveJob(queue, "ok")
}

const maxAttempts = 3

// retryBase is the first backoff step; tests shorten it.
var retryBase = time.Second

// withRetry calls fn up to attempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2×base.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, attempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * retryBase
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			// An open breaker stays open for longer than the whole schedule
			if errors.Is(err, infra.ErrCircuitOpen) {
				return err
			}
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
