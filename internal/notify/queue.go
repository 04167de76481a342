package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// QueueConfig sizes the background delivery pool.
type QueueConfig struct {
	Workers     int
	Size        int           // buffered messages before Enqueue starts dropping
	MaxAttempts int           // total tries per message, including the first
	Timeout     time.Duration // per attempt
	Backoff     time.Duration // pause between attempts
}

// DefaultQueueConfig matches the configuration defaults.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Workers:     4,
		Size:        256,
		MaxAttempts: 2,
		Timeout:     10 * time.Second,
		Backoff:     500 * time.Millisecond,
	}
}

// OutcomeRecorder receives one call per finished message; metrics.Metrics
// satisfies it.
type OutcomeRecorder interface {
	NotificationSent(channel, outcome string)
}

// Queue decouples notification delivery from request handling. Enqueue never
// blocks; a fixed set of workers delivers each message with a bounded number
// of attempts, each under its own timeout.
type Queue struct {
	dispatcher Dispatcher
	config     QueueConfig
	metrics    OutcomeRecorder
	logger     *slog.Logger

	jobs      chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
}

func NewQueue(d Dispatcher, cfg QueueConfig, metrics OutcomeRecorder, logger *slog.Logger) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Queue{
		dispatcher: d,
		config:     cfg,
		metrics:    metrics,
		logger:     logger.With(slog.String("component", "notify_queue")),
		jobs:       make(chan Message, cfg.Size),
		done:       make(chan struct{}),
	}
}

// Start launches the workers. Calling it more than once is harmless.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		q.logger.Info("starting notification workers", slog.Int("workers", q.config.Workers))
		for i := 0; i < q.config.Workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// Stop refuses new messages, lets workers drain what is already buffered and
// waits for them to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.logger.Info("stopping notification workers")
		q.stopped.Store(true)
		close(q.done)
		q.wg.Wait()
	})
}

// Enqueue hands msg to the workers. It returns false without blocking when
// the queue is stopped or full.
func (q *Queue) Enqueue(msg Message) bool {
	if q.stopped.Load() {
		return false
	}
	select {
	case q.jobs <- msg:
		return true
	default:
		q.logger.Warn("notification queue full, dropping message", slog.String("channel", string(msg.Channel)))
		q.record(msg.Channel, "dropped")
		return false
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case msg := <-q.jobs:
			q.deliver(msg)
		case <-q.done:
			for {
				select {
				case msg := <-q.jobs:
					q.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) deliver(msg Message) {
	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), q.config.Timeout)
		ok := Send(ctx, q.dispatcher, msg)
		cancel()

		if ok {
			q.record(msg.Channel, "sent")
			return
		}

		q.logger.Warn("notification attempt failed",
			slog.String("channel", string(msg.Channel)),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", q.config.MaxAttempts),
		)
		if attempt < q.config.MaxAttempts && q.config.Backoff > 0 {
			time.Sleep(q.config.Backoff)
		}
	}
	q.record(msg.Channel, "failed")
}

func (q *Queue) record(ch Channel, outcome string) {
	if q.metrics != nil {
		q.metrics.NotificationSent(string(ch), outcome)
	}
}
