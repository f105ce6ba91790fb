package mcpclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Task is a unit of work run on a Worker goroutine
type Task func(ctx context.Context) (any, error)

type taskRecord struct {
	id         int
	task       Task
	ctx        context.Context
	enqueuedAt time.Time
	result     chan taskResult
}

type taskResult struct {
	value any
	err   error
}

// Worker runs submitted tasks one at a time on a single goroutine that it
// owns for its whole lifetime. Submit blocks the caller until the task
// finishes, so callers never see the asynchronous session underneath.
type Worker struct {
	name string

	mu      sync.Mutex
	queue   []*taskRecord
	seq     int
	stopped bool

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
}

// NewWorker starts a worker goroutine
func NewWorker(name string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		name:   name,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go w.run()

	log.Debug().Str("worker", name).Msg("Worker started")
	return w
}

// Context is cancelled when the worker stops. Long-lived resources
// opened by tasks should be bound to it rather than to a task context.
func (w *Worker) Context() context.Context {
	return w.ctx
}

// Submit queues task and waits for its result. It returns
// ErrWorkerStopped when the worker is stopped before the task runs.
func (w *Worker) Submit(ctx context.Context, task Task) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrWorkerStopped
	}
	w.seq++
	record := &taskRecord{
		id:         w.seq,
		task:       task,
		ctx:        ctx,
		enqueuedAt: time.Now(),
		result:     make(chan taskResult, 1),
	}
	w.queue = append(w.queue, record)
	queueSize := len(w.queue)
	w.mu.Unlock()

	log.Debug().
		Str("worker", w.name).
		Int("taskId", record.id).
		Int("queueSize", queueSize).
		Msg("Task enqueued")

	select {
	case w.wake <- struct{}{}:
	default:
	}

	select {
	case res := <-record.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop fails every queued task with ErrWorkerStopped, cancels the running
// task and waits for the goroutine to exit. It is idempotent.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		pending := w.queue
		w.queue = nil
		w.mu.Unlock()

		for _, record := range pending {
			record.result <- taskResult{err: ErrWorkerStopped}
		}

		w.cancel()
		<-w.done

		log.Debug().
			Str("worker", w.name).
			Int("cancelled", len(pending)).
			Msg("Worker stopped")
	})
}

func (w *Worker) run() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.wake:
		}

		for {
			record := w.next()
			if record == nil {
				break
			}
			w.execute(record)
		}
	}
}

func (w *Worker) next() *taskRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return nil
	}
	record := w.queue[0]
	w.queue = w.queue[1:]
	return record
}

func (w *Worker) execute(record *taskRecord) {
	// Caller already gave up.
	if err := record.ctx.Err(); err != nil {
		record.result <- taskResult{err: err}
		return
	}

	ctx, cancel := context.WithCancel(record.ctx)
	stop := context.AfterFunc(w.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	var res taskResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				res = taskResult{err: fmt.Errorf("worker %s: task panicked: %v", w.name, r)}
			}
		}()
		value, err := record.task(ctx)
		res = taskResult{value: value, err: err}
	}()

	log.Debug().
		Str("worker", w.name).
		Int("taskId", record.id).
		Dur("duration", time.Since(record.enqueuedAt)).
		Bool("success", res.err == nil).
		Msg("Task completed")

	record.result <- res
}
