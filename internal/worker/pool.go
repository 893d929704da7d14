// Package worker implements the fixed-size pool of goroutines that drain
// the in-memory queue and hand each task to the engine.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arcadehub/promptengine/internal/domain"
)

// Queue is the narrow contract a worker pool needs from the in-memory
// queue: a blocking pull and a way to stop accepting new pulls without
// interrupting a task already being processed.
type Queue interface {
	Dequeue(ctx context.Context) (domain.PendingTask, bool)
	Close()
}

// Processor runs one attempt to terminal state.
type Processor interface {
	ProcessAttempt(ctx context.Context, task domain.PendingTask) error
}

// Pool runs N workers, each looping: dequeue task, invoke the engine, loop.
// Shutdown closes the queue so no worker starts a new task, then waits up
// to a drain deadline for in-flight ProcessAttempt calls to finish on their
// own before returning; a task that does not finish in time is abandoned —
// its PendingTask row survives in storage for the next run to rehydrate.
type Pool struct {
	queue     Queue
	processor Processor
	n         int

	wg sync.WaitGroup
}

// New returns a Pool of n workers pulling from queue and running processor.
func New(queue Queue, processor Processor, n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{queue: queue, processor: processor, n: n}
}

// Start launches the worker goroutines against ctx. ctx governs the whole
// process lifetime, not an individual task; it is passed through to
// ProcessAttempt so LLM calls still honor their own per-call timeout.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		id := i
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runWorker(ctx, id)
		}()
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	for {
		task, ok := p.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if err := p.processor.ProcessAttempt(ctx, task); err != nil {
			log.Error().Err(err).Int("worker", id).Str("task_id", task.ID).Str("user_id", task.UserID).Msg("worker: ProcessAttempt failed")
		}
	}
}

// Shutdown stops the queue from yielding new tasks and waits up to
// drainDeadline for every worker's current task to finish.
func (p *Pool) Shutdown(drainDeadline time.Duration) {
	p.queue.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(drainDeadline):
		log.Warn().Dur("drain_deadline", drainDeadline).Msg("worker: drain deadline elapsed with workers still in flight")
	}
}
