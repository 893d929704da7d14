// Package queue implements the in-memory work queue that hands admitted
// tasks off to the worker pool, backed by a durable mirror in storage so its
// contents survive a crash or restart. The durable row is written by the
// admission front in the same transaction as the session flip to INFLIGHT;
// this package only owns the in-memory channel and the startup rehydration
// from that mirror.
package queue

import (
	"context"
	"errors"

	"github.com/arcadehub/promptengine/internal/domain"
)

// ErrFull is returned by Push when the queue has reached queue_max_length.
var ErrFull = errors.New("queue: full")

// ErrClosed is returned by Push after Close has been called.
var ErrClosed = errors.New("queue: closed")

// Store is the narrow durable-mirror contract the queue needs on startup.
type Store interface {
	ListPendingTasksOrdered(ctx context.Context) ([]domain.PendingTask, error)
}

// Persistent is a bounded FIFO of PendingTask, backed by a Go channel.
type Persistent struct {
	ch     chan domain.PendingTask
	closed chan struct{}
}

// New returns a Persistent queue with the given bound.
func New(maxLength int) *Persistent {
	return &Persistent{
		ch:     make(chan domain.PendingTask, maxLength),
		closed: make(chan struct{}),
	}
}

// RestoreFromStorage rehydrates the in-memory channel from the durable
// mirror on process startup, in ascending enqueued_at order (the same
// ordering the mirror rows were written in).
func (p *Persistent) RestoreFromStorage(ctx context.Context, s Store) error {
	tasks, err := s.ListPendingTasksOrdered(ctx)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if err := p.Push(t); err != nil {
			return err
		}
	}
	return nil
}

// Push appends an already-persisted task to the in-memory queue. It returns
// ErrFull without blocking if the channel is at capacity, and ErrClosed if
// Close has been called.
func (p *Persistent) Push(task domain.PendingTask) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.ch <- task:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue blocks until a task is available, ctx is canceled, or the queue
// is closed. The durable mirror row is NOT deleted here; that remains the
// engine's responsibility after the attempt reaches a terminal state.
func (p *Persistent) Dequeue(ctx context.Context) (domain.PendingTask, bool) {
	select {
	case t := <-p.ch:
		return t, true
	case <-ctx.Done():
		return domain.PendingTask{}, false
	case <-p.closed:
		// Drain whatever remains buffered before reporting closed.
		select {
		case t := <-p.ch:
			return t, true
		default:
			return domain.PendingTask{}, false
		}
	}
}

// Close stops accepting new pushes. Buffered tasks remain dequeuable until
// drained.
func (p *Persistent) Close() {
	select {
	case <-p.closed:
	default:
		close(p.closed)
	}
}

// Len reports the current number of buffered tasks, used for the "queued,
// approx N ahead" admission reply.
func (p *Persistent) Len() int {
	return len(p.ch)
}

// Drain removes every currently buffered task without blocking and reports
// how many were dropped. Used by the admin queue-clear operation to keep the
// in-memory queue in sync with the durable mirror it was just cleared from.
func (p *Persistent) Drain() int {
	n := 0
	for {
		select {
		case <-p.ch:
			n++
		default:
			return n
		}
	}
}
