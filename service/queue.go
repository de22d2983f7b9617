package service

import (
	"errors"
	"sync"

	"sealed-ballot/models"
)

var (
	ErrQueueFull = errors.New("operation queue is full")
	ErrClosed    = errors.New("election service is closed")
)

// operation is one mutation waiting for the writer. decide runs on the writer
// goroutine under the read lock and returns the event to journal and apply.
type operation struct {
	name   string
	decide func(now int64) (models.Event, error)
	result chan operationResult
}

type operationResult struct {
	event models.Event
	value any
	err   error
}

// applyQueue feeds operations to a single writer goroutine, in arrival order.
type applyQueue struct {
	ops        chan *operation
	shutdownCh chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func newApplyQueue(size int) *applyQueue {
	if size <= 0 {
		size = 256
	}
	return &applyQueue{
		ops:        make(chan *operation, size),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// start launches the writer. worker is called for one operation at a time.
func (q *applyQueue) start(worker func(*operation)) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer close(q.done)

		for {
			select {
			case <-q.shutdownCh:
				q.drain()
				return
			case op := <-q.ops:
				worker(op)
			}
		}
	}()
}

// submit enqueues op without blocking. A full queue fails immediately.
func (q *applyQueue) submit(op *operation) error {
	select {
	case <-q.shutdownCh:
		return ErrClosed
	default:
	}

	select {
	case q.ops <- op:
		return nil
	default:
		return ErrQueueFull
	}
}

// stop ends the writer after the operation in progress; queued operations
// fail with ErrClosed.
func (q *applyQueue) stop() {
	q.stopOnce.Do(func() {
		close(q.shutdownCh)
	})
	q.wg.Wait()
}

func (q *applyQueue) drain() {
	for {
		select {
		case op := <-q.ops:
			op.result <- operationResult{err: ErrClosed}
		default:
			return
		}
	}
}
