// Package queue schedules job execution units onto a bounded worker pool.
// Units are drained in priority order, FIFO within a priority tier, so a
// burst of low-priority work cannot starve an urgent job.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/danwin47-sys/ocrflow/observability"
)

// Priority orders units. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority maps the wire form to a Priority. Empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

// Unit is one schedulable piece of work.
type Unit struct {
	JobID      string
	Priority   Priority
	Run        func(ctx context.Context) error
	EnqueuedAt time.Time

	seq uint64 // assigned by Enqueue, ties FIFO order within a tier
}

// unitHeap orders by priority desc, then enqueue sequence asc.
type unitHeap []*Unit

func (h unitHeap) Len() int { return len(h) }

func (h unitHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}

func (h unitHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *unitHeap) Push(x interface{}) { *h = append(*h, x.(*Unit)) }

func (h *unitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	u := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return u
}

// Status is a point-in-time view of the queue, shaped for the stats API.
type Status struct {
	QueueSize int   `json:"queue_size"`
	Active    int   `json:"active"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Workers   int   `json:"workers"`
}

// TaskQueue owns the pending heap and the worker pool. Safe for concurrent
// use. A unit that fails or panics is counted and logged; the worker that ran
// it keeps going.
type TaskQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	heap unitHeap
	seq  uint64

	workers   int
	active    int
	processed int64
	failed    int64
	stopped   bool

	wg  sync.WaitGroup
	log observability.Logger
}

// New creates a stopped queue. Call Start to launch workers.
func New(log observability.Logger) *TaskQueue {
	if log == nil {
		log = observability.NopLogger{}
	}
	q := &TaskQueue{log: log}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue accepts a unit unconditionally. Admission control happens before
// work reaches the queue, never here. Units enqueued after Stop are
// discarded when the queue winds down and will not run.
func (q *TaskQueue) Enqueue(u Unit) {
	if u.EnqueuedAt.IsZero() {
		u.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	q.seq++
	u.seq = q.seq
	heap.Push(&q.heap, &u)
	q.mu.Unlock()

	q.cond.Signal()
}

// Start launches workers goroutines. ctx is handed to every unit's Run so
// callers can abort in-flight work; cancelling it does not stop the queue
// itself, Stop does.
func (q *TaskQueue) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 1
	}

	q.mu.Lock()
	q.workers += workers
	q.mu.Unlock()

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.log.Info("workers started", observability.Int("workers", workers))
}

// Stop shuts the pool down cooperatively: queued units that have not started
// are discarded, in-flight units run to completion, and Stop returns once
// every worker has exited. Safe to call more than once.
func (q *TaskQueue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.wg.Wait()
		return
	}
	q.stopped = true
	discarded := len(q.heap)
	q.heap = q.heap[:0]
	q.mu.Unlock()

	q.cond.Broadcast()
	q.wg.Wait()

	if discarded > 0 {
		q.log.Info("discarded queued units on shutdown",
			observability.Int("count", discarded))
	}
}

// Status reports current counters.
func (q *TaskQueue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		QueueSize: len(q.heap),
		Active:    q.active,
		Processed: q.processed,
		Failed:    q.failed,
		Workers:   q.workers,
	}
}

func (q *TaskQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		u, ok := q.next()
		if !ok {
			return
		}

		err := invoke(ctx, u)

		q.mu.Lock()
		q.active--
		if err != nil {
			q.failed++
		} else {
			q.processed++
		}
		q.mu.Unlock()

		if err != nil {
			q.log.Warn("unit failed",
				observability.String("job_id", u.JobID),
				observability.Error("err", err))
		}
	}
}

// next blocks until a unit is available or the queue stops.
func (q *TaskQueue) next() (*Unit, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 && !q.stopped {
		q.cond.Wait()
	}
	if q.stopped {
		return nil, false
	}
	u := heap.Pop(&q.heap).(*Unit)
	q.active++
	return u, true
}

// invoke runs the unit, converting a panic into an error so one bad unit
// cannot take its worker down.
func invoke(ctx context.Context, u *Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit panicked: %v", r)
		}
	}()
	if u.Run == nil {
		return fmt.Errorf("unit %s has no run function", u.JobID)
	}
	return u.Run(ctx)
}
