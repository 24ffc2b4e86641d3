package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close or Abort, and by
	// Dequeue once a closed queue has drained.
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by Peek on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")
)

// Utterance is one synthesized sentence ready for playback.
type Utterance struct {
	Index      int
	Text       string
	SampleRate int
	Samples    []int16
}

func (u Utterance) memory() int64 {
	return int64(len(u.Samples) * 2)
}

// Stats tracks queue throughput.
type Stats struct {
	TotalEnqueued int64
	TotalDequeued int64
	TotalDropped  int64
	CurrentSize   int
	PeakSize      int
	CurrentMemory int64
	LastEnqueue   time.Time
	LastDequeue   time.Time
}

// AudioQueue is a FIFO of utterances with backpressure.
type AudioQueue struct {
	items []Utterance

	maxSize       int   // maximum queued utterances
	memoryLimit   int64 // maximum queued sample bytes
	currentMemory int64

	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	closed  bool // no more input, drain what is left
	aborted bool // discard everything
	stats   Stats
}

// NewAudioQueue creates a queue holding at most maxSize utterances and
// memoryLimit bytes of samples. A single utterance larger than memoryLimit is
// still admitted when the queue is empty.
func NewAudioQueue(maxSize int, memoryLimit int64) *AudioQueue {
	if maxSize < 1 {
		maxSize = 1
	}
	q := &AudioQueue{
		items:       make([]Utterance, 0, maxSize),
		maxSize:     maxSize,
		memoryLimit: memoryLimit,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// wakeOnDone broadcasts c when ctx is done so waiters can observe it.
func (q *AudioQueue) wakeOnDone(ctx context.Context, c *sync.Cond) (stop func() bool) {
	return context.AfterFunc(ctx, func() {
		q.mu.Lock()
		c.Broadcast()
		q.mu.Unlock()
	})
}

func (q *AudioQueue) full(u Utterance) bool {
	if len(q.items) == 0 {
		return false
	}
	return len(q.items) >= q.maxSize || q.currentMemory+u.memory() > q.memoryLimit
}

// Enqueue appends u, blocking while the queue is full.
func (q *AudioQueue) Enqueue(ctx context.Context, u Utterance) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := q.wakeOnDone(ctx, q.notFull)
	defer stop()

	for q.full(u) && !q.closed && !q.aborted && ctx.Err() == nil {
		q.notFull.Wait()
	}
	if q.closed || q.aborted {
		q.stats.TotalDropped++
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		q.stats.TotalDropped++
		return err
	}

	q.items = append(q.items, u)
	q.currentMemory += u.memory()
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if len(q.items) > q.stats.PeakSize {
		q.stats.PeakSize = len(q.items)
	}

	q.notEmpty.Signal()
	return nil
}

// Dequeue removes the oldest utterance, blocking while the queue is empty.
// After Close it keeps returning queued utterances until none are left.
func (q *AudioQueue) Dequeue(ctx context.Context) (Utterance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stop := q.wakeOnDone(ctx, q.notEmpty)
	defer stop()

	for len(q.items) == 0 && !q.closed && !q.aborted && ctx.Err() == nil {
		q.notEmpty.Wait()
	}
	if q.aborted {
		return Utterance{}, ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return Utterance{}, err
	}
	if len(q.items) == 0 {
		return Utterance{}, ErrQueueClosed
	}

	u := q.items[0]
	q.items[0] = Utterance{}
	q.items = q.items[1:]
	q.currentMemory -= u.memory()

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()

	q.notFull.Signal()
	return u, nil
}

// Peek returns the oldest utterance without removing it.
func (q *AudioQueue) Peek() (Utterance, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Utterance{}, ErrQueueEmpty
	}
	return q.items[0], nil
}

// Size returns the number of queued utterances.
func (q *AudioQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stats returns a snapshot of the queue counters.
func (q *AudioQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = len(q.items)
	stats.CurrentMemory = q.currentMemory
	return stats
}

// Close marks the end of input. Queued utterances can still be dequeued.
func (q *AudioQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// Abort discards queued utterances and fails every pending and later call.
func (q *AudioQueue) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.aborted = true
	q.stats.TotalDropped += int64(len(q.items))
	q.items = nil
	q.currentMemory = 0
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
