// Package pipeline implements the realtime capture-and-classify loop: a fixed
// pool of capture buffers circulates through a capture queue and a treatment
// queue, a completion handler moves finished buffers between them from the
// capture callback, and a single worker classifies each completed buffer and
// drives the actuation output.
package pipeline

import (
	"container/list"
	"sync"

	"github.com/tphakala/voicebot-go/internal/errors"
)

// Transaction pairs one capture buffer with its queue linkage. Each
// transaction is created once at pipeline start and cycles forever between
// the capture queue, the active write slot and the treatment queue.
type Transaction struct {
	id   int
	buf  []byte
	elem *list.Element // linkage into the current queue, nil while popped
	home *list.List    // queue the element currently lives in, nil while popped
}

// ID returns the fixed index of the transaction in the pool.
func (t *Transaction) ID() int {
	return t.id
}

// Bytes returns the full transaction buffer.
func (t *Transaction) Bytes() []byte {
	return t.buf
}

// Capacity returns the buffer size in bytes.
func (t *Transaction) Capacity() int {
	return len(t.buf)
}

// QueuePair holds the capture queue and the treatment queue. Both queues are
// mutated from two goroutines (the capture callback and the worker), so every
// operation takes the pair lock. All operations are O(1) except the
// predecessor and successor lookups, which walk a list bounded by the pool
// size.
type QueuePair struct {
	mu           sync.Mutex
	capture      *list.List
	treatment    *list.List
	transactions []*Transaction
	bufferSize   int
}

// NewQueuePair allocates numBuffers transactions of bufferSize bytes each and
// enqueues them all into the capture queue in pool order.
func NewQueuePair(numBuffers, bufferSize int) *QueuePair {
	q := &QueuePair{
		capture:      list.New(),
		treatment:    list.New(),
		transactions: make([]*Transaction, numBuffers),
		bufferSize:   bufferSize,
	}
	for i := range q.transactions {
		q.transactions[i] = &Transaction{
			id:  i,
			buf: make([]byte, bufferSize),
		}
	}
	q.Init()
	return q
}

// Init resets both queues to empty and enqueues all transactions into the
// capture queue in fixed pool order.
func (q *QueuePair) Init() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.capture.Init()
	q.treatment.Init()
	for _, t := range q.transactions {
		t.elem = q.capture.PushBack(t)
		t.home = q.capture
	}
}

// BufferSize returns the size of each transaction buffer in bytes.
func (q *QueuePair) BufferSize() int {
	return q.bufferSize
}

// NumBuffers returns the pool size.
func (q *QueuePair) NumBuffers() int {
	return len(q.transactions)
}

// CaptureHead returns the transaction at the head of the capture queue
// without removing it, or nil if the capture queue is empty. The head is
// where the capture interface writes next.
func (q *QueuePair) CaptureHead() *Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.capture.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Transaction)
}

// NextCapture returns the transaction queued after t in the capture queue, or
// nil if t is the tail or no longer in the capture queue.
func (q *QueuePair) NextCapture(t *Transaction) *Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.home != q.capture {
		return nil
	}
	next := t.elem.Next()
	if next == nil {
		return nil
	}
	return next.Value.(*Transaction)
}

// PrevCapture returns the transaction queued before t in the capture queue,
// or nil if t is the head or not in the capture queue. The predecessor of the
// newly active transaction is the one whose capture just completed.
func (q *QueuePair) PrevCapture(t *Transaction) *Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.home != q.capture {
		return nil
	}
	prev := t.elem.Prev()
	if prev == nil {
		return nil
	}
	return prev.Value.(*Transaction)
}

// MoveToTreatment removes t from the capture queue and appends it to the
// treatment queue tail, preserving completion order.
func (q *QueuePair) MoveToTreatment(t *Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.home != q.capture {
		return errors.Newf("transaction %d is not in the capture queue", t.id).
			Component("pipeline").
			Category(errors.CategoryState).
			Context("transaction", t.id).
			Build()
	}
	q.capture.Remove(t.elem)
	t.elem = q.treatment.PushBack(t)
	t.home = q.treatment
	return nil
}

// PopTreatment removes and returns the head of the treatment queue, or nil if
// the queue is empty. The popped transaction is owned by the caller until it
// is returned with ReturnToCapture.
func (q *QueuePair) PopTreatment() *Transaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	front := q.treatment.Front()
	if front == nil {
		return nil
	}
	t := front.Value.(*Transaction)
	q.treatment.Remove(front)
	t.elem = nil
	t.home = nil
	return t
}

// ReturnToCapture appends a treated transaction to the capture queue tail so
// its buffer becomes available for a future capture period.
func (q *QueuePair) ReturnToCapture(t *Transaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.home != nil {
		return errors.Newf("transaction %d is still queued", t.id).
			Component("pipeline").
			Category(errors.CategoryState).
			Context("transaction", t.id).
			Build()
	}
	t.elem = q.capture.PushBack(t)
	t.home = q.capture
	return nil
}

// Counts returns the current lengths of the capture and treatment queues.
func (q *QueuePair) Counts() (captureLen, treatmentLen int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.capture.Len(), q.treatment.Len()
}

// Members returns the transaction ids currently in each queue, head first.
// Intended for tests and diagnostics.
func (q *QueuePair) Members() (captureIDs, treatmentIDs []int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for e := q.capture.Front(); e != nil; e = e.Next() {
		captureIDs = append(captureIDs, e.Value.(*Transaction).id)
	}
	for e := q.treatment.Front(); e != nil; e = e.Next() {
		treatmentIDs = append(treatmentIDs, e.Value.(*Transaction).id)
	}
	return captureIDs, treatmentIDs
}
