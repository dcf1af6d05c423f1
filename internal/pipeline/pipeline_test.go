package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/voicebot-go/internal/keyword"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockClassifier is a scripted classifier. Each Classify call optionally
// blocks on the gate channel, records the first sample it pulled and returns
// the configured result.
type mockClassifier struct {
	frameSamples int
	gate         chan struct{} // nil for ungated operation
	result       keyword.Result
	err          error

	mu   sync.Mutex
	seen []float32 // first sample of every classified frame
}

func (m *mockClassifier) FrameSamples() int { return m.frameSamples }

func (m *mockClassifier) Classify(src keyword.SampleSource) (keyword.Result, error) {
	if m.gate != nil {
		<-m.gate
	}
	first := make([]float32, 1)
	if err := src.ReadFloats(0, first); err != nil {
		return keyword.Result{}, err
	}
	m.mu.Lock()
	m.seen = append(m.seen, first[0])
	m.mu.Unlock()
	if m.err != nil {
		return keyword.Result{}, m.err
	}
	return m.result, nil
}

func (m *mockClassifier) Close() error { return nil }

func (m *mockClassifier) classified() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]float32, len(m.seen))
	copy(out, m.seen)
	return out
}

// recordingActuator records every line-changing decision.
type recordingActuator struct {
	mu        sync.Mutex
	decisions []keyword.Decision
}

func (a *recordingActuator) Apply(decision keyword.Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, decision)
	return nil
}

func (a *recordingActuator) Close() error { return nil }

const (
	testBuffers    = 3
	testBufferSize = 8 // 4 samples per buffer
)

func newTestPipeline(classifier keyword.Classifier) (*Pipeline, *recordingActuator) {
	act := &recordingActuator{}
	p := New(&Config{
		NumBuffers: testBuffers,
		BufferSize: testBufferSize,
		Classifier: classifier,
		Actuator:   act,
	})
	return p, act
}

// periodBytes returns one full capture period filled with the given sample
// value, so classified frames can be told apart by their first sample.
func periodBytes(sample int16) []byte {
	out := make([]byte, testBufferSize)
	for i := 0; i < len(out); i += 2 {
		out[i] = byte(uint16(sample))
		out[i+1] = byte(uint16(sample) >> 8)
	}
	return out
}

func sampleValue(sample int16) float32 {
	return float32(sample) / 32768.0
}

func requireInvariants(t *testing.T, q *QueuePair, inFlight int) {
	t.Helper()

	captureIDs, treatmentIDs := q.Members()
	assert.Len(t, append(captureIDs, treatmentIDs...), q.NumBuffers()-inFlight,
		"combined queue membership must cover the pool minus in-flight transactions")

	seen := make(map[int]bool)
	for _, id := range append(captureIDs, treatmentIDs...) {
		assert.False(t, seen[id], "transaction %d present twice", id)
		seen[id] = true
	}

	assert.LessOrEqual(t, len(treatmentIDs), q.NumBuffers()-1,
		"treatment queue must never hold the whole pool")
}

func TestQueuePairInit(t *testing.T) {
	q := NewQueuePair(testBuffers, testBufferSize)

	captureLen, treatmentLen := q.Counts()
	assert.Equal(t, testBuffers, captureLen)
	assert.Equal(t, 0, treatmentLen)

	captureIDs, treatmentIDs := q.Members()
	assert.Equal(t, []int{0, 1, 2}, captureIDs, "capture queue must hold the pool in fixed order")
	assert.Empty(t, treatmentIDs)

	// Re-init after mutation restores the fixed order.
	require.NoError(t, q.MoveToTreatment(q.CaptureHead()))
	q.Init()
	captureIDs, treatmentIDs = q.Members()
	assert.Equal(t, []int{0, 1, 2}, captureIDs)
	assert.Empty(t, treatmentIDs)
}

func TestQueuePairTransitions(t *testing.T) {
	q := NewQueuePair(testBuffers, testBufferSize)

	head := q.CaptureHead()
	require.NotNil(t, head)
	assert.Equal(t, 0, head.ID())

	// Completing the head moves it to treatment, the successor becomes head.
	require.NoError(t, q.MoveToTreatment(head))
	requireInvariants(t, q, 0)
	assert.Equal(t, 1, q.CaptureHead().ID())

	// Moving a transaction that is not in the capture queue fails.
	err := q.MoveToTreatment(head)
	require.Error(t, err)

	// The worker pops in completion order and returns to the capture tail.
	popped := q.PopTreatment()
	require.NotNil(t, popped)
	assert.Same(t, head, popped, "round trip must preserve transaction identity")
	requireInvariants(t, q, 1)

	require.NoError(t, q.ReturnToCapture(popped))
	requireInvariants(t, q, 0)
	captureIDs, _ := q.Members()
	assert.Equal(t, []int{1, 2, 0}, captureIDs, "returned buffer goes to the tail")

	// Double return is rejected.
	require.Error(t, q.ReturnToCapture(popped))
}

func TestQueuePairPredecessorLookup(t *testing.T) {
	q := NewQueuePair(testBuffers, testBufferSize)

	captureIDs, _ := q.Members()
	require.Equal(t, []int{0, 1, 2}, captureIDs)

	head := q.CaptureHead()
	second := q.NextCapture(head)
	require.NotNil(t, second)

	// The head has no predecessor: first capture period signals nothing.
	assert.Nil(t, q.PrevCapture(head))
	assert.Same(t, head, q.PrevCapture(second))

	// A transaction outside the capture queue has no neighbors.
	require.NoError(t, q.MoveToTreatment(head))
	assert.Nil(t, q.PrevCapture(head))
	assert.Nil(t, q.NextCapture(head))
}

func TestStartPeriodFirstCaptureDoesNotSignal(t *testing.T) {
	mock := &mockClassifier{frameSamples: testBufferSize / 2}
	p, _ := newTestPipeline(mock)

	p.StartPeriod(p.queues.CaptureHead())

	select {
	case <-p.ready:
		t.Fatal("first capture period must not signal the worker")
	default:
	}
	captureLen, treatmentLen := p.queues.Counts()
	assert.Equal(t, testBuffers, captureLen)
	assert.Equal(t, 0, treatmentLen)
}

func TestWriterCompletionFlow(t *testing.T) {
	mock := &mockClassifier{frameSamples: testBufferSize / 2}
	p, _ := newTestPipeline(mock)

	w := p.NewWriter()

	// A partial buffer does not complete a period.
	require.NoError(t, w.Feed(periodBytes(1)[:testBufferSize/2]))
	_, treatmentLen := p.queues.Counts()
	assert.Equal(t, 0, treatmentLen)

	// Filling the rest completes the first period.
	require.NoError(t, w.Feed(periodBytes(1)[testBufferSize/2:]))
	captureLen, treatmentLen := p.queues.Counts()
	assert.Equal(t, testBuffers-1, captureLen)
	assert.Equal(t, 1, treatmentLen)
	requireInvariants(t, p.queues, 0)

	select {
	case <-p.ready:
	default:
		t.Fatal("completed buffer must signal the worker")
	}
}

func TestWriterOverrunIsFatal(t *testing.T) {
	mock := &mockClassifier{frameSamples: testBufferSize / 2}
	p, _ := newTestPipeline(mock)

	w := p.NewWriter()

	// With no worker draining, the third period boundary has no free
	// transaction to advance into.
	require.NoError(t, w.Feed(periodBytes(1)))
	require.NoError(t, w.Feed(periodBytes(2)))
	err := w.Feed(periodBytes(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overrun")

	// Queue state stays consistent after the fault.
	requireInvariants(t, p.queues, 0)
}

func TestBurstOfCompletionsProcessesEachBufferOnce(t *testing.T) {
	mock := &mockClassifier{
		frameSamples: testBufferSize / 2,
		gate:         make(chan struct{}),
	}
	p, _ := newTestPipeline(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	w := p.NewWriter()

	// Two completions back to back while the worker is stuck in the first
	// classify call.
	require.NoError(t, w.Feed(periodBytes(1)))
	require.NoError(t, w.Feed(periodBytes(2)))

	// Let the first cycle finish so its buffer returns to the capture queue,
	// then complete a third period.
	mock.gate <- struct{}{}
	require.Eventually(t, func() bool {
		captureLen, _ := p.queues.Counts()
		return captureLen >= 2
	}, time.Second, time.Millisecond)
	require.NoError(t, w.Feed(periodBytes(3)))

	mock.gate <- struct{}{}
	mock.gate <- struct{}{}

	require.Eventually(t, func() bool {
		return len(mock.classified()) == 3
	}, time.Second, time.Millisecond)

	// Exactly three cycles, in completion order, no buffer twice, none skipped.
	assert.Equal(t, []float32{sampleValue(1), sampleValue(2), sampleValue(3)}, mock.classified())

	cancel()
	require.NoError(t, <-done)
	requireInvariants(t, p.queues, 0)
}

func TestWorkerAppliesDecisions(t *testing.T) {
	mock := &mockClassifier{
		frameSamples: testBufferSize / 2,
		result: keyword.Result{
			Predictions: []keyword.Prediction{
				{Label: keyword.LabelGo, Confidence: 0.9},
				{Label: keyword.LabelNoise, Confidence: 0.05},
				{Label: keyword.LabelStop, Confidence: 0.05},
			},
		},
	}
	p, act := newTestPipeline(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	w := p.NewWriter()
	require.NoError(t, w.Feed(periodBytes(7)))

	require.Eventually(t, func() bool {
		act.mu.Lock()
		defer act.mu.Unlock()
		return len(act.decisions) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, keyword.DecisionGo, act.decisions[0])

	cancel()
	require.NoError(t, <-done)
}

func TestSpuriousWakeIsNonFatal(t *testing.T) {
	mock := &mockClassifier{frameSamples: testBufferSize / 2}
	p, _ := newTestPipeline(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	// Signal without a queued treatment transaction.
	p.ready <- struct{}{}

	// The worker logs and keeps running: a real completion afterwards is
	// still processed.
	w := p.NewWriter()
	require.NoError(t, w.Feed(periodBytes(5)))
	require.Eventually(t, func() bool {
		return len(mock.classified()) == 1
	}, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestClassifierFailureStopsWorkerWithConsistentQueues(t *testing.T) {
	mock := &mockClassifier{
		frameSamples: testBufferSize / 2,
		err:          assert.AnError,
	}
	p, _ := newTestPipeline(mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx)
	}()

	w := p.NewWriter()
	require.NoError(t, w.Feed(periodBytes(1)))

	err := <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)

	// The failed buffer was recycled before the worker stopped.
	requireInvariants(t, p.queues, 0)
	captureLen, treatmentLen := p.queues.Counts()
	assert.Equal(t, testBuffers, captureLen)
	assert.Equal(t, 0, treatmentLen)
}

func TestFrameSizeMismatchIsFatalBeforeProcessing(t *testing.T) {
	mock := &mockClassifier{frameSamples: testBufferSize} // expects twice the buffer samples
	p, _ := newTestPipeline(mock)

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier expects")
	assert.Empty(t, mock.classified())
}

func TestRoundTripPreservesBufferIdentity(t *testing.T) {
	q := NewQueuePair(testBuffers, testBufferSize)

	tx := q.CaptureHead()
	buf := tx.Bytes()
	require.NoError(t, q.MoveToTreatment(tx))

	popped := q.PopTreatment()
	require.Same(t, tx, popped)
	require.NoError(t, q.ReturnToCapture(popped))

	assert.Equal(t, testBufferSize, popped.Capacity())
	assert.Same(t, &buf[0], &popped.Bytes()[0], "buffer storage must be reused, not reallocated")
}
