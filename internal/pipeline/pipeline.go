package pipeline

import (
	"log/slog"

	"github.com/tphakala/voicebot-go/internal/actuator"
	"github.com/tphakala/voicebot-go/internal/keyword"
	"github.com/tphakala/voicebot-go/internal/logging"
	"github.com/tphakala/voicebot-go/internal/telemetry"
)

// DecisionSink receives the outcome of every treatment cycle. Sinks must not
// block; slow consumers are expected to drop internally.
type DecisionSink interface {
	Publish(decision keyword.Decision, result *keyword.Result)
}

// Pipeline is the explicit state of the capture-and-classify loop: the queue
// pair, the counting signal between the capture callback and the worker, and
// the collaborators of the worker. It is owned by a supervisor which runs the
// worker and reacts to fatal errors.
type Pipeline struct {
	queues     *QueuePair
	ready      chan struct{} // counting signal, one post per completed buffer
	classifier keyword.Classifier
	act        actuator.Actuator
	sink       DecisionSink
	metrics    *telemetry.Metrics
	logger     *slog.Logger
}

// Config holds the collaborators of a pipeline. Sink and Metrics may be nil.
type Config struct {
	NumBuffers int
	BufferSize int
	Classifier keyword.Classifier
	Actuator   actuator.Actuator
	Sink       DecisionSink
	Metrics    *telemetry.Metrics
}

// New creates a pipeline with all buffers queued for capture.
func New(config *Config) *Pipeline {
	logger := logging.ForService("pipeline")
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		queues: NewQueuePair(config.NumBuffers, config.BufferSize),
		// The signal must hold one post per buffer that can be pending
		// treatment, so a burst of completions is never lost.
		ready:      make(chan struct{}, config.NumBuffers),
		classifier: config.Classifier,
		act:        config.Actuator,
		sink:       config.Sink,
		metrics:    config.Metrics,
		logger:     logger,
	}
}

// Queues exposes the queue pair to the capture layer and tests.
func (p *Pipeline) Queues() *QueuePair {
	return p.queues
}

// StartPeriod is the capture completion handler. The capture layer invokes it
// each time the interface begins writing into newActive. The predecessor of
// newActive in the capture queue is the transaction whose capture just
// completed; it is moved to the treatment queue and the worker is signaled
// once. On the first period there is no predecessor and nothing happens.
//
// This runs on the capture callback goroutine and must not block: the queue
// move is a pointer swap under the pair lock and the signal post is
// non-blocking by construction.
func (p *Pipeline) StartPeriod(newActive *Transaction) {
	finished := p.queues.PrevCapture(newActive)
	if finished == nil {
		return
	}

	if err := p.queues.MoveToTreatment(finished); err != nil {
		// Only reachable if queue state was corrupted elsewhere.
		p.logger.Error("completion handler could not move finished transaction",
			"transaction", finished.ID(),
			"error", err)
		return
	}

	select {
	case p.ready <- struct{}{}:
	default:
		// The signal capacity equals the pool size, so a full channel means
		// more completions than buffers: an invariant violation, not load.
		p.logger.Error("treatment signal overflow, completion lost",
			"transaction", finished.ID())
		if p.metrics != nil {
			p.metrics.MissedSignals.Inc()
		}
	}
}
