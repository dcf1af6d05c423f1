package pipeline

import (
	"context"
	"fmt"

	"github.com/tphakala/voicebot-go/internal/errors"
	"github.com/tphakala/voicebot-go/internal/keyword"
)

// Run executes the inference worker loop until ctx is canceled or an
// unrecoverable error occurs. It is the only goroutine that performs
// inference and actuation. A non-nil return is fatal and the supervisor is
// expected to shut the capture interface down in response.
func (p *Pipeline) Run(ctx context.Context) error {
	// The buffer size is fixed at startup and the classifier input frame is
	// fixed at model build time, so a mismatch is a configuration error
	// caught once, before any audio is processed.
	expected := p.classifier.FrameSamples()
	actual := p.queues.BufferSize() / 2
	if expected != actual {
		return errors.Newf("capture buffer holds %d samples but classifier expects %d", actual, expected).
			Component("pipeline").
			Category(errors.CategoryConfiguration).
			Context("buffer_samples", actual).
			Context("frame_samples", expected).
			Build()
	}

	p.logger.Info("inference worker started",
		"buffers", p.queues.NumBuffers(),
		"buffer_size", p.queues.BufferSize(),
		"frame_samples", expected)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("inference worker stopping")
			return nil
		case <-p.ready:
		}

		if err := p.treatNext(); err != nil {
			return err
		}
	}
}

// treatNext drains exactly one transaction from the treatment queue and runs
// one classify-decide-actuate cycle over it.
func (p *Pipeline) treatNext() error {
	tx := p.queues.PopTreatment()
	if tx == nil {
		// Should not occur while the queue invariants hold.
		p.logger.Warn("signaled with empty treatment queue")
		if p.metrics != nil {
			p.metrics.SpuriousWakes.Inc()
		}
		return nil
	}

	src, err := keyword.NewPCMSource(tx.Bytes())
	if err != nil {
		p.recycle(tx)
		return fmt.Errorf("binding capture buffer failed: %w", err)
	}

	result, err := p.classifier.Classify(src)
	if err != nil {
		// A failed classify call leaves the engine state untrusted; stop
		// rather than retry. The transaction is returned first so the queue
		// invariants survive the fault.
		p.recycle(tx)
		return fmt.Errorf("classifier failed on buffer %d: %w", tx.ID(), err)
	}

	decision := keyword.Decide(&result)

	p.logger.Debug("buffer treated",
		"transaction", tx.ID(),
		"decision", decision.String(),
		"go_confidence", result.Confidence(keyword.LabelGo),
		"stop_confidence", result.Confidence(keyword.LabelStop),
		"elapsed", result.ElapsedTime)

	if p.metrics != nil {
		p.metrics.BuffersProcessed.Inc()
		p.metrics.Decisions.WithLabelValues(decision.String()).Inc()
		p.metrics.ClassifyDuration.Observe(result.ElapsedTime.Seconds())
	}

	if err := p.act.Apply(decision); err != nil {
		p.recycle(tx)
		return fmt.Errorf("actuation failed: %w", err)
	}

	if p.sink != nil {
		p.sink.Publish(decision, &result)
	}

	p.recycle(tx)
	return nil
}

// recycle returns a treated transaction to the capture queue tail.
func (p *Pipeline) recycle(tx *Transaction) {
	if err := p.queues.ReturnToCapture(tx); err != nil {
		p.logger.Error("could not return transaction to capture queue",
			"transaction", tx.ID(),
			"error", err)
	}
}
