package pipeline

import (
	"github.com/tphakala/voicebot-go/internal/errors"
)

// Writer fills the active transaction buffer with samples arriving from the
// capture interface and invokes the completion handler at every period
// boundary. It is used from the capture data callback only, so it needs no
// locking of its own; the queue operations it calls take the pair lock.
type Writer struct {
	p      *Pipeline
	active *Transaction
	offset int
}

// NewWriter claims the capture queue head as the first active write target.
func (p *Pipeline) NewWriter() *Writer {
	w := &Writer{p: p}
	w.active = p.queues.CaptureHead()
	// First period: no predecessor exists yet, so this signals nothing.
	if w.active != nil {
		p.StartPeriod(w.active)
	}
	return w
}

// Feed appends captured sample bytes to the active buffer. Each time a buffer
// fills, the writer advances to the next queued transaction and runs the
// completion handler for the new period. Feed returns an error only on
// overrun: the worker has not returned a buffer in time and there is no free
// transaction to write into. Overrun is fatal, silently dropping samples
// would corrupt the fixed-size-window assumption of the classifier.
func (w *Writer) Feed(samples []byte) error {
	if w.active == nil {
		w.active = w.p.queues.CaptureHead()
		if w.active == nil {
			return w.overrunError()
		}
		w.p.StartPeriod(w.active)
	}

	for len(samples) > 0 {
		n := copy(w.active.Bytes()[w.offset:], samples)
		w.offset += n
		samples = samples[n:]

		if w.offset < w.active.Capacity() {
			continue
		}

		// Period boundary: the successor becomes the active write target and
		// the completion handler moves the finished buffer to treatment.
		next := w.p.queues.NextCapture(w.active)
		if next == nil {
			return w.overrunError()
		}
		w.active = next
		w.offset = 0
		if w.p.metrics != nil {
			w.p.metrics.BuffersCaptured.Inc()
		}
		w.p.StartPeriod(next)
	}
	return nil
}

func (w *Writer) overrunError() error {
	return errors.Newf("capture overrun: no free transaction to write into").
		Component("pipeline").
		Category(errors.CategoryBuffer).
		Build()
}
