// Package keyword provides the keyword spotting classifier used to turn
// captured audio buffers into actuation decisions. The classifier itself is
// consumed as a black box through the Classifier interface; KeywordNet is the
// TensorFlow Lite backed implementation.
package keyword

import (
	"time"
)

// Labels recognized by the classifier. The label file of the model must use
// these exact strings for decision mapping to work.
const (
	LabelGo    = "go"
	LabelNoise = "noise"
	LabelStop  = "stop"
)

// DecisionThreshold is the confidence a label must strictly exceed before it
// drives the actuation output. At or below the threshold the decision falls
// through to DecisionNoise.
const DecisionThreshold = 0.50

// Prediction is a single (label, confidence) pair from a classification run.
// Confidence values lie in [0.0, 1.0].
type Prediction struct {
	Label      string
	Confidence float32
}

// Result holds the outcome of classifying one audio frame.
type Result struct {
	Predictions []Prediction  // one entry per model label, in model output order
	Anomaly     float32       // anomaly score, 0 if the model has no anomaly head
	ElapsedTime time.Duration // time taken by the classify call
}

// Confidence returns the confidence of the given label, or 0 if the label is
// not present in the result.
func (r *Result) Confidence(label string) float32 {
	for i := range r.Predictions {
		if r.Predictions[i].Label == label {
			return r.Predictions[i].Confidence
		}
	}
	return 0
}

// Classifier is the inference engine contract. Implementations are expected
// to be safe for use from a single worker goroutine; KeywordNet additionally
// serializes concurrent calls internally.
type Classifier interface {
	// FrameSamples returns the fixed input frame size in samples. Every
	// SampleSource passed to Classify must hold exactly this many samples.
	FrameSamples() int

	// Classify runs feature extraction and inference over the source and
	// returns the per-label confidences. A returned error means the engine
	// state can no longer be trusted and the pipeline must stop.
	Classify(src SampleSource) (Result, error)

	// Close releases the model resources.
	Close() error
}

// Decision is the discrete actuation outcome of one classification cycle.
type Decision int

const (
	// DecisionNoise means no keyword exceeded the threshold; the output
	// lines are left unchanged.
	DecisionNoise Decision = iota
	// DecisionGo drives the output lines to the go state.
	DecisionGo
	// DecisionStop drives the output lines to the stop state.
	DecisionStop
)

// String returns the decision name as logged and published.
func (d Decision) String() string {
	switch d {
	case DecisionGo:
		return "GO"
	case DecisionStop:
		return "STOP"
	default:
		return "NOISE"
	}
}

// Decide maps a classification result to an actuation decision. The go label
// wins if its confidence strictly exceeds the threshold, then the stop label
// is given the same chance, otherwise the cycle is noise. This is a stateless
// per-cycle decision with no smoothing across cycles.
func Decide(result *Result) Decision {
	switch {
	case result.Confidence(LabelGo) > DecisionThreshold:
		return DecisionGo
	case result.Confidence(LabelStop) > DecisionThreshold:
		return DecisionStop
	default:
		return DecisionNoise
	}
}
