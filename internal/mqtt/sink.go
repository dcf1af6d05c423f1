package mqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tphakala/voicebot-go/internal/keyword"
	"github.com/tphakala/voicebot-go/internal/logging"
)

// DecisionEvent is the JSON payload published for each treatment cycle.
type DecisionEvent struct {
	Time           time.Time `json:"time"`
	Decision       string    `json:"decision"`
	GoConfidence   float32   `json:"go_confidence"`
	StopConfidence float32   `json:"stop_confidence"`
	ElapsedMs      int64     `json:"elapsed_ms"`
}

// Sink publishes decision events to a topic. It satisfies the pipeline's
// decision sink contract and never blocks the worker: each publish runs on
// its own goroutine and failures are only logged.
type Sink struct {
	client Client
	topic  string
	logger *slog.Logger
}

// NewSink creates a decision sink publishing to the given topic.
func NewSink(client Client, topic string) *Sink {
	logger := logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{client: client, topic: topic, logger: logger}
}

// Publish sends the decision event to the broker, best effort.
func (s *Sink) Publish(decision keyword.Decision, result *keyword.Result) {
	event := DecisionEvent{
		Time:           time.Now(),
		Decision:       decision.String(),
		GoConfidence:   result.Confidence(keyword.LabelGo),
		StopConfidence: result.Confidence(keyword.LabelStop),
		ElapsedMs:      result.ElapsedTime.Milliseconds(),
	}

	payload, err := json.Marshal(&event)
	if err != nil {
		s.logger.Error("failed to marshal decision event", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.client.Publish(ctx, s.topic, string(payload)); err != nil {
			s.logger.Warn("failed to publish decision", "topic", s.topic, "error", err)
		}
	}()
}
