package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicebot-go/internal/keyword"
)

type fakeClient struct {
	mu        sync.Mutex
	published []struct{ topic, payload string }
	err       error
}

func (f *fakeClient) Connect(ctx context.Context) error { return nil }
func (f *fakeClient) IsConnected() bool                 { return true }
func (f *fakeClient) Disconnect()                       {}

func (f *fakeClient) Publish(ctx context.Context, topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, struct{ topic, payload string }{topic, payload})
	return nil
}

func (f *fakeClient) last() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return "", "", false
	}
	p := f.published[len(f.published)-1]
	return p.topic, p.payload, true
}

func TestSinkPublishesDecisionEvent(t *testing.T) {
	client := &fakeClient{}
	sink := NewSink(client, "voicebot/decision")

	result := &keyword.Result{
		Predictions: []keyword.Prediction{
			{Label: keyword.LabelGo, Confidence: 0.82},
			{Label: keyword.LabelStop, Confidence: 0.05},
			{Label: keyword.LabelNoise, Confidence: 0.13},
		},
		ElapsedTime: 42 * time.Millisecond,
	}
	sink.Publish(keyword.DecisionGo, result)

	require.Eventually(t, func() bool {
		_, _, ok := client.last()
		return ok
	}, time.Second, time.Millisecond)

	topic, payload, _ := client.last()
	assert.Equal(t, "voicebot/decision", topic)

	var event DecisionEvent
	require.NoError(t, json.Unmarshal([]byte(payload), &event))
	assert.Equal(t, "GO", event.Decision)
	assert.InDelta(t, 0.82, event.GoConfidence, 1e-6)
	assert.InDelta(t, 0.05, event.StopConfidence, 1e-6)
	assert.EqualValues(t, 42, event.ElapsedMs)
	assert.WithinDuration(t, time.Now(), event.Time, time.Minute)
}

func TestSinkPublishFailureDoesNotPropagate(t *testing.T) {
	client := &fakeClient{err: assert.AnError}
	sink := NewSink(client, "voicebot/decision")

	// Best effort publishing: the worker must never see broker errors.
	sink.Publish(keyword.DecisionStop, &keyword.Result{})
	time.Sleep(10 * time.Millisecond)

	_, _, ok := client.last()
	assert.False(t, ok)
}
