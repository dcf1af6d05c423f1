// Package analysis wires the capture, pipeline, classifier and actuator
// components together for the realtime and file analysis modes.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tphakala/voicebot-go/internal/actuator"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/keyword"
	"github.com/tphakala/voicebot-go/internal/logging"
	"github.com/tphakala/voicebot-go/internal/mqtt"
	"github.com/tphakala/voicebot-go/internal/myaudio"
	"github.com/tphakala/voicebot-go/internal/pipeline"
	"github.com/tphakala/voicebot-go/internal/telemetry"
)

// RealtimeAnalysis starts the realtime keyword spotting pipeline and blocks
// until a termination signal arrives or a fatal pipeline error occurs. In
// both cases it shuts the capture interface and the worker down in order
// before returning.
func RealtimeAnalysis(settings *conf.Settings) error {
	logger := logging.ForService("analysis")
	if logger == nil {
		logger = slog.Default()
	}

	kn, err := keyword.NewKeywordNet(settings)
	if err != nil {
		return err
	}
	defer kn.Close() //nolint:errcheck

	act, err := actuator.New(settings)
	if err != nil {
		return err
	}
	defer act.Close() //nolint:errcheck

	metrics, err := telemetry.NewMetrics()
	if err != nil {
		return fmt.Errorf("error initializing metrics: %w", err)
	}

	var sink pipeline.DecisionSink
	var mqttClient mqtt.Client
	if settings.Realtime.MQTT.Enabled {
		mqttClient = mqtt.NewClient(settings)
		if err := mqttClient.Connect(context.Background()); err != nil {
			// The paho client reconnects in the background, so a failed
			// first connect only delays publishing.
			logger.Warn("initial MQTT connect failed, will keep retrying",
				"broker", settings.Realtime.MQTT.Broker,
				"error", err)
		}
		sink = mqtt.NewSink(mqttClient, settings.Realtime.MQTT.Topic)
		defer mqttClient.Disconnect()
	}

	p := pipeline.New(&pipeline.Config{
		NumBuffers: conf.NumBuffers,
		BufferSize: conf.BufferSize,
		Classifier: kn,
		Actuator:   act,
		Sink:       sink,
		Metrics:    metrics,
	})

	fmt.Printf("Starting keyword spotting in realtime mode. Source: %s, frame: %d samples\n",
		settings.Realtime.Audio.Source, kn.FrameSamples())

	// quitChan stops the capture and telemetry goroutines, errChan carries
	// fatal capture faults to this supervisor.
	quitChan := make(chan struct{})
	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	if settings.Realtime.Telemetry.Enabled {
		endpoint, err := telemetry.NewEndpoint(settings)
		if err != nil {
			return err
		}
		endpoint.Start(metrics, &wg, quitChan)
	}

	myaudio.CaptureAudio(settings, p, metrics, &wg, quitChan, errChan)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		workerErr <- p.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("termination signal received, shutting down")
	case runErr = <-errChan:
		logger.Error("capture interface fault, shutting down", "error", runErr)
	case runErr = <-workerErr:
		if runErr != nil {
			logger.Error("inference worker failed, shutting down", "error", runErr)
		}
	}

	// Orderly shutdown: stop the capture interface first so no new periods
	// start, then stop the worker.
	close(quitChan)
	cancel()
	wg.Wait()

	return runErr
}
