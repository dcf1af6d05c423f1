// Package myaudio handles audio input: realtime capture from a sound card
// feeding the pipeline, and offline reading of WAV files.
package myaudio

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/errors"
	"github.com/tphakala/voicebot-go/internal/logging"
	"github.com/tphakala/voicebot-go/internal/pipeline"
	"github.com/tphakala/voicebot-go/internal/telemetry"
)

// captureSource holds information about an audio capture source.
type captureSource struct {
	Name    string
	ID      string
	Pointer unsafe.Pointer
}

// AudioDeviceInfo holds information about an audio device.
type AudioDeviceInfo struct {
	Index int
	Name  string
	ID    string
}

// ListAudioSources returns a list of available audio capture devices.
func ListAudioSources() ([]AudioDeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize context: %w", err)
	}
	defer ctx.Uninit() //nolint:errcheck

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get devices: %w", err)
	}

	var devices []AudioDeviceInfo
	for i, info := range infos {
		decodedID, err := hexToASCII(info.ID.String())
		if err != nil {
			continue
		}
		devices = append(devices, AudioDeviceInfo{
			Index: i,
			Name:  info.Name(),
			ID:    decodedID,
		})
	}

	return devices, nil
}

// CaptureAudio opens the configured capture device and streams audio into the
// pipeline until quitChan closes. Unrecoverable capture faults are sent to
// errChan exactly once; the supervisor halts the whole control path in
// response, silently dropped samples would corrupt the classifier's
// fixed-size-window assumption.
func CaptureAudio(settings *conf.Settings, p *pipeline.Pipeline, metrics *telemetry.Metrics, wg *sync.WaitGroup, quitChan chan struct{}, errChan chan<- error) {
	wg.Add(1)
	go captureAudioMalgo(settings, p, metrics, wg, quitChan, errChan)
}

func captureAudioMalgo(settings *conf.Settings, p *pipeline.Pipeline, metrics *telemetry.Metrics, wg *sync.WaitGroup, quitChan chan struct{}, errChan chan<- error) {
	defer wg.Done()

	logger := logging.ForService("myaudio")
	if logger == nil {
		logger = slog.Default()
	}

	// Report a fatal capture fault at most once.
	var reportOnce sync.Once
	reportFatal := func(err error) {
		reportOnce.Do(func() {
			if metrics != nil {
				metrics.CaptureErrors.Inc()
			}
			select {
			case errChan <- err:
			default:
			}
		})
	}

	// if Linux set malgo.BackendAlsa, else set nil for auto select
	var backend malgo.Backend
	switch runtime.GOOS {
	case "linux":
		backend = malgo.BackendAlsa
	case "windows":
		backend = malgo.BackendWasapi
	case "darwin":
		backend = malgo.BackendCoreaudio
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		if settings.Debug {
			logger.Debug("malgo", "message", strings.TrimSpace(message))
		}
	})
	if err != nil {
		reportFatal(errors.New(fmt.Errorf("audio context init failed: %w", err)).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Build())
		return
	}
	defer malgoCtx.Uninit() //nolint:errcheck

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = conf.NumChannels
	deviceConfig.SampleRate = conf.SampleRate
	deviceConfig.Alsa.NoMMap = 1

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		reportFatal(errors.New(fmt.Errorf("failed to get capture devices: %w", err)).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Build())
		return
	}

	source, err := selectCaptureSource(settings, infos)
	if err != nil {
		reportFatal(err)
		return
	}
	deviceConfig.Capture.DeviceID = source.Pointer

	writer := p.NewWriter()

	// The data callback runs on the capture interface's time-critical
	// goroutine: write the samples into the active transaction and return.
	onReceiveFrames := func(_, pSamples []byte, framecount uint32) {
		if err := writer.Feed(pSamples); err != nil {
			reportFatal(err)
			return
		}
		if metrics != nil {
			metrics.AudioLevel.Set(calculateAudioLevel(pSamples))
		}
	}

	// onStopDevice is called when the device stops; outside shutdown that is
	// an unrecoverable interface fault.
	onStopDevice := func() {
		select {
		case <-quitChan:
		default:
			reportFatal(errors.Newf("capture device stopped unexpectedly").
				Component("myaudio").
				Category(errors.CategoryAudioSource).
				Context("source", source.Name).
				Build())
		}
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: onReceiveFrames,
		Stop: onStopDevice,
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		reportFatal(errors.New(fmt.Errorf("capture device init failed: %w", err)).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("source", source.Name).
			Build())
		return
	}

	if err := device.Start(); err != nil {
		reportFatal(errors.New(fmt.Errorf("capture device start failed: %w", err)).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("source", source.Name).
			Build())
		return
	}
	defer device.Stop() //nolint:errcheck

	logger.Info("listening on capture source", "name", source.Name, "id", source.ID)

	for {
		select {
		case <-quitChan:
			if settings.Debug {
				logger.Debug("stopping capture due to quit signal")
			}
			return
		default:
			time.Sleep(100 * time.Millisecond)
		}
	}
}

// selectCaptureSource selects a capture device matching the configured source
// name or ID.
func selectCaptureSource(settings *conf.Settings, infos []malgo.DeviceInfo) (captureSource, error) {
	for _, info := range infos {
		decodedID, err := hexToASCII(info.ID.String())
		if err != nil {
			continue
		}

		if matchesDeviceSettings(decodedID, info, settings.Realtime.Audio.Source) {
			return captureSource{
				Name:    info.Name(),
				ID:      decodedID,
				Pointer: info.ID.Pointer(),
			}, nil
		}
	}

	return captureSource{}, errors.Newf("no suitable capture source found for device setting %s", settings.Realtime.Audio.Source).
		Component("myaudio").
		Category(errors.CategoryAudioSource).
		Context("source", settings.Realtime.Audio.Source).
		Build()
}

// matchesDeviceSettings checks if the device matches the settings specified by the user.
func matchesDeviceSettings(decodedID string, info malgo.DeviceInfo, audioSource string) bool {
	if runtime.GOOS == "windows" && audioSource == "sysdefault" {
		// On Windows, there is no "sysdefault" device. Use miniaudio's default device instead.
		return info.IsDefault == 1
	}
	return decodedID == audioSource || strings.Contains(info.Name(), audioSource)
}

// hexToASCII converts a hexadecimal string to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// calculateAudioLevel calculates the RMS of the audio samples scaled to a
// 0-100 range.
func calculateAudioLevel(samples []byte) float64 {
	if len(samples) < 2 {
		return 0
	}

	var sum float64
	sampleCount := len(samples) / 2 // 2 bytes per sample for 16-bit audio
	clipping := false

	for i := 0; i+1 < len(samples); i += 2 {
		sample := int16(uint16(samples[i]) | uint16(samples[i+1])<<8)
		value := math.Abs(float64(sample))
		sum += value * value
		if sample == 32767 || sample == -32768 {
			clipping = true
		}
	}

	rms := math.Sqrt(sum / float64(sampleCount))
	db := 20 * math.Log10(rms/32768.0)

	// Scale decibels to a 0-100 range.
	level := (db + 60) * (100.0 / 50.0)
	if clipping {
		level = math.Max(level, 95)
	}
	return math.Min(100, math.Max(0, level))
}
