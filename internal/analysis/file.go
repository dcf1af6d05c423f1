package analysis

import (
	"fmt"

	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/keyword"
	"github.com/tphakala/voicebot-go/internal/myaudio"
)

// FileAnalysis classifies a WAV file frame by frame and prints the decision
// for each frame. It shares the classifier and adapter with the realtime
// path, only the audio source differs.
func FileAnalysis(settings *conf.Settings) error {
	kn, err := keyword.NewKeywordNet(settings)
	if err != nil {
		return err
	}
	defer kn.Close() //nolint:errcheck

	frameBytes := kn.FrameSamples() * (conf.BitDepth / 8)
	frames, err := myaudio.ReadAudioFile(settings.Input.Path, frameBytes)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("file %s is shorter than one classifier frame", settings.Input.Path)
	}

	frameSeconds := float64(kn.FrameSamples()) / float64(conf.SampleRate)

	for i, frame := range frames {
		src, err := keyword.NewPCMSource(frame)
		if err != nil {
			return err
		}

		result, err := kn.Classify(src)
		if err != nil {
			return fmt.Errorf("classification failed at frame %d: %w", i, err)
		}

		decision := keyword.Decide(&result)
		fmt.Printf("%6.2fs  %-5s  go=%.3f stop=%.3f noise=%.3f\n",
			float64(i)*frameSeconds,
			decision.String(),
			result.Confidence(keyword.LabelGo),
			result.Confidence(keyword.LabelStop),
			result.Confidence(keyword.LabelNoise))
	}

	return nil
}
