package myaudio

import (
	"encoding/binary"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/errors"
)

// ReadAudioFile reads a 16 kHz mono 16-bit WAV file and slices it into raw
// PCM frames of frameBytes bytes each, the format the classifier adapter
// expects. A trailing partial frame is discarded.
func ReadAudioFile(path string, frameBytes int) ([][]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer file.Close() //nolint:errcheck

	decoder := wav.NewDecoder(file)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	if decoder.SampleRate != conf.SampleRate {
		return nil, errors.Newf("input file sample rate is %d, expected %d", decoder.SampleRate, conf.SampleRate).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if decoder.BitDepth != conf.BitDepth {
		return nil, errors.Newf("input file bit depth is %d, expected %d", decoder.BitDepth, conf.BitDepth).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}
	if decoder.NumChans != conf.NumChannels {
		return nil, errors.Newf("input file has %d channels, expected %d", decoder.NumChans, conf.NumChannels).
			Component("myaudio").
			Category(errors.CategoryValidation).
			Context("path", path).
			Build()
	}

	var frames [][]byte
	current := make([]byte, 0, frameBytes)

	buf := &audio.IntBuffer{
		Data:   make([]int, frameBytes/2),
		Format: &audio.Format{SampleRate: conf.SampleRate, NumChannels: conf.NumChannels},
	}

	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		if n == 0 {
			break
		}

		for _, sample := range buf.Data[:n] {
			current = binary.LittleEndian.AppendUint16(current, uint16(int16(sample))) //nolint:gosec // 16-bit depth verified above
			if len(current) == frameBytes {
				frames = append(frames, current)
				current = make([]byte, 0, frameBytes)
			}
		}
	}

	return frames, nil
}
