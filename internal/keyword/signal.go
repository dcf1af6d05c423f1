package keyword

import (
	"encoding/binary"

	"github.com/tphakala/voicebot-go/internal/errors"
)

// SampleSource is the pull-based sample accessor the classifier reads its
// input through. Sources convert stored fixed-point samples to float32 on
// demand so only the slice the feature extractor asks for is converted.
type SampleSource interface {
	// Samples returns the total number of samples available.
	Samples() int

	// ReadFloats fills out with len(out) converted samples starting at
	// offset. offset+len(out) must not exceed Samples().
	ReadFloats(offset int, out []float32) error
}

// PCMSource adapts a raw little-endian signed 16-bit PCM buffer to the
// SampleSource contract. Conversion follows Q15 semantics: sample / 32768,
// yielding floats in [-1.0, 1.0). The source borrows the buffer, it does not
// copy it, so the buffer must stay untouched while the source is in use.
type PCMSource struct {
	raw []byte
}

// NewPCMSource binds raw PCM bytes as a sample source. The byte length must
// be even; the trailing byte of an odd-length buffer would not form a sample.
func NewPCMSource(raw []byte) (*PCMSource, error) {
	if len(raw)%2 != 0 {
		return nil, errors.Newf("pcm buffer length %d is not a multiple of the sample size", len(raw)).
			Component("keyword").
			Category(errors.CategoryValidation).
			Build()
	}
	return &PCMSource{raw: raw}, nil
}

// Samples returns the number of 16-bit samples in the bound buffer.
func (s *PCMSource) Samples() int {
	return len(s.raw) / 2
}

// ReadFloats converts len(out) samples starting at offset from Q15 to
// float32. It never reads outside the bound buffer.
func (s *PCMSource) ReadFloats(offset int, out []float32) error {
	if offset < 0 || offset+len(out) > s.Samples() {
		return errors.Newf("sample read out of bounds: offset %d, length %d, total %d", offset, len(out), s.Samples()).
			Component("keyword").
			Category(errors.CategoryValidation).
			Build()
	}
	for i := range out {
		pos := (offset + i) * 2
		sample := int16(binary.LittleEndian.Uint16(s.raw[pos : pos+2]))
		out[i] = float32(sample) / 32768.0
	}
	return nil
}
