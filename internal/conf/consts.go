// conf/consts.go hard coded constants
package conf

const (
	SampleRate  = 16000 // Sample rate of the audio fed to the keyword classifier
	BitDepth    = 16    // Bit depth of the audio fed to the keyword classifier
	NumChannels = 1     // Number of channels of the audio fed to the keyword classifier

	// NumBuffers is the number of capture buffers circulating through the
	// pipeline. One is always the active write target, so up to NumBuffers-1
	// completed buffers can be pending treatment at once.
	NumBuffers = 3

	// BufferSize is the size of a single capture buffer in bytes. With 16-bit
	// mono samples this is 5600 samples, 350 ms of audio at 16 kHz, and must
	// match the classifier's input frame size exactly.
	BufferSize = 11200

	// FrameSamples is the classifier input frame size in samples.
	FrameSamples = BufferSize / 2
)
