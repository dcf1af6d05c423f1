package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureConstants(t *testing.T) {
	// The capture format is fixed: 16 kHz mono 16-bit, triple buffered.
	assert.Equal(t, 16000, SampleRate)
	assert.Equal(t, 1, NumChannels)
	assert.Equal(t, 16, BitDepth)
	assert.Equal(t, 3, NumBuffers)
	assert.Equal(t, BufferSize/2, FrameSamples, "one sample per two buffer bytes")
}

func TestDefaultsUnmarshal(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaultConfig()

	settings := &Settings{}
	require.NoError(t, viper.Unmarshal(settings))
	require.NoError(t, ValidateSettings(settings))

	assert.Equal(t, "VoiceBot-Go", settings.Main.Name)
	assert.Equal(t, "console", settings.Realtime.Actuator.Type)
	assert.NotEqual(t, settings.Realtime.Actuator.GoPin, settings.Realtime.Actuator.StopPin)
	assert.NotEmpty(t, settings.Keyword.ModelPath)
	assert.NotEmpty(t, settings.Keyword.LabelPath)
	assert.NotEmpty(t, settings.Realtime.Telemetry.Listen)
	assert.NotEmpty(t, settings.Realtime.MQTT.Topic)
}

func TestValidateSettings(t *testing.T) {
	valid := func() *Settings {
		s := &Settings{}
		s.Realtime.Actuator.Type = "gpio"
		s.Realtime.Actuator.GoPin = 23
		s.Realtime.Actuator.StopPin = 24
		return s
	}

	require.NoError(t, ValidateSettings(valid()))

	s := valid()
	s.Keyword.Threads = -1
	assert.Error(t, ValidateSettings(s))

	s = valid()
	s.Realtime.Actuator.Type = "relay"
	assert.Error(t, ValidateSettings(s))

	s = valid()
	s.Realtime.Actuator.StopPin = s.Realtime.Actuator.GoPin
	assert.Error(t, ValidateSettings(s))

	// Console actuation does not care about pin numbers.
	s = valid()
	s.Realtime.Actuator.Type = "console"
	s.Realtime.Actuator.StopPin = s.Realtime.Actuator.GoPin
	assert.NoError(t, ValidateSettings(s))
}

func TestGetDefaultConfigPaths(t *testing.T) {
	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0], "working directory takes priority")
}
