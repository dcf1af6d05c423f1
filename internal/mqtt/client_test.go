package mqtt

import (
	"os"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/voicebot-go/internal/conf"
)

func TestNewClientIDCarriesNodeName(t *testing.T) {
	settings := &conf.Settings{}
	settings.Main.Name = "VoiceBot-Go"
	settings.Realtime.MQTT.Broker = "tcp://localhost:1883"

	c := NewClient(settings).(*client)
	assert.Contains(t, c.config.ClientID, "VoiceBot-Go-")
	assert.Equal(t, "tcp://localhost:1883", c.config.Broker)
	assert.False(t, c.IsConnected())
}

func TestNewClientDebugLogging(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Cleanup(func() {
		pahomqtt.DEBUG = pahomqtt.NOOPLogger{}
		pahomqtt.ERROR = pahomqtt.NOOPLogger{}
	})

	settings := &conf.Settings{}
	settings.Main.Name = "VoiceBot-Go"
	settings.Realtime.MQTT.Debug = true

	c := NewClient(settings).(*client)
	c.logger.Debug("session opened")
	c.Disconnect()

	// Debug mode routes the service logger to a rotating log file.
	data, err := os.ReadFile("logs/mqtt.log")
	require.NoError(t, err)
	assert.Contains(t, string(data), "session opened")
	assert.Contains(t, string(data), `"service":"mqtt"`)

	// Paho's internal logging is enabled as well.
	_, isNoop := pahomqtt.DEBUG.(pahomqtt.NOOPLogger)
	assert.False(t, isNoop, "paho debug logger must be installed")
	_, isNoop = pahomqtt.ERROR.(pahomqtt.NOOPLogger)
	assert.False(t, isNoop, "paho error logger must be installed")
}

func TestNewClientWithoutDebugLeavesPahoQuiet(t *testing.T) {
	t.Chdir(t.TempDir())

	settings := &conf.Settings{}
	settings.Main.Name = "VoiceBot-Go"

	NewClient(settings)

	_, err := os.Stat("logs/mqtt.log")
	assert.True(t, os.IsNotExist(err))
}
