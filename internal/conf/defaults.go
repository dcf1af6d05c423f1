// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "VoiceBot-Go")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "voicebot.log")
	viper.SetDefault("main.log.maxsize", 10)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxage", 30)

	viper.SetDefault("keyword.modelpath", "model/keywords_int8.tflite")
	viper.SetDefault("keyword.labelpath", "model/labels.txt")
	viper.SetDefault("keyword.threads", 0)

	viper.SetDefault("realtime.audio.source", "sysdefault")

	viper.SetDefault("realtime.actuator.type", "console")
	viper.SetDefault("realtime.actuator.gopin", 23)
	viper.SetDefault("realtime.actuator.stoppin", 24)

	viper.SetDefault("realtime.telemetry.enabled", false)
	viper.SetDefault("realtime.telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("realtime.mqtt.enabled", false)
	viper.SetDefault("realtime.mqtt.debug", false)
	viper.SetDefault("realtime.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("realtime.mqtt.topic", "voicebot/decision")
	viper.SetDefault("realtime.mqtt.username", "")
	viper.SetDefault("realtime.mqtt.password", "")
}
