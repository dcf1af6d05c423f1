// config.go: This file contains the configuration for the VoiceBot-Go application. It defines the settings struct and functions to load and save the settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LogConfig contains settings for log file output.
type LogConfig struct {
	Enabled    bool   // true to enable file logging
	Path       string // path to log file
	MaxSize    int    // maximum log file size in megabytes before rotation
	MaxBackups int    // number of rotated log files to keep
	MaxAge     int    // maximum age of rotated log files in days
}

// KeywordSettings contains settings for the keyword classifier.
type KeywordSettings struct {
	ModelPath string // path to the TensorFlow Lite model file
	LabelPath string // path to the label file
	Threads   int    // number of CPU threads for inference, 0 to use all
}

// AudioSettings contains settings for audio capture.
type AudioSettings struct {
	Source string // audio capture source device name or ID
}

// ActuatorSettings contains settings for the actuation output lines.
type ActuatorSettings struct {
	Type    string // "gpio" or "console"
	GoPin   int    // GPIO number for the motion-valid line (line A)
	StopPin int    // GPIO number for the motion-stop line (line B)
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to enable Prometheus telemetry endpoint
	Listen  string // listen address and port of telemetry endpoint
}

// MQTTSettings contains settings for decision publishing over MQTT.
type MQTTSettings struct {
	Enabled  bool   // true to enable MQTT publishing
	Debug    bool   // true to enable MQTT debug logging
	Broker   string // MQTT broker URL
	Topic    string // topic to publish decisions to
	Username string // MQTT username
	Password string // MQTT password
}

// RealtimeSettings contains settings for realtime capture and actuation.
type RealtimeSettings struct {
	Audio     AudioSettings     // audio capture settings
	Actuator  ActuatorSettings  // actuation output settings
	Telemetry TelemetrySettings // Prometheus telemetry settings
	MQTT      MQTTSettings      // MQTT publishing settings
}

// Settings is the top-level configuration struct.
type Settings struct {
	Debug bool // true to enable debug output

	Main struct {
		Name string    // node name, used as MQTT client id and in log messages
		Log  LogConfig // log file settings
	}

	Keyword  KeywordSettings  // keyword classifier settings
	Realtime RealtimeSettings // realtime mode settings

	Input struct {
		Path string `yaml:"-"` // path to input audio file, runtime value
	} `yaml:"-"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a new
// Settings instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// ValidateSettings checks settings values that cannot be corrected silently.
func ValidateSettings(settings *Settings) error {
	if settings.Keyword.Threads < 0 {
		return fmt.Errorf("keyword.threads must not be negative: %d", settings.Keyword.Threads)
	}
	switch settings.Realtime.Actuator.Type {
	case "gpio", "console", "":
	default:
		return fmt.Errorf("unsupported actuator type: %q", settings.Realtime.Actuator.Type)
	}
	if settings.Realtime.Actuator.Type == "gpio" &&
		settings.Realtime.Actuator.GoPin == settings.Realtime.Actuator.StopPin {
		return fmt.Errorf("actuator go and stop pins must differ, both are %d", settings.Realtime.Actuator.GoPin)
	}
	return nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter, defined in defaults.go
	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the default configuration to the first default
// config path so the user has a file to edit.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	defaults := viper.AllSettings()
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories where a config file is searched
// for, in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	return []string{
		".",
		filepath.Join(homeDir, ".config", "voicebot-go"),
		"/etc/voicebot-go",
	}, nil
}
