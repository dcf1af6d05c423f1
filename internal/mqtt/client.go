// Package mqtt publishes actuation decisions to an MQTT broker for external
// observers. Publishing is best effort and never blocks the pipeline.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/tphakala/voicebot-go/internal/conf"
	"github.com/tphakala/voicebot-go/internal/errors"
	"github.com/tphakala/voicebot-go/internal/logging"
)

// Client is the broker connection contract.
type Client interface {
	// Connect establishes a connection to the broker.
	Connect(ctx context.Context) error

	// Publish sends a payload to a topic.
	Publish(ctx context.Context, topic, payload string) error

	// IsConnected reports whether the client is currently connected.
	IsConnected() bool

	// Disconnect closes the connection.
	Disconnect()
}

// Config holds the broker connection parameters.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

type client struct {
	config         Config
	internalClient mqtt.Client
	mu             sync.Mutex
	logger         *slog.Logger
	closeLog       func() error
}

// pahoLogger bridges the paho package-level loggers to slog.
type pahoLogger struct {
	logger *slog.Logger
	level  slog.Level
}

func (l pahoLogger) Println(v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprint(v...))
}

func (l pahoLogger) Printf(format string, v ...any) {
	l.logger.Log(context.Background(), l.level, fmt.Sprintf(format, v...))
}

// connectTimeout bounds how long a connect attempt may take.
const connectTimeout = 30 * time.Second

// publishTimeout bounds how long a publish may wait for the broker.
const publishTimeout = 5 * time.Second

// NewClient creates a new MQTT client with the provided configuration.
func NewClient(settings *conf.Settings) Client {
	logger := logging.ForService("mqtt")
	if logger == nil {
		logger = slog.Default()
	}

	closeLog := func() error { return nil }
	if settings.Realtime.MQTT.Debug {
		fileLogger, closer, err := logging.NewFileLogger("logs/mqtt.log", "mqtt", slog.LevelDebug)
		if err != nil {
			logger.Warn("failed to initialize mqtt debug log file, using default logger", "error", err)
		} else {
			logger = fileLogger
			closeLog = closer
			logger.Debug("mqtt debug logging enabled")
		}
		mqtt.DEBUG = pahoLogger{logger: logger, level: slog.LevelDebug}
		mqtt.ERROR = pahoLogger{logger: logger, level: slog.LevelWarn}
	}

	return &client{
		config: Config{
			Broker:   settings.Realtime.MQTT.Broker,
			ClientID: fmt.Sprintf("%s-%s", settings.Main.Name, uuid.NewString()[:8]),
			Username: settings.Realtime.MQTT.Username,
			Password: settings.Realtime.MQTT.Password,
		},
		logger:   logger,
		closeLog: closeLog,
	}
}

// Connect attempts to establish a connection to the MQTT broker.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.logger.Info("connected to MQTT broker", "broker", c.config.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Warn("MQTT connection lost", "broker", c.config.Broker, "error", err)
	})

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("timeout connecting to MQTT broker %s", c.config.Broker).
			Component("mqtt").
			Category(errors.CategoryMQTTConn).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTConn).
			Context("broker", c.config.Broker).
			Build()
	}

	// Honor a canceled context even though paho has already connected.
	if err := ctx.Err(); err != nil {
		c.internalClient.Disconnect(0)
		return err
	}
	return nil
}

// Publish sends a payload to a topic with QoS 0.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	internalClient := c.internalClient
	c.mu.Unlock()

	if internalClient == nil || !internalClient.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	token := internalClient.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Newf("timeout publishing to topic %s", topic).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	return ctx.Err()
}

// IsConnected reports whether the client is currently connected.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the broker and the debug log file.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil {
		c.internalClient.Disconnect(250)
	}
	if c.closeLog != nil {
		_ = c.closeLog()
	}
}
