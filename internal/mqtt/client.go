// internal/mqtt/client.go
package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// ClientConfig is the broker side of the MQTT config.
type ClientConfig struct {
	Broker   string // tcp://host:port
	ClientID string
	Username string
	Password string

	WillTopic string
	OnConnect func()

	ConnectTimeout time.Duration
	Log            zerolog.Logger
}

// Connect opens a broker session with a retained "offline" will on
// WillTopic. OnConnect runs after every (re)connect and must not block.
func Connect(cfg ClientConfig) (paho.Client, error) {
	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOrderMatters(false)

	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, payloadOffline, 0, true)
	}

	log := cfg.Log
	opts.SetOnConnectHandler(func(paho.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("mqtt connected")
		if cfg.OnConnect != nil {
			// Runs on the paho goroutine; must not block.
			cfg.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	})

	c := paho.NewClient(opts)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// With ConnectRetry the token completes only once connected; a timeout
	// here leaves the client retrying in the background.
	tok := c.Connect()
	if !tok.WaitTimeout(timeout) {
		log.Warn().Str("broker", cfg.Broker).Msg("mqtt broker not reachable yet, retrying in background")
		return c, nil
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	return c, nil
}
