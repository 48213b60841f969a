package mqtt

import (
	"errors"
	"net/url"
	"time"
)

// ClientConfig holds the configuration for creating a new MQTT Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive in seconds. Default is 60.
	KeepAlive uint16

	// ConnectTimeout for the initial connection. Default is 5s.
	ConnectTimeout time.Duration

	// ReconnectInterval is the constant backoff between reconnect attempts.
	// Default is 3s.
	ReconnectInterval time.Duration

	// SessionExpiry in seconds, sent in the CONNECT packet.
	SessionExpiry uint32

	// CleanStart indicates whether to start a clean session. Ingestion
	// services normally set this false so the broker queues QoS 1 messages
	// across short outages.
	CleanStart bool

	// InsecureSkipVerify disables TLS certificate verification. Only for
	// self-signed development brokers.
	InsecureSkipVerify bool

	// StatusListener, if set, receives connection lifecycle notifications.
	StatusListener StatusListener
}

// setDefaultConfig applies safe default values to the configuration.
func setDefaultConfig(cfg *ClientConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}

	if cfg.ReconnectInterval == 0 {
		cfg.ReconnectInterval = 3 * time.Second
	}

	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	if _, err := url.Parse(c.BrokerURL); err != nil {
		return err
	}
	return nil
}
