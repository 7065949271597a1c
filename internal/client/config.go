package client

import (
	"errors"
	"net/url"
	"time"
)

// Default configuration values.
const (
	DefaultEndpointURL          = "http://localhost:8000"
	DefaultReconnectDelay       = 2 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultBufferCapacity       = 1000
)

// Config holds the client configuration.
type Config struct {
	// EndpointURL is the server base URL. http/https schemes are
	// rewritten to the transport's native scheme.
	EndpointURL string `koanf:"endpoint_url"`

	// ReconnectDelay is the fixed pause between reconnection attempts.
	ReconnectDelay time.Duration `koanf:"reconnect_delay"`

	// MaxReconnectAttempts caps consecutive failed attempts before
	// the client gives up and enters its terminal Failed state.
	MaxReconnectAttempts int `koanf:"max_reconnect_attempts"`

	// BufferCapacity bounds the telemetry ring buffer.
	BufferCapacity int `koanf:"buffer_capacity"`

	// Transports is the transport preference list, tried in order.
	// Empty means any available transport.
	Transports []string `koanf:"transports"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		EndpointURL:          DefaultEndpointURL,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		BufferCapacity:       DefaultBufferCapacity,
		Transports:           []string{"websocket"},
	}
}

// Verify validates the configuration.
func (c *Config) Verify() error {
	if c.EndpointURL == "" {
		return errors.New("endpoint_url is required")
	}
	if _, err := url.Parse(c.EndpointURL); err != nil {
		return errors.New("endpoint_url is not a valid URL: " + err.Error())
	}
	if c.ReconnectDelay <= 0 {
		return errors.New("reconnect_delay must be positive")
	}
	if c.MaxReconnectAttempts < 1 {
		return errors.New("max_reconnect_attempts must be at least 1")
	}
	return nil
}
