package config

import (
	"errors"
	"time"
)

var (
	ErrInvalidChunkSize   = errors.New("chunk size must be greater than 0")
	ErrInvalidMaxPayload  = errors.New("max payload size must be at least the chunk size")
	ErrInvalidRetryCount  = errors.New("retry count must not be negative")
	ErrInvalidTimeout     = errors.New("timeout must not be negative")
	ErrInvalidUSBIdentity = errors.New("USB vendor and product IDs must be set")
)

// Config holds all application configuration
type Config struct {
	Protocol  ProtocolConfig  `json:"protocol"`
	Transport TransportConfig `json:"transport"`
	Session   SessionConfig   `json:"session"`
}

// ProtocolConfig holds wire-protocol limits
type ProtocolConfig struct {
	// ChunkSize is the maximum payload carried by one data frame when
	// streaming a file range.
	ChunkSize uint32 `json:"chunk_size"`
	// MaxPayloadSize bounds the payload length accepted when decoding an
	// incoming frame.
	MaxPayloadSize uint32 `json:"max_payload_size"`
}

// TransportConfig holds USB transport configuration
type TransportConfig struct {
	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	// Timeout applies to each blocking read/write; zero means block
	// indefinitely.
	Timeout time.Duration `json:"timeout"`
}

// SessionConfig holds serve-loop configuration
type SessionConfig struct {
	// MaxRetries is the number of reconnect attempts after a connection
	// loss before the session is declared failed.
	MaxRetries int `json:"max_retries"`
	// RetryDelay is the pause before each reconnect attempt.
	RetryDelay time.Duration `json:"retry_delay"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Protocol: ProtocolConfig{
			ChunkSize:      1024 * 1024, // 1 MiB segments
			MaxPayloadSize: 1024 * 1024,
		},
		Transport: TransportConfig{
			VendorID:  0x057E,
			ProductID: 0x3000,
			Timeout:   0,
		},
		Session: SessionConfig{
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
	}
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.Protocol.ChunkSize == 0 {
		return ErrInvalidChunkSize
	}
	if c.Protocol.MaxPayloadSize < c.Protocol.ChunkSize {
		return ErrInvalidMaxPayload
	}
	if c.Session.MaxRetries < 0 {
		return ErrInvalidRetryCount
	}
	if c.Transport.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Transport.VendorID == 0 || c.Transport.ProductID == 0 {
		return ErrInvalidUSBIdentity
	}
	return nil
}
