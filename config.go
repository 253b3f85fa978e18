package ftp

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultTimeout is used for connect, reply and transfer deadlines when
// Config.Timeout is zero and no per-boundary option overrides it.
const DefaultTimeout = 20 * time.Second

// Config holds the immutable parameters of a session. It is validated once,
// when the session is constructed.
type Config struct {
	// Host is the server hostname or IP address. Required.
	Host string

	// Port is the control connection port. Required, in [1, 65535].
	Port int

	// User and Password are the login credentials. An empty User defaults
	// to "anonymous".
	User     string
	Password string

	// Timeout bounds connecting, each control reply read, and data channel
	// I/O. Zero means DefaultTimeout. Finer-grained deadlines can be set
	// with WithConnectTimeout, WithResponseTimeout and WithTransferTimeout.
	Timeout time.Duration

	// ActiveMode selects PORT negotiation for data channels instead of the
	// default PASV. The choice applies to every transfer of the session.
	ActiveMode bool

	// ASCII selects TYPE A transfers instead of the default TYPE I (binary).
	ASCII bool
}

// validate checks the config the way the session constructor requires it.
func (c *Config) validate() error {
	if c.Host == "" {
		return fmt.Errorf("ftp: config: host must not be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("ftp: config: port %d out of range [1,65535]", c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("ftp: config: negative timeout %v", c.Timeout)
	}
	return nil
}

// addr returns the control connection dial address.
func (c *Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// username returns the configured user, defaulting to anonymous.
func (c *Config) username() string {
	if c.User == "" {
		return "anonymous"
	}
	return c.User
}

// timeout returns the effective base timeout.
func (c *Config) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// transferType returns the TYPE argument matching the config.
func (c *Config) transferType() string {
	if c.ASCII {
		return "A"
	}
	return "I"
}
