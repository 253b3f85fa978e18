package ftp

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/seqio/ftp/internal/ratelimit"
)

// Option is a functional option for configuring a Session beyond Config.
type Option func(*Session) error

// WithLogger enables debug logging using the provided logger.
// All FTP commands and replies are logged at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	sess, _ := ftp.Dial(ctx, cfg, ftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) error {
		if logger == nil {
			return fmt.Errorf("logger must not be nil")
		}
		s.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing the control and data
// connections. This can be used to configure source addresses, keep-alive
// settings, etc. The dialer's Timeout is overwritten with the session's
// connect timeout.
func WithDialer(dialer *net.Dialer) Option {
	return func(s *Session) error {
		if dialer == nil {
			return fmt.Errorf("dialer must not be nil")
		}
		s.dialer = dialer
		return nil
	}
}

// WithConnectTimeout bounds the TCP connect of the control and data
// connections. Defaults to Config.Timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("connect timeout must be positive, got %v", d)
		}
		s.connectTimeout = d
		return nil
	}
}

// WithResponseTimeout bounds each control reply read. Defaults to
// Config.Timeout.
func WithResponseTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("response timeout must be positive, got %v", d)
		}
		s.responseTimeout = d
		return nil
	}
}

// WithTransferTimeout bounds each read or write on a data connection, which
// doubles as idle-stall detection mid-stream. Defaults to Config.Timeout.
func WithTransferTimeout(d time.Duration) Option {
	return func(s *Session) error {
		if d <= 0 {
			return fmt.Errorf("transfer timeout must be positive, got %v", d)
		}
		s.transferTimeout = d
		return nil
	}
}

// WithThrottle caps data channel throughput at the given bytes per second
// using a token bucket. Zero or negative disables throttling.
func WithThrottle(bytesPerSecond int64) Option {
	return func(s *Session) error {
		s.limiter = ratelimit.New(bytesPerSecond)
		return nil
	}
}
