package ftp

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"
)

// controlConn serializes the command/reply exchange over the persistent
// control connection. At most one command may be outstanding at a time;
// a second send while one is in flight fails fast with ErrCommandInFlight.
type controlConn struct {
	conn   net.Conn
	reader *bufio.Reader
	logger *slog.Logger

	// responseTimeout bounds each reply read and each command write
	responseTimeout time.Duration

	mu       sync.Mutex
	inFlight bool
	closed   bool
}

func newControlConn(conn net.Conn, logger *slog.Logger, responseTimeout time.Duration) *controlConn {
	return &controlConn{
		conn:            conn,
		reader:          bufio.NewReader(conn),
		logger:          logger,
		responseTimeout: responseTimeout,
	}
}

// send writes "VERB args\r\n" and marks a command in flight. The caller must
// read the reply with readReply before sending again.
func (c *controlConn) send(verb string, args ...string) error {
	cmd := verb
	if len(args) > 0 {
		cmd = verb + " " + strings.Join(args, " ")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return net.ErrClosed
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrCommandInFlight
	}
	c.inFlight = true
	c.mu.Unlock()

	c.logger.Debug("ftp command", "cmd", redactCommand(verb, cmd))

	if c.responseTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.responseTimeout)); err != nil {
			c.clearInFlight()
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		// The command never reached the wire, so nothing is outstanding.
		c.clearInFlight()
		return fmt.Errorf("failed to send %s: %w", verb, err)
	}

	return nil
}

func (c *controlConn) clearInFlight() {
	c.mu.Lock()
	c.inFlight = false
	c.mu.Unlock()
}

// readReply blocks until one complete reply has been consumed and clears the
// in-flight flag. It is also used for the unsolicited completion reply that
// follows a data transfer.
func (c *controlConn) readReply() (*Reply, error) {
	if c.responseTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.responseTimeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	reply, err := readReply(c.reader)

	c.clearInFlight()

	if err != nil {
		return nil, err
	}

	c.logger.Debug("ftp reply", "code", reply.Code, "message", reply.Message())
	return reply, nil
}

// cmd performs one full command/reply exchange.
func (c *controlConn) cmd(verb string, args ...string) (*Reply, error) {
	if err := c.send(verb, args...); err != nil {
		return nil, err
	}
	return c.readReply()
}

// close sends QUIT best-effort, ignoring its reply and any errors, and closes
// the socket. It is idempotent.
func (c *controlConn) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	quit := !c.inFlight
	c.mu.Unlock()

	if quit {
		if c.responseTimeout > 0 {
			_ = c.conn.SetDeadline(time.Now().Add(c.responseTimeout))
		}
		if _, err := fmt.Fprintf(c.conn, "QUIT\r\n"); err == nil {
			_, _ = readReply(c.reader)
		}
	}

	return c.conn.Close()
}

// abort closes the socket without the QUIT exchange. Used when the reply
// stream is no longer trustworthy.
func (c *controlConn) abort() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	return c.conn.Close()
}

// localHost returns the IP of the control connection's local end, used to
// pick the interface for active mode listeners.
func (c *controlConn) localHost() string {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		return "127.0.0.1"
	}
	return host
}

// redactCommand hides credentials in debug logs.
func redactCommand(verb, cmd string) string {
	if verb == "PASS" {
		return "PASS ****"
	}
	return cmd
}
