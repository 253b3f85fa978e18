package ftp

import (
	"io"
	"net"
	"time"

	"github.com/seqio/ftp/internal/ratelimit"
)

// dataConn is the session's view of one negotiated data connection: every
// read and write refreshes the transfer deadline, so a stalled peer fails
// the transfer instead of hanging, and both directions pass through the
// session throttle when one is configured.
type dataConn struct {
	net.Conn
	r io.Reader
	w io.Writer
}

// newDataConn wraps conn with deadline refresh and throttling. A zero
// timeout disables the deadline refresh, for connections that manage their
// own deadlines; a nil limiter disables throttling.
func newDataConn(conn net.Conn, timeout time.Duration, limiter *ratelimit.Limiter) *dataConn {
	return &dataConn{
		Conn: conn,
		r:    ratelimit.NewReader(&deadlineReader{conn: conn, timeout: timeout}, limiter),
		w:    ratelimit.NewWriter(&deadlineWriter{conn: conn, timeout: timeout}, limiter),
	}
}

func (d *dataConn) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *dataConn) Write(p []byte) (int, error) { return d.w.Write(p) }

type deadlineReader struct {
	conn    net.Conn
	timeout time.Duration
}

func (r *deadlineReader) Read(p []byte) (int, error) {
	if r.timeout > 0 {
		if err := r.conn.SetReadDeadline(time.Now().Add(r.timeout)); err != nil {
			return 0, err
		}
	}
	return r.conn.Read(p)
}

type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return 0, err
		}
	}
	return w.conn.Write(p)
}
