package ftp

import (
	"io"
	"net"
)

// transferStream adapts a negotiated data connection into an io.ReadCloser
// with completion signaling: Close closes the data socket first and then
// reads and validates the control channel's completion reply. A transfer is
// only done once both have happened, in that order.
type transferStream struct {
	s    *Session
	op   string
	path string
	data net.Conn

	closed   bool
	closeErr error
}

// Read streams payload bytes until the server closes the data connection.
func (t *transferStream) Read(p []byte) (int, error) {
	if t.closed {
		return 0, net.ErrClosed
	}
	n, err := t.data.Read(p)
	if err != nil && err != io.EOF {
		err = wrapTimeout(t.op, err)
	}
	return n, err
}

// Close finishes the transfer. It is idempotent; later calls return the
// result of the first.
func (t *transferStream) Close() error {
	if t.closed {
		return t.closeErr
	}
	t.closed = true
	t.closeErr = t.s.finishTransfer(t.op, t.path, t.data)
	return t.closeErr
}
