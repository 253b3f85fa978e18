package ftp

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrCommandInFlight is returned when a command is issued on the control
	// channel while another command is still awaiting its reply. The FTP
	// control protocol is strictly half-duplex; interleaving would desync
	// the reply stream.
	ErrCommandInFlight = errors.New("ftp: command already in flight")

	// ErrSessionBroken is returned by every operation after the session's
	// control channel can no longer be trusted (a timeout or a malformed
	// reply left it in an ambiguous state). The caller must disconnect and
	// establish a fresh session.
	ErrSessionBroken = errors.New("ftp: session broken, reconnect required")

	// ErrTransferInProgress is returned when an operation is attempted while
	// a streaming transfer has not been closed yet.
	ErrTransferInProgress = errors.New("ftp: transfer in progress")
)

// ProtocolError represents an unexpected FTP reply with full context of the
// command/reply conversation.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "CWD /pub")
	Command string

	// Reply is the raw reply text received from the server
	Reply string

	// Code is the numeric FTP reply code (e.g., 550)
	Code int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Reply, e.Code)
}

// IsTemporary returns true if the error is a transient failure (4xx).
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

// MalformedReplyError indicates the server sent bytes that do not form a
// well-formed FTP reply, or closed the connection mid-reply.
type MalformedReplyError struct {
	// Line is the offending raw line, as far as it was read
	Line string

	// Err is the underlying read error, if any
	Err error
}

func (e *MalformedReplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ftp: malformed reply %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("ftp: malformed reply %q", e.Line)
}

func (e *MalformedReplyError) Unwrap() error { return e.Err }

// ConnectError indicates the control connection could not be established.
type ConnectError struct {
	// Addr is the host:port that was dialed
	Addr string

	// Err is the underlying dial error
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ftp: connect to %s failed: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// GreetingError indicates the server did not answer the connection with a
// 220 greeting.
type GreetingError struct {
	Reply *Reply
}

func (e *GreetingError) Error() string {
	return fmt.Sprintf("ftp: unexpected greeting: %s (code %d)", e.Reply.Message(), e.Reply.Code)
}

// AuthError indicates the USER/PASS handshake was rejected.
type AuthError struct {
	Reply *Reply
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("ftp: authentication failed: %s (code %d)", e.Reply.Message(), e.Reply.Code)
}

// PassiveError indicates PASV negotiation failed: the server rejected the
// command, the address tuple was malformed, or the data dial failed.
type PassiveError struct {
	// Reply is the server's PASV reply, if one was received
	Reply *Reply

	// Err is the underlying parse or dial error, if any
	Err error
}

func (e *PassiveError) Error() string {
	if e.Reply != nil {
		return fmt.Sprintf("ftp: passive negotiation failed: %s (code %d)", e.Reply.Message(), e.Reply.Code)
	}
	return fmt.Sprintf("ftp: passive negotiation failed: %v", e.Err)
}

func (e *PassiveError) Unwrap() error { return e.Err }

// ActiveError indicates PORT negotiation failed: the local listener could
// not be created, the server rejected the command, or the server never
// connected back.
type ActiveError struct {
	// Reply is the server's PORT reply, if one was received
	Reply *Reply

	// Err is the underlying listen or accept error, if any
	Err error
}

func (e *ActiveError) Error() string {
	if e.Reply != nil {
		return fmt.Sprintf("ftp: active negotiation failed: %s (code %d)", e.Reply.Message(), e.Reply.Code)
	}
	return fmt.Sprintf("ftp: active negotiation failed: %v", e.Err)
}

func (e *ActiveError) Unwrap() error { return e.Err }

// TransferError indicates a data transfer command (RETR, STOR, LIST, NLST)
// was rejected or did not complete cleanly.
type TransferError struct {
	// Op is the FTP verb (e.g., "RETR")
	Op string

	// Path is the remote path the transfer targeted
	Path string

	// Reply is the server reply that aborted the transfer
	Reply *Reply

	// NotFound is set when the server answered 550 (file unavailable)
	NotFound bool
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("ftp: %s %s failed: %s (code %d)", e.Op, e.Path, e.Reply.Message(), e.Reply.Code)
}

// DeleteError indicates a DELE command was rejected.
type DeleteError struct {
	// Path is the remote path passed to DELE
	Path string

	// Reply is the server's reply
	Reply *Reply

	// NotFound is set when the server answered 550 (no such file)
	NotFound bool
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("ftp: DELE %s failed: %s (code %d)", e.Path, e.Reply.Message(), e.Reply.Code)
}

// TimeoutError indicates an operation exceeded its configured deadline.
// The session is no longer trustworthy afterwards; see ErrSessionBroken.
type TimeoutError struct {
	// Op names the operation that timed out (e.g., "RETR", "greeting")
	Op string

	// Err is the underlying network timeout error
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("ftp: %s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout reports true so callers can keep using net.Error style checks.
func (e *TimeoutError) Timeout() bool { return true }

// wrapTimeout converts network timeout errors into *TimeoutError and leaves
// everything else untouched.
func wrapTimeout(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return err
}
