package ftp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/seqio/ftp/internal/ratelimit"
)

// phase tracks where a session is in its lifecycle.
type phase int

const (
	phaseDisconnected phase = iota
	phaseConnected          // greeting received, not yet logged in
	phaseReady              // logged in, no operation running
	phaseTransferring       // a data transfer is open
	phaseBroken             // control channel no longer trustworthy
)

// Session is an FTP client session over one control connection.
//
// A session is a single logical thread of control: the protocol is strictly
// half-duplex, so operations must not be invoked concurrently. Concurrent
// callers either serialize externally or use one session each. Misuse is
// detected and fails fast with ErrCommandInFlight or ErrTransferInProgress
// instead of corrupting the reply stream.
type Session struct {
	cfg Config

	// ctrl is the control channel, owned exclusively by this session
	ctrl *controlConn

	// dialer establishes the control and data connections
	dialer *net.Dialer

	// logger is used for debug logging
	logger *slog.Logger

	// limiter throttles data channel throughput when set
	limiter *ratelimit.Limiter

	// per-boundary deadlines, all defaulting to cfg.timeout()
	connectTimeout  time.Duration
	responseTimeout time.Duration
	transferTimeout time.Duration

	// typeSet records that TYPE has been sent, so transfers skip
	// redundant TYPE commands
	typeSet bool

	mu    sync.Mutex
	phase phase
}

// NewSession validates the config and builds a session without connecting.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		cfg:             cfg,
		dialer:          &net.Dialer{},
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		connectTimeout:  cfg.timeout(),
		responseTimeout: cfg.timeout(),
		transferTimeout: cfg.timeout(),
		phase:           phaseDisconnected,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("ftp: failed to apply option: %w", err)
		}
	}

	s.dialer.Timeout = s.connectTimeout

	return s, nil
}

// Dial is a convenience constructor: NewSession + Connect + Login.
//
// Example:
//
//	sess, err := ftp.Dial(ctx, ftp.Config{
//	    Host: "ftp.example.com",
//	    Port: 21,
//	    User: "alice",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Disconnect()
func Dial(ctx context.Context, cfg Config, opts ...Option) (*Session, error) {
	s, err := NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	if err := s.Login(ctx); err != nil {
		_ = s.Disconnect()
		return nil, err
	}

	return s, nil
}

// Connect opens the control connection and reads the 220 greeting.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != phaseDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("ftp: already connected")
	}
	s.mu.Unlock()

	addr := s.cfg.addr()
	s.logger.Debug("connecting to ftp server", "addr", addr, "active_mode", s.cfg.ActiveMode)

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &ConnectError{Addr: addr, Err: wrapTimeout("connect", err)}
	}

	ctrl := newControlConn(conn, s.logger, s.responseTimeout)

	greeting, err := ctrl.readReply()
	if err != nil {
		_ = ctrl.abort()
		return wrapTimeout("greeting", err)
	}

	if greeting.Code != 220 {
		_ = ctrl.close()
		return &GreetingError{Reply: greeting}
	}

	s.ctrl = ctrl
	// A fresh control connection starts from the server's default transfer
	// type, so TYPE has to be negotiated again.
	s.typeSet = false
	s.setPhase(phaseConnected)
	return nil
}

// Login authenticates with the configured credentials: USER, then PASS if
// the server asks for one (331). A 230 straight after USER skips PASS.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != phaseConnected {
		p := s.phase
		s.mu.Unlock()
		if p == phaseBroken {
			return ErrSessionBroken
		}
		return fmt.Errorf("ftp: login requires a connected, unauthenticated session")
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	reply, err := s.ctrl.cmd("USER", s.cfg.username())
	if err != nil {
		return s.failOp("USER", err)
	}

	switch reply.Code {
	case 230:
		// No password needed
		s.setPhase(phaseReady)
		return nil
	case 331:
		// Password required
	default:
		return &AuthError{Reply: reply}
	}

	reply, err = s.ctrl.cmd("PASS", s.cfg.Password)
	if err != nil {
		return s.failOp("PASS", err)
	}

	if reply.Code != 230 {
		return &AuthError{Reply: reply}
	}

	s.setPhase(phaseReady)
	return nil
}

// Download retrieves the remote file and returns its content.
func (s *Session) Download(ctx context.Context, path string) ([]byte, error) {
	stream, err := s.DownloadStream(ctx, path)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, stream)

	// Close always runs the completion handshake
	finishErr := stream.Close()

	if copyErr != nil {
		return nil, s.failOp("RETR", copyErr)
	}
	if finishErr != nil {
		return nil, finishErr
	}

	return buf.Bytes(), nil
}

// DownloadStream opens a RETR transfer and returns the data as a stream.
// Closing the stream closes the data connection and then reads the
// completion reply; the session stays in the transferring phase until then.
func (s *Session) DownloadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	dataConn, err := s.startTransfer(ctx, "RETR", path)
	if err != nil {
		return nil, err
	}

	return &transferStream{
		s:    s,
		op:   "RETR",
		path: path,
		data: dataConn,
	}, nil
}

// Upload stores the reader's content at the remote path via STOR. The data
// connection is closed to signal EOF to the server, then the completion
// reply is read.
func (s *Session) Upload(ctx context.Context, path string, r io.Reader) error {
	dataConn, err := s.startTransfer(ctx, "STOR", path)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(dataConn, r)

	finishErr := s.finishTransfer("STOR", path, dataConn)

	if copyErr != nil {
		return s.failOp("STOR", copyErr)
	}
	return finishErr
}

// List returns the server's LIST output for the given path, one entry per
// line, in the order the server sent them. Lines are returned verbatim; no
// format parsing is attempted. An empty path lists the current directory.
func (s *Session) List(ctx context.Context, path string) ([]string, error) {
	return s.listLines(ctx, "LIST", path)
}

// NameList returns the server's NLST output for the given path: bare names,
// one per line, in server order.
func (s *Session) NameList(ctx context.Context, path string) ([]string, error) {
	return s.listLines(ctx, "NLST", path)
}

func (s *Session) listLines(ctx context.Context, verb, path string) ([]string, error) {
	dataConn, err := s.startTransfer(ctx, verb, path)
	if err != nil {
		return nil, err
	}

	var lines []string
	scanner := bufio.NewScanner(dataConn)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	copyErr := scanner.Err()

	finishErr := s.finishTransfer(verb, path, dataConn)

	if copyErr != nil {
		return nil, s.failOp(verb, copyErr)
	}
	if finishErr != nil {
		return nil, finishErr
	}

	return lines, nil
}

// Delete removes the remote file via DELE. No data channel is involved.
// Deleting a missing path returns a *DeleteError with NotFound set.
func (s *Session) Delete(ctx context.Context, path string) error {
	if err := s.beginCommand(ctx); err != nil {
		return err
	}

	reply, err := s.ctrl.cmd("DELE", path)
	if err != nil {
		return s.failOp("DELE", err)
	}

	if !reply.Is2xx() {
		return &DeleteError{
			Path:     path,
			Reply:    reply,
			NotFound: reply.Code == 550,
		}
	}

	return nil
}

// ChangeDir changes the current working directory.
func (s *Session) ChangeDir(ctx context.Context, path string) error {
	_, err := s.expect2xx(ctx, "CWD", path)
	return err
}

// CurrentDir returns the current working directory.
func (s *Session) CurrentDir(ctx context.Context) (string, error) {
	reply, err := s.expect2xx(ctx, "PWD")
	if err != nil {
		return "", err
	}

	// Reply shape: 257 "/home/user" is the current directory
	msg := reply.Message()
	start := strings.Index(msg, "\"")
	if start == -1 {
		return "", fmt.Errorf("ftp: invalid PWD reply: %s", msg)
	}
	end := strings.Index(msg[start+1:], "\"")
	if end == -1 {
		return "", fmt.Errorf("ftp: invalid PWD reply: %s", msg)
	}

	return msg[start+1 : start+1+end], nil
}

// MakeDir creates a directory.
func (s *Session) MakeDir(ctx context.Context, path string) error {
	_, err := s.expect2xx(ctx, "MKD", path)
	return err
}

// RemoveDir removes a directory.
func (s *Session) RemoveDir(ctx context.Context, path string) error {
	_, err := s.expect2xx(ctx, "RMD", path)
	return err
}

// Rename renames a file or directory.
func (s *Session) Rename(ctx context.Context, from, to string) error {
	if err := s.beginCommand(ctx); err != nil {
		return err
	}

	reply, err := s.ctrl.cmd("RNFR", from)
	if err != nil {
		return s.failOp("RNFR", err)
	}
	if reply.Code != 350 {
		return &ProtocolError{Command: "RNFR " + from, Reply: reply.Message(), Code: reply.Code}
	}

	reply, err = s.ctrl.cmd("RNTO", to)
	if err != nil {
		return s.failOp("RNTO", err)
	}
	if !reply.Is2xx() {
		return &ProtocolError{Command: "RNTO " + to, Reply: reply.Message(), Code: reply.Code}
	}

	return nil
}

// Size returns the size of a remote file in bytes.
func (s *Session) Size(ctx context.Context, path string) (int64, error) {
	reply, err := s.expect2xx(ctx, "SIZE", path)
	if err != nil {
		return 0, err
	}

	var size int64
	if _, err := fmt.Sscanf(reply.Message(), "%d", &size); err != nil {
		return 0, fmt.Errorf("ftp: invalid SIZE reply: %s", reply.Message())
	}

	return size, nil
}

// Noop sends a NOOP command, useful to verify the session is still alive.
func (s *Session) Noop(ctx context.Context) error {
	_, err := s.expect2xx(ctx, "NOOP")
	return err
}

// Disconnect closes the control channel, sending QUIT best-effort. It is
// idempotent and safe in any state.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	prev := s.phase
	s.phase = phaseDisconnected
	s.mu.Unlock()

	if s.ctrl == nil || prev == phaseDisconnected {
		return nil
	}

	return s.ctrl.close()
}

// beginCommand verifies the session is ready for a control-channel operation.
func (s *Session) beginCommand(ctx context.Context) error {
	s.mu.Lock()
	p := s.phase
	s.mu.Unlock()

	switch p {
	case phaseReady:
		// fall through to the context check
	case phaseTransferring:
		return ErrTransferInProgress
	case phaseBroken:
		return ErrSessionBroken
	case phaseDisconnected:
		return fmt.Errorf("ftp: not connected")
	default:
		return fmt.Errorf("ftp: not logged in")
	}

	return ctx.Err()
}

// startTransfer runs the shared preamble of every data transfer: transfer
// type, data channel negotiation, the transfer verb, and its preliminary
// reply. On success the session is in the transferring phase and the caller
// owns the returned data connection.
func (s *Session) startTransfer(ctx context.Context, verb, path string) (net.Conn, error) {
	if err := s.beginCommand(ctx); err != nil {
		return nil, err
	}

	if err := s.ensureType(); err != nil {
		return nil, err
	}

	dataConn, err := s.openDataConn(ctx)
	if err != nil {
		return nil, s.checkBroken(err)
	}

	// Cancellation boundary: negotiated but verb not yet sent, so closing
	// the data socket aborts cleanly.
	if err := ctx.Err(); err != nil {
		dataConn.Close()
		return nil, err
	}

	var reply *Reply
	if path == "" {
		reply, err = s.ctrl.cmd(verb)
	} else {
		reply, err = s.ctrl.cmd(verb, path)
	}
	if err != nil {
		dataConn.Close()
		return nil, s.failOp(verb, err)
	}

	// 150 or 125: transfer is starting
	if reply.Category() != PositivePreliminary {
		dataConn.Close()
		return nil, &TransferError{
			Op:       verb,
			Path:     path,
			Reply:    reply,
			NotFound: reply.Code == 550,
		}
	}

	s.setPhase(phaseTransferring)
	return dataConn, nil
}

// finishTransfer closes the data connection first and then reads the
// completion reply. The order is load-bearing: the server only sends 226
// once the data channel is done, and the next command must not be issued
// before that reply is consumed.
func (s *Session) finishTransfer(op, path string, dataConn net.Conn) error {
	closeErr := dataConn.Close()

	reply, err := s.ctrl.readReply()
	if err != nil {
		return s.failOp(op, err)
	}

	s.setPhase(phaseReady)

	if closeErr != nil {
		return fmt.Errorf("ftp: failed to close data connection: %w", closeErr)
	}

	if !reply.Is2xx() {
		return &TransferError{
			Op:       op,
			Path:     path,
			Reply:    reply,
			NotFound: reply.Code == 550,
		}
	}

	s.logger.Debug("ftp transfer complete", "op", op, "path", path, "code", reply.Code)
	return nil
}

// ensureType sends TYPE once per session, matching the configured mode.
func (s *Session) ensureType() error {
	if s.typeSet {
		return nil
	}

	t := s.cfg.transferType()
	reply, err := s.ctrl.cmd("TYPE", t)
	if err != nil {
		return s.failOp("TYPE", err)
	}

	if reply.Code != 200 {
		return &ProtocolError{Command: "TYPE " + t, Reply: reply.Message(), Code: reply.Code}
	}

	s.typeSet = true
	return nil
}

// expect2xx runs a control-channel command and requires a 2xx reply.
func (s *Session) expect2xx(ctx context.Context, verb string, args ...string) (*Reply, error) {
	if err := s.beginCommand(ctx); err != nil {
		return nil, err
	}

	reply, err := s.ctrl.cmd(verb, args...)
	if err != nil {
		return nil, s.failOp(verb, err)
	}

	if !reply.Is2xx() {
		cmd := verb
		if len(args) > 0 {
			cmd = verb + " " + strings.Join(args, " ")
		}
		return reply, &ProtocolError{Command: cmd, Reply: reply.Message(), Code: reply.Code}
	}

	return reply, nil
}

func (s *Session) setPhase(p phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

// markBroken degrades the session after the control channel can no longer be
// trusted: an ambiguous half-read reply cannot be resynchronized, so the only
// recovery is a fresh session.
func (s *Session) markBroken() {
	s.setPhase(phaseBroken)
	if s.ctrl != nil {
		_ = s.ctrl.abort()
	}
}

// failOp wraps transport-level failures of a control exchange. Timeouts and
// malformed replies break the session; command-in-flight misuse does not.
func (s *Session) failOp(op string, err error) error {
	err = wrapTimeout(op, err)
	if errors.Is(err, ErrCommandInFlight) {
		return err
	}
	s.markBroken()
	return err
}

// checkBroken inspects a negotiation error and degrades the session when the
// underlying control exchange timed out or returned garbage.
func (s *Session) checkBroken(err error) error {
	var te *TimeoutError
	var me *MalformedReplyError
	if errors.As(err, &te) || errors.As(err, &me) {
		s.markBroken()
	}
	return err
}
