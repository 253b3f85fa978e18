package ftp

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

// pasvRegex matches the PASV reply tuple: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
var pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

// parsePASV parses a PASV reply and returns the data channel address.
// Example: "227 Entering Passive Mode (192,168,1,1,195,149)"
// Returns: "192.168.1.1:50069" (195*256 + 149 = 50069)
func parsePASV(text string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(text)
	if len(matches) != 7 {
		return "", fmt.Errorf("no address tuple in PASV reply: %s", text)
	}

	var h [4]int
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", fmt.Errorf("invalid PASV IP part: %s", matches[i+1])
		}
		h[i] = val
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])
	if ip := net.ParseIP(host); ip == nil || ip.To4() == nil {
		return "", fmt.Errorf("invalid IPv4 address from PASV: %s", host)
	}

	p1, err1 := strconv.Atoi(matches[5])
	p2, err2 := strconv.Atoi(matches[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", fmt.Errorf("invalid PASV port parts: %s, %s", matches[5], matches[6])
	}
	port := p1*256 + p2

	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// formatPORT formats a local address for the PORT command.
// Converts "192.168.1.100:50000" to "192,168,1,100,195,80"
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return "", fmt.Errorf("invalid IP address: %s", host)
	}
	ip = ip.To4()
	if ip == nil {
		return "", fmt.Errorf("PORT requires an IPv4 address")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}

	return fmt.Sprintf("%d,%d,%d,%d,%d,%d", ip[0], ip[1], ip[2], ip[3], port/256, port%256), nil
}

// resolveDataAddr substitutes the control connection host when the server
// advertises 0.0.0.0 in its PASV reply (common behind NAT).
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}

	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}

	return pasvAddr
}

// openDataConn establishes the per-transfer data connection using the
// session's configured mode. The returned conn is single-use; the caller
// closes it before reading the transfer's completion reply.
func (s *Session) openDataConn(ctx context.Context) (net.Conn, error) {
	if s.cfg.ActiveMode {
		return s.openActiveDataConn(ctx)
	}
	return s.openPassiveDataConn(ctx)
}

// openPassiveDataConn sends PASV, parses the advertised address and dials it.
func (s *Session) openPassiveDataConn(ctx context.Context) (net.Conn, error) {
	reply, err := s.ctrl.cmd("PASV")
	if err != nil {
		return nil, &PassiveError{Err: wrapTimeout("PASV", err)}
	}

	if reply.Code != 227 {
		return nil, &PassiveError{Reply: reply}
	}

	addr, err := parsePASV(reply.Message())
	if err != nil {
		return nil, &PassiveError{Reply: reply, Err: err}
	}
	addr = resolveDataAddr(addr, s.cfg.Host)

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &PassiveError{Err: wrapTimeout("data connect", err)}
	}

	return newDataConn(conn, s.transferTimeout, s.limiter), nil
}

// openActiveDataConn binds a local ephemeral port, announces it with PORT and
// returns a conn that accepts the server's connection on first use. The
// actual connect happens only after the transfer verb is sent, so the accept
// has to be lazy.
func (s *Session) openActiveDataConn(ctx context.Context) (net.Conn, error) {
	host := s.ctrl.localHost()

	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		// Some interfaces refuse specific-IP binds; retry on all interfaces.
		listener, err = lc.Listen(ctx, "tcp", ":0")
		if err != nil {
			return nil, &ActiveError{Err: fmt.Errorf("failed to bind listener: %w", err)}
		}
	}

	portArg, err := formatPORT(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, &ActiveError{Err: err}
	}

	reply, err := s.ctrl.cmd("PORT", portArg)
	if err != nil {
		listener.Close()
		return nil, &ActiveError{Err: wrapTimeout("PORT", err)}
	}

	if !reply.Is2xx() {
		listener.Close()
		return nil, &ActiveError{Reply: reply}
	}

	active := &activeDataConn{
		listener: listener,
		timeout:  s.transferTimeout,
	}
	// activeDataConn applies its own deadlines around the lazy accept, so
	// only the throttle is layered on top.
	return newDataConn(active, 0, s.limiter), nil
}

// activeDataConn wraps the PORT listener and accepts the server-initiated
// connection on the first Read or Write.
type activeDataConn struct {
	listener net.Listener
	conn     net.Conn
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	c, err := a.listener.Accept()
	if err != nil {
		return &ActiveError{Err: wrapTimeout("accept", err)}
	}
	a.conn = c
	return nil
}

func (a *activeDataConn) Read(p []byte) (n int, err error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (n int, err error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

func (a *activeDataConn) Close() error {
	var err1, err2 error
	if a.conn != nil {
		err1 = a.conn.Close()
	}
	if a.listener != nil {
		err2 = a.listener.Close()
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (a *activeDataConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeDataConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}
