package ftp

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pipeServer reads command lines from the far end of a pipe and feeds them
// to a script function that decides the reply.
func pipeServer(t *testing.T, conn net.Conn, script func(cmd string) string) {
	t.Helper()
	go func() {
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			reply := script(strings.TrimRight(line, "\r\n"))
			if reply == "" {
				continue // swallow the command, send nothing
			}
			if _, err := conn.Write([]byte(reply + "\r\n")); err != nil {
				return
			}
		}
	}()
}

func TestControlConn_OneCommandInFlight(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer server.Close()

	release := make(chan struct{})
	pipeServer(t, server, func(cmd string) string {
		<-release
		return "200 ok"
	})

	ctrl := newControlConn(client, testLogger(), time.Second)
	defer ctrl.abort()

	if err := ctrl.send("NOOP"); err != nil {
		t.Fatalf("first send failed: %v", err)
	}

	// Second command while the first awaits its reply must fail fast.
	if err := ctrl.send("NOOP"); !errors.Is(err, ErrCommandInFlight) {
		t.Errorf("second send error = %v, want ErrCommandInFlight", err)
	}

	close(release)
	reply, err := ctrl.readReply()
	if err != nil {
		t.Fatalf("readReply failed: %v", err)
	}
	if reply.Code != 200 {
		t.Errorf("reply code = %d, want 200", reply.Code)
	}

	// After the reply is consumed the channel is free again.
	if err := ctrl.send("NOOP"); err != nil {
		t.Errorf("send after reply failed: %v", err)
	}
}

func TestControlConn_ReadReplyTimeout(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer server.Close()

	// Server reads the command but never answers.
	pipeServer(t, server, func(cmd string) string { return "" })

	ctrl := newControlConn(client, testLogger(), 50*time.Millisecond)
	defer ctrl.abort()

	if err := ctrl.send("NOOP"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	start := time.Now()
	_, err := ctrl.readReply()
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Errorf("error = %v, want a network timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("readReply blocked for %v, deadline did not apply", elapsed)
	}
}

func TestControlConn_CloseSendsQuit(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer server.Close()

	gotQuit := make(chan string, 1)
	pipeServer(t, server, func(cmd string) string {
		gotQuit <- cmd
		return "221 Goodbye"
	})

	ctrl := newControlConn(client, testLogger(), time.Second)

	if err := ctrl.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case cmd := <-gotQuit:
		if cmd != "QUIT" {
			t.Errorf("close sent %q, want QUIT", cmd)
		}
	case <-time.After(time.Second):
		t.Error("close never sent QUIT")
	}

	// Idempotent
	if err := ctrl.close(); err != nil {
		t.Errorf("second close returned %v, want nil", err)
	}
}

func TestControlConn_SendWriteFailureClearsInFlight(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	server.Close()

	ctrl := newControlConn(client, testLogger(), time.Second)
	defer ctrl.abort()

	if err := ctrl.send("PASV"); err == nil {
		t.Fatal("expected write error on a closed peer, got nil")
	}

	// The command never reached the wire; the next send must report the
	// write failure, not a phantom outstanding command.
	if err := ctrl.send("PASV"); errors.Is(err, ErrCommandInFlight) {
		t.Errorf("send after failed write = ErrCommandInFlight, want the write error")
	}
}

func TestControlConn_SendAfterClose(t *testing.T) {
	t.Parallel()
	client, server := net.Pipe()
	defer server.Close()

	pipeServer(t, server, func(cmd string) string { return "221 Goodbye" })

	ctrl := newControlConn(client, testLogger(), time.Second)
	if err := ctrl.close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if err := ctrl.send("NOOP"); !errors.Is(err, net.ErrClosed) {
		t.Errorf("send after close = %v, want net.ErrClosed", err)
	}
}

func TestRedactCommand(t *testing.T) {
	t.Parallel()
	if got := redactCommand("PASS", "PASS hunter2"); strings.Contains(got, "hunter2") {
		t.Errorf("password leaked into log: %q", got)
	}
	if got := redactCommand("USER", "USER alice"); got != "USER alice" {
		t.Errorf("redactCommand altered non-sensitive command: %q", got)
	}
}
