// Package ftp implements a plain-text FTP client protocol engine from first
// principles: control channel command/reply sequencing, reply-code parsing
// including multi-line replies, and passive (PASV) or active (PORT) data
// channel negotiation, per the RFC 959 subset most servers speak.
//
// # Overview
//
// The entry point is the Session, which owns exactly one control connection
// for its lifetime and walks an explicit state machine:
//
//	Disconnected → Connected → Ready → (Transferring) → Ready → Disconnected
//
// Every operation is bounded by configurable deadlines on three boundaries:
// TCP connect, control reply reads, and data channel I/O.
//
// # Basic Usage
//
//	sess, err := ftp.Dial(ctx, ftp.Config{
//	    Host:     "ftp.example.com",
//	    Port:     21,
//	    User:     "alice",
//	    Password: "secret",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Disconnect()
//
//	data, err := sess.Download(ctx, "report.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Concurrency
//
// The FTP control protocol is strictly half-duplex: one command, one reply.
// A Session therefore serves a single logical caller. Using it from multiple
// goroutines without external locking fails fast with ErrCommandInFlight or
// ErrTransferInProgress rather than corrupting the reply stream. For parallel
// transfers, open one Session per worker.
//
// # Error Handling
//
// Errors are typed by what went wrong: *GreetingError, *AuthError,
// *PassiveError, *ActiveError, *TransferError (with NotFound for 550),
// *DeleteError, *MalformedReplyError and *TimeoutError, all carrying the raw
// server reply where one exists. Nothing is retried internally. After a
// timeout or a malformed reply the control channel cannot be trusted; every
// further call returns ErrSessionBroken and the caller must reconnect:
//
//	if err := sess.Upload(ctx, "a.bin", r); err != nil {
//	    var te *ftp.TimeoutError
//	    if errors.As(err, &te) {
//	        sess.Disconnect()
//	        // dial a fresh session
//	    }
//	}
//
// # Progress Tracking
//
// Wrap a reader or writer with ProgressReader or ProgressWriter:
//
//	pr := &ftp.ProgressReader{
//	    Reader: file,
//	    Callback: func(n int64) { fmt.Printf("uploaded %d bytes\n", n) },
//	}
//	err := sess.Upload(ctx, "remote.bin", pr)
package ftp
