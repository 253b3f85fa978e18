package ftp

import (
	"bufio"
	"strconv"
	"strings"
)

// ReplyCategory classifies a reply by the first digit of its code,
// following RFC 959 section 4.2.
type ReplyCategory int

const (
	// PositivePreliminary (1xx): the command was accepted and a further
	// reply will follow (e.g. 150 before a data transfer).
	PositivePreliminary ReplyCategory = iota + 1

	// PositiveCompletion (2xx): the command completed successfully.
	PositiveCompletion

	// PositiveIntermediate (3xx): the command was accepted but the server
	// needs more information (e.g. 331 after USER).
	PositiveIntermediate

	// TransientNegative (4xx): the command failed but may succeed if retried.
	TransientNegative

	// PermanentNegative (5xx): the command failed and will not succeed.
	PermanentNegative
)

// String returns a human-readable name for the category.
func (c ReplyCategory) String() string {
	switch c {
	case PositivePreliminary:
		return "positive preliminary"
	case PositiveCompletion:
		return "positive completion"
	case PositiveIntermediate:
		return "positive intermediate"
	case TransientNegative:
		return "transient negative"
	case PermanentNegative:
		return "permanent negative"
	default:
		return "unknown"
	}
}

// Reply represents one logical FTP server reply. A reply has a three-digit
// code and one or more lines of text (multi-line replies per RFC 959).
type Reply struct {
	// Code is the three-digit reply code (e.g., 220, 550)
	Code int

	// Lines contains the text of each line of the reply, in order,
	// with the code prefix of the first and last lines stripped.
	Lines []string
}

// Message returns the reply text as a single string. Multi-line replies
// are joined with newlines.
func (r *Reply) Message() string {
	return strings.Join(r.Lines, "\n")
}

// Category returns the reply category derived from the first digit of the code.
func (r *Reply) Category() ReplyCategory {
	return ReplyCategory(r.Code / 100)
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (transient failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// readReply reads exactly one logical FTP reply from the reader.
// It consumes the bytes of that reply and nothing more, so a following
// reply on the same connection stays intact.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"150-Here is the listing\r\n"
//	"anything at all\r\n"
//	"150 End\r\n"
//
// A multi-line reply is terminated by a line starting with the same
// three-digit code followed by a space. All intervening lines, whatever
// their shape, are body text.
func readReply(r *bufio.Reader) (*Reply, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if line == "" {
			// Nothing read yet: a plain transport failure, not a
			// protocol violation.
			return nil, err
		}
		return nil, &MalformedReplyError{Line: line, Err: err}
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return nil, &MalformedReplyError{Line: line}
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil || code < 100 || code > 599 {
		return nil, &MalformedReplyError{Line: line}
	}

	// Common single-line reply
	if line[3] == ' ' {
		return &Reply{
			Code:  code,
			Lines: []string{line[4:]},
		}, nil
	}

	if line[3] != '-' {
		return nil, &MalformedReplyError{Line: line}
	}

	lines := []string{line[4:]}
	if err := readReplyBody(r, code, &lines); err != nil {
		return nil, err
	}

	return &Reply{
		Code:  code,
		Lines: lines,
	}, nil
}

// readReplyBody accumulates the remaining lines of a multi-line reply
// until the terminating "NNN " line for the same code is seen.
func readReplyBody(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := strconv.Itoa(code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			// Connection closed mid-reply
			return &MalformedReplyError{Line: line, Err: err}
		}

		line = strings.TrimRight(line, "\r\n")

		// Terminating line: same code followed by a space
		if len(line) >= 4 && line[0:3] == codeStr && line[3] == ' ' {
			*lines = append(*lines, line[4:])
			return nil
		}

		// Continuation line with the code prefix keeps just its text;
		// everything else is body text verbatim.
		if len(line) >= 4 && line[0:3] == codeStr && line[3] == '-' {
			*lines = append(*lines, line[4:])
			continue
		}

		*lines = append(*lines, line)
	}
}
