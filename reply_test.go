package ftp

import (
	"bufio"
	"errors"
	"strings"
	"testing"
)

func TestReadReply_SingleLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		wantCode  int
		wantLines []string
		wantErr   bool
	}{
		{
			name:      "simple success",
			input:     "220 Welcome\r\n",
			wantCode:  220,
			wantLines: []string{"Welcome"},
		},
		{
			name:      "transfer complete",
			input:     "226 Transfer complete\r\n",
			wantCode:  226,
			wantLines: []string{"Transfer complete"},
		},
		{
			name:      "error reply",
			input:     "550 File not found\r\n",
			wantCode:  550,
			wantLines: []string{"File not found"},
		},
		{
			name:      "code with no message",
			input:     "200 \r\n",
			wantCode:  200,
			wantLines: []string{""},
		},
		{
			name:      "bare LF line ending",
			input:     "221 Goodbye\n",
			wantCode:  221,
			wantLines: []string{"Goodbye"},
		},
		{
			name:    "non-numeric code",
			input:   "ABC hello\r\n",
			wantErr: true,
		},
		{
			name:    "too short",
			input:   "22\r\n",
			wantErr: true,
		},
		{
			name:    "code out of range",
			input:   "999 nope\r\n",
			wantErr: true,
		},
		{
			name:    "bad separator",
			input:   "220/Welcome\r\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			reply, err := readReply(reader)

			if (err != nil) != tt.wantErr {
				t.Fatalf("readReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var me *MalformedReplyError
				if !errors.As(err, &me) {
					t.Errorf("readReply() error = %T, want *MalformedReplyError", err)
				}
				return
			}

			if reply.Code != tt.wantCode {
				t.Errorf("readReply() code = %v, want %v", reply.Code, tt.wantCode)
			}
			if len(reply.Lines) != len(tt.wantLines) {
				t.Fatalf("readReply() lines = %v, want %v", reply.Lines, tt.wantLines)
			}
			for i := range tt.wantLines {
				if reply.Lines[i] != tt.wantLines[i] {
					t.Errorf("line %d = %q, want %q", i, reply.Lines[i], tt.wantLines[i])
				}
			}
		})
	}
}

func TestReadReply_MultiLine(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		input     string
		wantCode  int
		wantLines []string
		wantErr   bool
	}{
		{
			name: "standard multi-line",
			input: "220-Welcome to FTP\r\n" +
				"220-This is line 2\r\n" +
				"220 Ready\r\n",
			wantCode:  220,
			wantLines: []string{"Welcome to FTP", "This is line 2", "Ready"},
		},
		{
			name: "listing preamble",
			input: "150-Here is the listing\r\n" +
				"name size owner\r\n" +
				"150 End\r\n",
			wantCode:  150,
			wantLines: []string{"Here is the listing", "name size owner", "End"},
		},
		{
			name: "intervening line with a different code is body text",
			input: "211-Features:\r\n" +
				"213 looks like a reply but is not\r\n" +
				"211 End\r\n",
			wantCode:  211,
			wantLines: []string{"Features:", "213 looks like a reply but is not", "End"},
		},
		{
			name: "same code without separator is body text",
			input: "220-hello\r\n" +
				"220x not the end\r\n" +
				"220 bye\r\n",
			wantCode:  220,
			wantLines: []string{"hello", "220x not the end", "bye"},
		},
		{
			name:    "connection closes mid-reply",
			input:   "150-started\r\nand then nothing",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := bufio.NewReader(strings.NewReader(tt.input))
			reply, err := readReply(reader)

			if (err != nil) != tt.wantErr {
				t.Fatalf("readReply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var me *MalformedReplyError
				if !errors.As(err, &me) {
					t.Errorf("readReply() error = %T, want *MalformedReplyError", err)
				}
				return
			}

			if reply.Code != tt.wantCode {
				t.Errorf("readReply() code = %v, want %v", reply.Code, tt.wantCode)
			}
			if got := strings.Join(reply.Lines, "|"); got != strings.Join(tt.wantLines, "|") {
				t.Errorf("readReply() lines = %q, want %q", reply.Lines, tt.wantLines)
			}
		})
	}
}

// The parser must consume exactly one logical reply. Over-reading would
// corrupt the exchange for the next command.
func TestReadReply_DoesNotReadPastBoundary(t *testing.T) {
	t.Parallel()
	input := "226 Transfer complete\r\n" +
		"221 Goodbye\r\n"
	reader := bufio.NewReader(strings.NewReader(input))

	first, err := readReply(reader)
	if err != nil {
		t.Fatalf("first readReply failed: %v", err)
	}
	if first.Code != 226 {
		t.Errorf("first reply code = %d, want 226", first.Code)
	}

	second, err := readReply(reader)
	if err != nil {
		t.Fatalf("second readReply failed: %v", err)
	}
	if second.Code != 221 {
		t.Errorf("second reply code = %d, want 221", second.Code)
	}
	if second.Message() != "Goodbye" {
		t.Errorf("second reply message = %q, want %q", second.Message(), "Goodbye")
	}
}

func TestReadReply_MultiLineBoundary(t *testing.T) {
	t.Parallel()
	input := "150-Opening\r\n" +
		"150 Done\r\n" +
		"226 Transfer complete\r\n"
	reader := bufio.NewReader(strings.NewReader(input))

	first, err := readReply(reader)
	if err != nil {
		t.Fatalf("first readReply failed: %v", err)
	}
	if first.Code != 150 {
		t.Errorf("first reply code = %d, want 150", first.Code)
	}

	second, err := readReply(reader)
	if err != nil {
		t.Fatalf("second readReply failed: %v", err)
	}
	if second.Code != 226 {
		t.Errorf("second reply code = %d, want 226", second.Code)
	}
}

func TestReply_Category(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		want ReplyCategory
	}{
		{150, PositivePreliminary},
		{226, PositiveCompletion},
		{331, PositiveIntermediate},
		{421, TransientNegative},
		{550, PermanentNegative},
	}

	for _, tt := range tests {
		r := &Reply{Code: tt.code}
		if got := r.Category(); got != tt.want {
			t.Errorf("Reply{%d}.Category() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestReply_Message(t *testing.T) {
	t.Parallel()
	r := &Reply{Code: 220, Lines: []string{"a", "b"}}
	if got := r.Message(); got != "a\nb" {
		t.Errorf("Message() = %q, want %q", got, "a\nb")
	}
}
