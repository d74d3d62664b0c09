package server

import (
	"bufio"
	"errors"
	"io"
)

// MaxCommandLength is the maximum length of a command line.
const MaxCommandLength = 4096

var errLineTooLong = errors.New("command too long")

const (
	telnetIAC  = 0xFF
	telnetWILL = 0xFB
	telnetWONT = 0xFC
	telnetDO   = 0xFD
	telnetDONT = 0xFE
)

type telnetState int

const (
	telnetData telnetState = iota
	telnetCommand
	telnetOption
)

// lineReader frames a control stream into lines, dropping Telnet
// negotiation sequences. A read error in the middle of a line (typically a
// deadline expiring) keeps both the partial line and the Telnet state, so
// the next call resumes where the last one stopped.
type lineReader struct {
	r       *bufio.Reader
	partial []byte
	state   telnetState
	// discarding is set while skipping the rest of an over-long line.
	discarding bool
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReader(r)}
}

// readLine returns the next line without its CR/LF terminator. A line
// longer than MaxCommandLength is consumed up to its terminator and
// reported as errLineTooLong.
func (lr *lineReader) readLine() (string, error) {
	for {
		b, err := lr.r.ReadByte()
		if err != nil {
			return "", err
		}

		switch lr.state {
		case telnetCommand:
			switch b {
			case telnetIAC:
				lr.state = telnetData
			case telnetWILL, telnetWONT, telnetDO, telnetDONT:
				lr.state = telnetOption
				continue
			default:
				lr.state = telnetData
				continue
			}
		case telnetOption:
			lr.state = telnetData
			continue
		default:
			if b == telnetIAC {
				lr.state = telnetCommand
				continue
			}
		}

		if b == '\n' {
			if lr.discarding {
				lr.discarding = false
				return "", errLineTooLong
			}
			line := lr.partial
			lr.partial = lr.partial[:0]
			if n := len(line); n > 0 && line[n-1] == '\r' {
				line = line[:n-1]
			}
			return string(line), nil
		}

		if lr.discarding {
			continue
		}
		if len(lr.partial) >= MaxCommandLength {
			lr.partial = lr.partial[:0]
			lr.discarding = true
			continue
		}
		lr.partial = append(lr.partial, b)
	}
}
