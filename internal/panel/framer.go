package panel

import (
	"errors"
)

// errNoLine signals that no complete line arrived within the transport's
// read timeout. The reader worker treats it as a normal wake-up, not a
// fault.
var errNoLine = errors.New("panel: no line available")

// framerBufSize is the read chunk size. Status lines are short (a dozen
// bytes or so); 256 leaves generous headroom.
const framerBufSize = 256

// lineFramer reassembles line-delimited records from a byte stream.
//
// The module emits each record preceded by a line feed and terminated by a
// line break, so both CR and LF act as terminators and empty records are
// discarded. The framer never blocks longer than one underlying Read.
type lineFramer struct {
	r       interface{ Read([]byte) (int, error) }
	chunk   []byte
	partial []byte
	lines   []string
}

// newLineFramer creates a framer over a transport-style reader whose Read
// returns (0, nil) on timeout.
func newLineFramer(r interface{ Read([]byte) (int, error) }) *lineFramer {
	return &lineFramer{
		r:     r,
		chunk: make([]byte, framerBufSize),
	}
}

// ReadLine returns the next complete non-empty line.
//
// Returns:
//   - string: The line, without terminators
//   - error: errNoLine if no complete line is buffered and the underlying
//     read made no progress; otherwise the underlying read error
func (f *lineFramer) ReadLine() (string, error) {
	if line, ok := f.pop(); ok {
		return line, nil
	}

	n, err := f.r.Read(f.chunk)
	if n > 0 {
		f.split(f.chunk[:n])
	}
	if line, ok := f.pop(); ok {
		return line, nil
	}
	if err != nil {
		return "", err
	}
	return "", errNoLine
}

// split appends incoming bytes to the partial record and extracts any
// completed lines.
func (f *lineFramer) split(data []byte) {
	for _, b := range data {
		if b == '\n' || b == '\r' {
			if len(f.partial) > 0 {
				f.lines = append(f.lines, string(f.partial))
				f.partial = f.partial[:0]
			}
			continue
		}
		f.partial = append(f.partial, b)
	}
}

// pop removes and returns the oldest completed line.
func (f *lineFramer) pop() (string, bool) {
	if len(f.lines) == 0 {
		return "", false
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, true
}
