package parser

import (
	"bufio"
	"io"
	"strings"
)

// sourceLine is one non-blank physical line of input.
type sourceLine struct {
	text      string
	num       int
	oversized bool
}

// lineReader reads JSONL input line by line, numbering every
// physical line. Blank lines are skipped; lines exceeding maxLen are
// reported as oversized instead of aborting the read. The buffer
// starts small and grows on demand up to maxLen.
type lineReader struct {
	r      *bufio.Reader
	maxLen int
	buf    []byte
	lineNo int
	err    error
}

func newLineReader(r io.Reader, maxLen int) *lineReader {
	return &lineReader{
		r:      bufio.NewReaderSize(r, initialScanBufSize),
		maxLen: maxLen,
		buf:    make([]byte, 0, initialScanBufSize),
	}
}

// next returns the next non-blank line and true, or false at EOF or
// on a read failure (see Err).
func (lr *lineReader) next() (sourceLine, bool) {
	for {
		text, oversized, err := lr.readLine()
		if err != nil {
			if err != io.EOF {
				lr.err = err
			}
			return sourceLine{}, false
		}
		lr.lineNo++
		if oversized {
			return sourceLine{num: lr.lineNo, oversized: true}, true
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		return sourceLine{text: text, num: lr.lineNo}, true
	}
}

// Err returns the first non-EOF read error.
func (lr *lineReader) Err() error {
	return lr.err
}

// readLine reads a full line. Oversized lines are drained and
// returned with oversized set. The error is non-nil only at EOF or
// on read failure.
func (lr *lineReader) readLine() (string, bool, error) {
	lr.buf = lr.buf[:0]
	oversized := false
	read := false

	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			if read && err == io.EOF {
				break
			}
			return "", false, err
		}
		read = true

		if !oversized {
			lr.buf = append(lr.buf, chunk...)
			if len(lr.buf) > lr.maxLen {
				oversized = true
				lr.buf = lr.buf[:0]
			}
		}

		if !isPrefix {
			break
		}
	}

	return string(lr.buf), oversized, nil
}
