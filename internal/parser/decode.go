package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

const (
	initialScanBufSize = 64 * 1024        // 64KB
	maxScanTokenSize   = 20 * 1024 * 1024 // 20MB

	// sniffLen is how much leading input is inspected to decide
	// whether it is text at all.
	sniffLen = 8 * 1024
)

var (
	// ErrNotText is returned when the input looks binary. It is
	// the only decode failure that rejects a whole file.
	ErrNotText = errors.New("input is not text")

	// ErrLineTooLong marks a line skipped for exceeding the
	// configured maximum length.
	ErrLineTooLong = errors.New("line exceeds maximum length")

	ErrInvalidJSON = errors.New("invalid JSON")
	ErrNotObject   = errors.New("record is not a JSON object")
)

// DecodeError describes one skipped input line.
type DecodeError struct {
	Line int
	Err  error
}

func (e DecodeError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// DecodeOptions tunes Decode. The zero value uses defaults.
type DecodeOptions struct {
	// MaxLineBytes caps a single line; longer lines are skipped.
	// Zero means 20MB.
	MaxLineBytes int
}

// DecodeResult holds the records decoded from one input, in input
// order, and the lines that were skipped.
type DecodeResult struct {
	Records []Record
	Errors  []DecodeError
}

func (r *DecodeResult) skip(line int, err error) {
	de := DecodeError{Line: line, Err: err}
	log.Printf("parser: skipping %v", de)
	r.Errors = append(r.Errors, de)
}

// ParseLines decodes JSONL text held in memory.
func ParseLines(text string) (DecodeResult, error) {
	return Decode(strings.NewReader(text), DecodeOptions{})
}

// Decode reads JSONL from r. Each line is decoded independently:
// blank lines are ignored and undecodable lines are logged, recorded
// in the result, and skipped. An error is returned only when the
// input is not text (ErrNotText) or the reader fails; in the latter
// case the records read so far are still returned.
func Decode(r io.Reader, opts DecodeOptions) (DecodeResult, error) {
	maxLen := opts.MaxLineBytes
	if maxLen <= 0 {
		maxLen = maxScanTokenSize
	}

	br := bufio.NewReaderSize(r, initialScanBufSize)
	head, peekErr := br.Peek(sniffLen)
	if peekErr == io.EOF || errors.Is(peekErr, bufio.ErrBufferFull) {
		peekErr = nil
	}
	if !looksLikeText(head, len(head) == sniffLen) {
		return DecodeResult{}, ErrNotText
	}

	var res DecodeResult
	lr := newLineReader(br, maxLen)
	for {
		ln, ok := lr.next()
		if !ok {
			break
		}
		if ln.oversized {
			res.skip(ln.num, ErrLineTooLong)
			continue
		}

		text := ln.text
		if ln.num == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		rec, err := DecodeLine(text)
		if err != nil {
			res.skip(ln.num, err)
			continue
		}
		rec.Line = ln.num
		res.Records = append(res.Records, rec)
	}

	// Peek consumes a read failure, so the lines buffered before it
	// are decoded first and the failure is reported afterwards.
	err := lr.Err()
	if err == nil {
		err = peekErr
	}
	if err != nil {
		return res, fmt.Errorf("reading input: %w", err)
	}
	return res, nil
}

// DecodeLine decodes a single JSONL line into a Record. Only lines
// that are not JSON objects fail. Fields are read one at a time, so
// a field of the wrong type is left at its zero value and the record
// still reaches classification.
func DecodeLine(line string) (Record, error) {
	if !gjson.Valid(line) {
		return Record{}, ErrInvalidJSON
	}
	obj := gjson.Parse(line)
	if !obj.IsObject() {
		return Record{}, ErrNotObject
	}

	rec := Record{
		UUID:        str(obj.Get("uuid")),
		Timestamp:   str(obj.Get("timestamp")),
		Type:        str(obj.Get("type")),
		SessionID:   str(obj.Get("sessionId")),
		Version:     str(obj.Get("version")),
		Cwd:         str(obj.Get("cwd")),
		GitBranch:   str(obj.Get("gitBranch")),
		IsMeta:      obj.Get("isMeta").Type == gjson.True,
		IsSidechain: obj.Get("isSidechain").Type == gjson.True,
		UserType:    str(obj.Get("userType")),
		RequestID:   str(obj.Get("requestId")),
		LeafUUID:    str(obj.Get("leafUuid")),
		Summary:     str(obj.Get("summary")),
	}
	if p := obj.Get("parentUuid"); p.Type == gjson.String {
		parent := p.Str
		rec.ParentUUID = &parent
	}
	if m := obj.Get("message"); m.IsObject() {
		rec.Message = &Message{
			ID:      str(m.Get("id")),
			Role:    RoleType(str(m.Get("role"))),
			Content: RawContent([]byte(m.Get("content").Raw)),
			Model:   str(m.Get("model")),
		}
	}
	return rec, nil
}

// str returns the value of a JSON string, or "" for any other type.
func str(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// looksLikeText rejects input containing NUL bytes or invalid
// UTF-8. When head was cut at the sniff limit a trailing partial
// rune is tolerated.
func looksLikeText(head []byte, truncated bool) bool {
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	if truncated {
		for i := 0; i < utf8.UTFMax-1 && len(head) > 0 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	return utf8.Valid(head)
}
