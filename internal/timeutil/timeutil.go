// Package timeutil parses and formats transcript timestamps.
package timeutil

import (
	"encoding/json"
	"strings"
	"time"
)

// ISOMillis matches JavaScript's Date.toISOString output, which is
// what Claude Code writes into its transcripts.
const ISOMillis = "2006-01-02T15:04:05.000Z07:00"

// Date-times without a zone are local time and bare dates are UTC,
// the same reading JavaScript's Date constructor gives them.
var layouts = [...]struct {
	layout string
	local  bool
}{
	{time.RFC3339Nano, false},
	{time.RFC3339, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", false},
}

// Parse tries the ISO-8601 layouts seen in transcripts. The
// second return value is false when nothing matched.
func Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, l := range layouts {
		loc := time.UTC
		if l.local {
			loc = time.Local
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Format returns t as RFC3339 with millisecond precision in UTC,
// or "" for the zero time.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(ISOMillis)
}

// Instant is a parsed timestamp that remembers its source text.
// Unparseable input yields an invalid Instant rather than an error.
type Instant struct {
	Time  time.Time
	Valid bool
	Raw   string
}

// NewInstant parses raw into an Instant.
func NewInstant(raw string) Instant {
	t, ok := Parse(raw)
	return Instant{Time: t, Valid: ok, Raw: raw}
}

// String returns the canonical ISO form for valid instants and the
// raw source text otherwise.
func (i Instant) String() string {
	if i.Valid {
		return Format(i.Time)
	}
	return i.Raw
}

// Compare orders instants chronologically. Invalid instants sort
// after every valid one and compare equal to each other, so a
// stable sort keeps their input order.
func Compare(a, b Instant) int {
	switch {
	case a.Valid && b.Valid:
		return a.Time.Compare(b.Time)
	case a.Valid:
		return -1
	case b.Valid:
		return 1
	default:
		return 0
	}
}

// MarshalJSON writes the canonical form of a valid instant, the raw
// text of an invalid one, and null when there is neither.
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Valid && i.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(i.String())
}

// UnmarshalJSON accepts a string or null. Strings that do not parse
// yield an invalid Instant rather than an error.
func (i *Instant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Instant{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = NewInstant(raw)
	return nil
}
