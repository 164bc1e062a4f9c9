// Package extract pulls typed values out of the flat tag-delimited bodies
// served by the marketplace web endpoints. It is deliberately forgiving: a
// missing or malformed field reads as its zero value and never stops the
// caller from reading the next one.
package extract

import (
	"strconv"
	"strings"
)

// ScratchLimit caps how many characters of a span take part in a numeric
// conversion. Longer spans are truncated.
const ScratchLimit = 63

// FindSpan locates the next occurrence of closing at or after pos and returns
// the span running from pos up to it.
func FindSpan(buf string, pos int, closing string) (start, length int, ok bool) {
	if pos < 0 || pos > len(buf) || closing == "" {
		return 0, 0, false
	}
	idx := strings.Index(buf[pos:], closing)
	if idx < 0 {
		return 0, 0, false
	}
	return pos, idx, true
}

// Field is the raw text of one tag. The zero Field stands for an absent tag.
type Field struct {
	Raw     string
	Present bool
}

// Lookup finds <tag>...</tag> inside block.
func Lookup(block, tag string) Field {
	open := "<" + tag + ">"
	i := strings.Index(block, open)
	if i < 0 {
		return Field{}
	}
	start, n, ok := FindSpan(block, i+len(open), "</"+tag+">")
	if !ok {
		return Field{}
	}
	return Field{Raw: block[start : start+n], Present: true}
}

func (f Field) String() string {
	return f.Raw
}

// Int reads a base-10 integer prefix, clamped to the 32-bit range.
func (f Field) Int() int {
	return int(parseIntPrefix(f.Raw, 32))
}

// Int64 reads a base-10 integer prefix, clamped to the 64-bit range.
func (f Field) Int64() int64 {
	return parseIntPrefix(f.Raw, 64)
}

// Float reads a decimal floating point prefix.
func (f Field) Float() float64 {
	s := skipSpace(scratch(f.Raw))
	end := floatPrefix(s)
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !isRangeErr(err) {
		return 0
	}
	return v
}

// Char returns the first non-whitespace character, or 0.
func (f Field) Char() byte {
	s := skipSpace(f.Raw)
	if s == "" {
		return 0
	}
	return s[0]
}

func scratch(s string) string {
	if len(s) > ScratchLimit {
		return s[:ScratchLimit]
	}
	return s
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func skipSpace(s string) string {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func parseIntPrefix(raw string, bits int) int64 {
	s := skipSpace(scratch(raw))
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == digits {
		return 0
	}
	// On overflow ParseInt already returns the clamped bound.
	v, _ := strconv.ParseInt(s[:i], 10, bits)
	return v
}

// floatPrefix returns the length of the longest prefix of s that reads as
// [sign] digits [. digits] [e [sign] digits], or 0 if there is none.
func floatPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	mantissa := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		mantissa++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(s) && isDigit(s[j]) {
			j++
			frac++
		}
		if frac > 0 {
			i = j
			mantissa += frac
		}
	}
	if mantissa == 0 {
		return 0
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		exp := j
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		if j > exp {
			i = j
		}
	}
	return i
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
