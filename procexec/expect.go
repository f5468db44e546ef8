package procexec

import (
	"strings"
)

// Expecter matches tool output lines prefix by prefix.
type Expecter struct {
	valid   bool
	s       string
	matched string
}

func NewExpecter(s string) *Expecter {
	return &Expecter{
		valid: true,
		s:     s,
	}
}

func (expecter *Expecter) Matched() string {
	if !expecter.valid {
		return ""
	}
	return expecter.matched
}

// Rest returns the unmatched remainder, or "" once a match failed.
func (expecter *Expecter) Rest() string {
	if !expecter.valid {
		return ""
	}
	return expecter.s
}

func (expecter *Expecter) Valid() bool {
	return expecter.valid
}

func (expecter *Expecter) ExpectString(s string) bool {
	if !expecter.valid {
		return false
	}
	if !strings.HasPrefix(expecter.s, s) {
		expecter.valid = false
		return false
	}
	expecter.matched += s
	expecter.s = expecter.s[len(s):]
	return true
}

// SkipSpaces consumes leading blanks and reports whether any were present.
func (expecter *Expecter) SkipSpaces() bool {
	if !expecter.valid {
		return false
	}
	trimmed := strings.TrimLeft(expecter.s, " \t")
	skipped := len(expecter.s) - len(trimmed)
	expecter.matched += expecter.s[:skipped]
	expecter.s = trimmed
	return skipped > 0
}

func (expecter *Expecter) PeekString(s string) bool {
	if !expecter.valid {
		return false
	}
	return strings.HasPrefix(expecter.s, s)
}
