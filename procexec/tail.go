package procexec

import (
	"strings"
)

const TailLines = 5

// tail keeps the last lines of a process's combined output. Partial lines are
// tracked per stream so interleaved chunks do not glue lines together.
type tail struct {
	limit   int
	omit    func(line string) bool
	lines   []string
	partial [2]string
}

func newTail(limit int, omit func(line string) bool) *tail {
	return &tail{
		limit: limit,
		omit:  omit,
	}
}

func (t *tail) write(stream Stream, chunk string) {
	s := t.partial[stream] + chunk
	for {
		i := strings.IndexAny(s, "\r\n")
		if i == -1 {
			break
		}
		t.push(s[:i])
		s = s[i+1:]
	}
	t.partial[stream] = s
}

func (t *tail) flush() {
	for i, s := range t.partial {
		t.push(s)
		t.partial[i] = ""
	}
}

func (t *tail) push(line string) {
	line = strings.TrimSpace(strings.ReplaceAll(line, "\b", ""))
	if line == "" {
		return
	}
	if t.omit != nil && t.omit(line) {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tail) snapshot() []string {
	return append([]string(nil), t.lines...)
}
