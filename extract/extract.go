package extract

import (
	"context"
	"errors"
	"fmt"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	"strings"
)

var (
	ErrEncrypted = errors.New("archive is password protected")
	ErrCorrupt   = errors.New("archive is corrupt")
)

// ToolError carries the diagnostics of an extraction tool failure that is
// neither a password nor a corruption problem.
type ToolError struct {
	Tool     string
	ExitCode int
	Lines    []string
}

func (e *ToolError) Error() string {
	if len(e.Lines) == 0 {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, strings.Join(e.Lines, "; "))
}

// ProgressFunc receives extraction progress as done out of total units.
type ProgressFunc func(done, total int, current string)

type Extractor interface {
	Extract(ctx context.Context, guard *procexec.Guard, source *archive.Source, dest string, onProgress ProgressFunc) error
}

type Options struct {
	Runner       *procexec.Runner
	SevenZipPath string
	UnrarPath    string
}

// For returns the extraction strategy for the codec family of format.
func For(format archive.Format, options Options) Extractor {
	runner := options.Runner
	if runner == nil {
		runner = procexec.NewRunner()
	}
	if format.Family() == archive.FamilyRar {
		return &Unrar{
			Path:   defaultString(options.UnrarPath, "unrar"),
			Runner: runner,
		}
	}
	return &SevenZip{
		Path:   defaultString(options.SevenZipPath, "7z"),
		Runner: runner,
	}
}

func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}

// diagnostics watches tool output for well known failure phrases.
type diagnostics struct {
	encryptedPhrases []string
	corruptPhrases   []string
	encrypted        bool
	corrupt          bool
	lines            []string
}

func (d *diagnostics) observe(line string) {
	lower := strings.ToLower(line)
	matched := false
	for _, phrase := range d.encryptedPhrases {
		if strings.Contains(lower, phrase) {
			d.encrypted = true
			matched = true
		}
	}
	for _, phrase := range d.corruptPhrases {
		if strings.Contains(lower, phrase) {
			d.corrupt = true
			matched = true
		}
	}
	if matched && len(d.lines) < procexec.TailLines {
		d.lines = append(d.lines, line)
	}
}

func (d *diagnostics) err(tool string, result *procexec.Result) error {
	switch {
	case d.encrypted:
		return withLines(ErrEncrypted, d.lines)
	case d.corrupt:
		return withLines(ErrCorrupt, d.lines)
	default:
		return &ToolError{
			Tool:     tool,
			ExitCode: result.ExitCode,
			Lines:    result.Tail,
		}
	}
}

func withLines(err error, lines []string) error {
	if len(lines) == 0 {
		return err
	}
	return fmt.Errorf("%w: %s", err, strings.Join(lines, "; "))
}

// lines splits streamed output into lines. Carriage returns and backspaces,
// used by the tools to redraw progress, end a line as well.
type lines struct {
	partial [2]string
}

func (l *lines) feed(stream procexec.Stream, chunk string, emit func(line string)) {
	s := l.partial[stream] + chunk
	for {
		i := strings.IndexAny(s, "\r\n\b")
		if i == -1 {
			break
		}
		if line := strings.TrimSpace(s[:i]); line != "" {
			emit(line)
		}
		s = s[i+1:]
	}
	l.partial[stream] = s
}

func (l *lines) flush(emit func(line string)) {
	for i, s := range l.partial {
		if line := strings.TrimSpace(s); line != "" {
			emit(line)
		}
		l.partial[i] = ""
	}
}
