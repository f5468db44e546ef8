package extract

import (
	"context"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	"os"
	"regexp"
	"strings"
)

// Unrar extracts rar archives with the unrar tool, which reports one line per
// extracted file. Progress counts relevant files against a pre-counted total.
type Unrar struct {
	Path   string
	Runner *procexec.Runner
	// Count returns the number of relevant entries, archive.CountRelevant by default.
	Count func(path string, format archive.Format) (int, error)
}

const (
	unrarExitCRC      = 3
	unrarExitPassword = 11
)

var trailingPercents = regexp.MustCompile(`(\s+\d{1,3}%)+$`)

// unrarLine parses "Extracting  obb/com.x/main.obb     OK" into the entry name.
func unrarLine(line string) (string, bool) {
	expecter := procexec.NewExpecter(line)
	if !expecter.ExpectString("Extracting") || !expecter.SkipSpaces() {
		return "", false
	}
	if expecter.PeekString("from ") {
		return "", false
	}
	rest := strings.TrimSpace(expecter.Rest())
	if !strings.HasSuffix(rest, "OK") {
		return "", false
	}
	name := strings.TrimSpace(strings.TrimSuffix(rest, "OK"))
	name = strings.TrimSpace(trailingPercents.ReplaceAllString(name, ""))
	if name == "" {
		return "", false
	}
	return name, true
}

func newUnrarDiagnostics() *diagnostics {
	return &diagnostics{
		encryptedPhrases: []string{
			"incorrect password",
			"password is incorrect",
			"wrong password",
			"enter password",
			"encrypted file",
		},
		corruptPhrases: []string{
			"is not rar archive",
			"corrupt header",
			"checksum error",
			"unexpected end of archive",
			"bad archive",
			"is corrupt",
		},
	}
}

func (unrar *Unrar) Extract(ctx context.Context, guard *procexec.Guard, source *archive.Source, dest string, onProgress ProgressFunc) error {
	count := unrar.Count
	if count == nil {
		count = archive.CountRelevant
	}
	total, err := count(source.Path, source.Format)
	if err != nil {
		return err
	}

	diag := newUnrarDiagnostics()
	var split lines
	done := 0
	handle := func(line string) {
		name, ok := unrarLine(line)
		if !ok {
			diag.observe(line)
			return
		}
		if !archive.Relevant(name) || done >= total {
			return
		}
		done++
		if onProgress != nil {
			onProgress(done, total, name)
		}
	}

	// -p- never asks for a password, -idp and -idc keep percentages and the
	// banner out of the output.
	args := []string{"x", "-o+", "-p-", "-y", "-idp", "-idc", source.Path, dest + string(os.PathSeparator)}
	result, err := unrar.Runner.Run(ctx, guard, procexec.Invocation{
		Name: unrar.Path,
		Args: args,
		OnChunk: func(stream procexec.Stream, chunk string) {
			split.feed(stream, chunk, handle)
		},
		Omit: func(line string) bool {
			_, ok := unrarLine(line)
			return ok
		},
	})
	split.flush(handle)
	if err != nil {
		return err
	}

	switch result.ExitCode {
	case 0:
		return nil
	case unrarExitPassword:
		diag.encrypted = true
	case unrarExitCRC:
		diag.corrupt = true
	}
	return diag.err("unrar", result)
}
