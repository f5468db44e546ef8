package extract

import (
	"context"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	log "github.com/sirupsen/logrus"
	"regexp"
	"strconv"
)

// SevenZip extracts zip and 7z archives with the 7-Zip command line tool,
// which reports progress as a percentage of the whole archive.
type SevenZip struct {
	Path   string
	Runner *procexec.Runner
}

var sevenZipProgress = regexp.MustCompile(`^(\d{1,3})%(?:\s+\d+)?(?:\s+-\s+(.+))?$`)

// sevenZipLine parses a progress line such as " 42% 3 - obb/main.obb".
func sevenZipLine(line string) (int, string, bool) {
	m := sevenZipProgress.FindStringSubmatch(line)
	if m == nil {
		return 0, "", false
	}
	percent, err := strconv.Atoi(m[1])
	if err != nil || percent > 100 {
		return 0, "", false
	}
	return percent, m[2], true
}

func newSevenZipDiagnostics() *diagnostics {
	return &diagnostics{
		encryptedPhrases: []string{
			"wrong password",
			"encrypted archive",
			"enter password",
		},
		corruptPhrases: []string{
			"can not open the file as archive",
			"cannot open the file as archive",
			"is not archive",
			"headers error",
			"unexpected end of archive",
			"crc failed",
			"data error",
		},
	}
}

func (sevenZip *SevenZip) Extract(ctx context.Context, guard *procexec.Guard, source *archive.Source, dest string, onProgress ProgressFunc) error {
	diag := newSevenZipDiagnostics()
	var split lines
	last := -1
	handle := func(line string) {
		percent, current, ok := sevenZipLine(line)
		if !ok {
			diag.observe(line)
			return
		}
		if percent != last && onProgress != nil {
			last = percent
			onProgress(percent, 100, current)
		}
	}

	// An empty -p keeps 7z from prompting for a password on encrypted archives.
	args := []string{"x", "-y", "-bsp1", "-bso1", "-bb1", "-p", "-o" + dest, source.Path}
	result, err := sevenZip.Runner.Run(ctx, guard, procexec.Invocation{
		Name: sevenZip.Path,
		Args: args,
		OnChunk: func(stream procexec.Stream, chunk string) {
			split.feed(stream, chunk, handle)
		},
		Omit: func(line string) bool {
			_, _, ok := sevenZipLine(line)
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
	case 1:
		log.WithField("archive", source.Path).Warnf("7z finished with warnings: %v", result.Tail)
		return nil
	default:
		return diag.err("7z", result)
	}
}
