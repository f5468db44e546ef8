package extract

import (
	"context"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	"github.com/ngyewch/sideloader/procexec/proctest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestHelperProcess(t *testing.T) {
	proctest.Serve()
}

type progressEvent struct {
	done    int
	total   int
	current string
}

func collect(events *[]progressEvent) ProgressFunc {
	return func(done, total int, current string) {
		*events = append(*events, progressEvent{done, total, current})
	}
}

func TestSevenZipLine(t *testing.T) {
	tests := []struct {
		line    string
		percent int
		current string
		ok      bool
	}{
		{"42% 3 - obb/com.x/main.obb", 42, "obb/com.x/main.obb", true},
		{"0%", 0, "", true},
		{"100% 12", 100, "", true},
		{"- game.apk", 0, "", false},
		{"Everything is Ok", 0, "", false},
		{"250% 1 - x", 0, "", false},
	}
	for _, tt := range tests {
		percent, current, ok := sevenZipLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.percent, percent, tt.line)
		assert.Equal(t, tt.current, current, tt.line)
	}
}

func TestUnrarLine(t *testing.T) {
	tests := []struct {
		line string
		name string
		ok   bool
	}{
		{"Extracting  game.apk                                      OK", "game.apk", true},
		{"Extracting  obb/com.x/main file.obb   99%  OK", "obb/com.x/main file.obb", true},
		{"Extracting from bundle.rar", "", false},
		{"Creating    obb                                           OK", "", false},
		{"Extracting  broken.obb   ", "", false},
		{"All OK", "", false},
	}
	for _, tt := range tests {
		name, ok := unrarLine(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.name, name, tt.line)
	}
}

func TestLinesSplitsOnRedraws(t *testing.T) {
	var split lines
	var got []string
	emit := func(line string) {
		got = append(got, line)
	}
	split.feed(procexec.Stdout, "  5% 1 - a\b\b\b\b\b\b\b\b", emit)
	split.feed(procexec.Stdout, " 60% 2 - b\r100", emit)
	split.feed(procexec.Stderr, "ERROR: x\n", emit)
	split.feed(procexec.Stdout, "%\n", emit)
	split.flush(emit)
	assert.Equal(t, []string{"5% 1 - a", "60% 2 - b", "ERROR: x", "100%"}, got)
}

func sourceFor(t *testing.T, name string) *archive.Source {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("archive"), 0644))
	source, err := archive.ParseSource(path)
	require.NoError(t, err)
	return source
}

func TestSevenZipExtract(t *testing.T) {
	fake := proctest.New(t, proctest.Rule{
		Match:    "7z x",
		Stdout:   "\n  0%\b\b\b\b 40% 1 - game.apk\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b 40% 1 - game.apk\r100% 2 - obb/com.x/main.obb\nEverything is Ok\n",
		Files:    []string{"game.apk", "obb/com.x/main.obb", "readme.txt"},
		DestFlag: "-o",
	})
	dest := t.TempDir()
	extractor := For(archive.FormatZip, Options{Runner: &procexec.Runner{Command: fake.Command()}})

	var events []progressEvent
	err := extractor.Extract(context.Background(), procexec.NewGuard(0), sourceFor(t, "bundle.zip"), dest, collect(&events))
	require.NoError(t, err)
	assert.Equal(t, []progressEvent{
		{0, 100, ""},
		{40, 100, "game.apk"},
		{100, 100, "obb/com.x/main.obb"},
	}, events)
	assert.FileExists(t, filepath.Join(dest, "obb", "com.x", "main.obb"))
	assert.FileExists(t, filepath.Join(dest, "readme.txt"))
}

func TestSevenZipExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		rule  proctest.Rule
		check func(t *testing.T, err error)
	}{
		{
			name: "warnings are not fatal",
			rule: proctest.Rule{Match: "7z", Stderr: "WARNING: headers\n", Exit: 1},
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "wrong password",
			rule: proctest.Rule{Match: "7z", Stderr: "ERROR: Wrong password : game.apk\n", Exit: 2},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEncrypted)
				assert.Contains(t, err.Error(), "Wrong password")
			},
		},
		{
			name: "not an archive",
			rule: proctest.Rule{Match: "7z", Stderr: "ERROR: bundle.zip\nCan not open the file as archive\n", Exit: 2},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrCorrupt)
			},
		},
		{
			name: "other failure",
			rule: proctest.Rule{Match: "7z", Stderr: "ERROR: No space left on device\n", Exit: 2},
			check: func(t *testing.T, err error) {
				var toolErr *ToolError
				require.ErrorAs(t, err, &toolErr)
				assert.Equal(t, 2, toolErr.ExitCode)
				assert.Equal(t, []string{"ERROR: No space left on device"}, toolErr.Lines)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := proctest.New(t, tt.rule)
			extractor := For(archive.FormatSevenZip, Options{Runner: &procexec.Runner{Command: fake.Command()}})
			err := extractor.Extract(context.Background(), procexec.NewGuard(0), sourceFor(t, "bundle.7z"), t.TempDir(), nil)
			tt.check(t, err)
		})
	}
}

func newUnrar(fake *proctest.Fake, total int) *Unrar {
	return &Unrar{
		Path:   "unrar",
		Runner: &procexec.Runner{Command: fake.Command()},
		Count: func(path string, format archive.Format) (int, error) {
			return total, nil
		},
	}
}

func TestUnrarExtract(t *testing.T) {
	fake := proctest.New(t, proctest.Rule{
		Match: "unrar x",
		Stdout: "Extracting from bundle.rar\n\n" +
			"Creating    obb                                             OK\n" +
			"Extracting  readme.txt                                      OK\n" +
			"Extracting  game.apk                                        OK\n" +
			"Extracting  obb/com.x/main.obb                              OK\n" +
			"All OK\n",
		Files: []string{"readme.txt", "game.apk", "obb/com.x/main.obb"},
	})
	dest := t.TempDir()

	var events []progressEvent
	err := newUnrar(fake, 2).Extract(context.Background(), procexec.NewGuard(0), sourceFor(t, "bundle.rar"), dest, collect(&events))
	require.NoError(t, err)
	assert.Equal(t, []progressEvent{
		{1, 2, "game.apk"},
		{2, 2, "obb/com.x/main.obb"},
	}, events)
	assert.FileExists(t, filepath.Join(dest, "game.apk"))
	require.Len(t, fake.Invocations(), 1)
	assert.Contains(t, fake.Invocations()[0], "-p-")
}

func TestUnrarExitCodes(t *testing.T) {
	tests := []struct {
		name string
		rule proctest.Rule
		want error
	}{
		{"warning exit is fatal", proctest.Rule{Match: "unrar", Stderr: "some warning\n", Exit: 1}, nil},
		{"password exit code", proctest.Rule{Match: "unrar", Exit: 11}, ErrEncrypted},
		{"password phrase", proctest.Rule{Match: "unrar", Stderr: "The specified password is incorrect.\n", Exit: 10}, ErrEncrypted},
		{"crc exit code", proctest.Rule{Match: "unrar", Exit: 3}, ErrCorrupt},
		{"not rar", proctest.Rule{Match: "unrar", Stderr: "bundle.rar is not RAR archive\n", Exit: 10}, ErrCorrupt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := proctest.New(t, tt.rule)
			err := newUnrar(fake, 1).Extract(context.Background(), procexec.NewGuard(0), sourceFor(t, "bundle.rar"), t.TempDir(), nil)
			require.Error(t, err)
			if tt.want == nil {
				var toolErr *ToolError
				require.ErrorAs(t, err, &toolErr)
				assert.Equal(t, 1, toolErr.ExitCode)
				assert.Equal(t, []string{"some warning"}, toolErr.Lines)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExtractCancelled(t *testing.T) {
	fake := proctest.New(t)
	guard := procexec.NewGuard(0)
	guard.Cancel()
	extractor := For(archive.FormatZip, Options{Runner: &procexec.Runner{Command: fake.Command()}})
	err := extractor.Extract(context.Background(), guard, sourceFor(t, "bundle.zip"), t.TempDir(), nil)
	assert.ErrorIs(t, err, procexec.ErrCancelled)
}
