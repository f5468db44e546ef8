package adb

import (
	"context"
	"fmt"
	"github.com/ngyewch/sideloader/procexec"
	"regexp"
	"strconv"
	"strings"
)

// ToolFailedError reports a device-bridge invocation that exited unsuccessfully.
type ToolFailedError struct {
	Command  string
	ExitCode int
	Lines    []string
}

func (e *ToolFailedError) Error() string {
	if len(e.Lines) == 0 {
		return fmt.Sprintf("adb %s failed with exit code %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("adb %s failed with exit code %d: %s", e.Command, e.ExitCode, strings.Join(e.Lines, "; "))
}

// Bridge drives the adb executable.
type Bridge struct {
	Path   string
	Runner *procexec.Runner
}

func New(path string, runner *procexec.Runner) *Bridge {
	if path == "" {
		path = "adb"
	}
	if runner == nil {
		runner = procexec.NewRunner()
	}
	return &Bridge{
		Path:   path,
		Runner: runner,
	}
}

var percentPattern = regexp.MustCompile(`\[\s*(\d{1,3})%\]`)

// ParsePercents returns the transfer percentages ("[ 42%]") found in chunk.
func ParsePercents(chunk string) []int {
	var percents []int
	for _, m := range percentPattern.FindAllStringSubmatch(chunk, -1) {
		percent, err := strconv.Atoi(m[1])
		if err != nil || percent > 100 {
			continue
		}
		percents = append(percents, percent)
	}
	return percents
}

func isProgressLine(line string) bool {
	return percentPattern.MatchString(line)
}

// run invokes adb, targeting deviceID when set. onPercent, when not nil,
// receives every distinct transfer percentage seen on either stream.
func (bridge *Bridge) run(ctx context.Context, guard *procexec.Guard, deviceID string, onPercent func(percent int), args ...string) (*procexec.Result, error) {
	fullArgs := args
	if deviceID != "" {
		fullArgs = append([]string{"-s", deviceID}, args...)
	}

	last := -1
	result, err := bridge.Runner.Run(ctx, guard, procexec.Invocation{
		Name: bridge.Path,
		Args: fullArgs,
		OnChunk: func(stream procexec.Stream, chunk string) {
			if onPercent == nil {
				return
			}
			for _, percent := range ParsePercents(chunk) {
				if percent == last || guard.Cancelled() {
					continue
				}
				last = percent
				onPercent(percent)
			}
		},
		Omit: isProgressLine,
	})
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &ToolFailedError{
			Command:  commandName(args),
			ExitCode: result.ExitCode,
			Lines:    result.Tail,
		}
	}
	return result, nil
}

func commandName(args []string) string {
	if len(args) >= 2 && args[0] == "shell" {
		return "shell " + args[1]
	}
	if len(args) >= 1 {
		return args[0]
	}
	return ""
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
