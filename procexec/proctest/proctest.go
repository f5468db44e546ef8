// Package proctest fakes external tools for tests by re-executing the test
// binary. A test package wires it up with
//
//	func TestHelperProcess(t *testing.T) { proctest.Serve() }
//
// and hands Command(...) to the code under test as its procexec.CommandFunc.
package proctest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"github.com/ngyewch/sideloader/procexec"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const (
	envWant  = "GO_WANT_HELPER_PROCESS"
	envRules = "PROCTEST_RULES"
	envLog   = "PROCTEST_LOG"
)

// Rule scripts the fake tool's reaction to an invocation. The first rule whose
// Match is contained in the space-joined arguments applies.
type Rule struct {
	Match  string
	Stdout string
	Stderr string
	Exit   int
	// Hang keeps the process alive until it is signalled.
	Hang bool
	// Files are created below the destination directory, taken from the
	// argument starting with DestFlag or, when DestFlag is empty, the last one.
	Files    []string
	DestFlag string
}

type Fake struct {
	rules   []Rule
	logPath string
}

func New(t testing.TB, rules ...Rule) *Fake {
	return &Fake{
		rules:   rules,
		logPath: filepath.Join(t.TempDir(), "invocations.log"),
	}
}

func (fake *Fake) Command() procexec.CommandFunc {
	encoded, _ := json.Marshal(fake.rules)
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		helperArgs := append([]string{"-test.run=^TestHelperProcess$", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], helperArgs...)
		cmd.Env = append(os.Environ(),
			envWant+"=1",
			envRules+"="+string(encoded),
			envLog+"="+fake.logPath,
		)
		return cmd
	}
}

// Invocations returns the recorded invocations as "tool arg arg..." lines.
func (fake *Fake) Invocations() []string {
	f, err := os.Open(fake.logPath)
	if err != nil {
		return nil
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Serve runs the fake tool when the process was started by Command and
// returns immediately otherwise.
func Serve() {
	if os.Getenv(envWant) != "1" {
		return
	}

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(2)
	}
	name := filepath.Base(args[0])
	args = args[1:]

	record(name, args)

	var rules []Rule
	_ = json.Unmarshal([]byte(os.Getenv(envRules)), &rules)
	joined := strings.Join(args, " ")
	for _, rule := range rules {
		if !strings.Contains(name+" "+joined, rule.Match) {
			continue
		}
		os.Exit(apply(rule, args))
	}
	os.Exit(0)
}

func record(name string, args []string) {
	path := os.Getenv(envLog)
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	_, _ = fmt.Fprintln(f, strings.TrimSpace(name+" "+strings.Join(args, " ")))
}

func apply(rule Rule, args []string) int {
	if len(rule.Files) > 0 {
		dest := destination(rule.DestFlag, args)
		for _, name := range rule.Files {
			path := filepath.Join(dest, filepath.FromSlash(name))
			if strings.HasSuffix(name, "/") {
				_ = os.MkdirAll(path, 0755)
				continue
			}
			_ = os.MkdirAll(filepath.Dir(path), 0755)
			_ = os.WriteFile(path, []byte(name), 0644)
		}
	}
	if rule.Stdout != "" {
		_, _ = os.Stdout.WriteString(rule.Stdout)
	}
	if rule.Stderr != "" {
		_, _ = os.Stderr.WriteString(rule.Stderr)
	}
	if rule.Hang {
		time.Sleep(time.Minute)
	}
	return rule.Exit
}

func destination(flag string, args []string) string {
	if flag == "" {
		if len(args) == 0 {
			return "."
		}
		return args[len(args)-1]
	}
	for _, arg := range args {
		if strings.HasPrefix(arg, flag) {
			return strings.TrimPrefix(arg, flag)
		}
	}
	return "."
}
