package installer

import (
	"errors"
	"fmt"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	"strings"
	"sync/atomic"
)

var (
	ErrBusy           = errors.New("an installation is already running")
	ErrNoPackageFound = errors.New("no installable package found")
	ErrCancelled      = procexec.ErrCancelled
)

type Mode int

const (
	ModePackageOnly Mode = iota + 1
	ModePackageAndAssets
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "package", "package-only", "apk":
		return ModePackageOnly, nil
	case "assets", "package-and-assets", "obb", "":
		return ModePackageAndAssets, nil
	default:
		return 0, fmt.Errorf("unknown installation mode %q", s)
	}
}

func (mode Mode) String() string {
	if mode == ModePackageOnly {
		return "package"
	}
	return "assets"
}

type Step int

const (
	StepInitializing Step = iota + 1
	StepExtracting
	StepInstallingPackage
	StepPushingAssets
	StepCompleted
	StepCancelled
	StepFailed
)

var stepNames = map[Step]string{
	StepInitializing:      "Initializing",
	StepExtracting:        "Extracting",
	StepInstallingPackage: "InstallingPackage",
	StepPushingAssets:     "PushingAssets",
	StepCompleted:         "Completed",
	StepCancelled:         "Cancelled",
	StepFailed:            "Failed",
}

func (step Step) String() string {
	name, ok := stepNames[step]
	if !ok {
		return fmt.Sprintf("Step(%d)", int(step))
	}
	return name
}

func (step Step) Terminal() bool {
	return step == StepCompleted || step == StepCancelled || step == StepFailed
}

// Event is a progress notification. The last event of a run is terminal;
// LastStep then names the step the run was in when it ended.
type Event struct {
	Step     Step
	LastStep Step
	Percent  int
	Detail   string
	Err      error
}

func (event Event) String() string {
	return fmt.Sprintf("[%s %3d%%] %s", event.Step, event.Percent, event.Detail)
}

type Request struct {
	Source   *archive.Source
	Mode     Mode
	DeviceID string
}

// Run is the state of one installation request.
type Run struct {
	ID      string
	Request Request
	WorkDir string

	guard   *procexec.Guard
	step    atomic.Int32
	percent atomic.Int32
	stream  *stream
}

func (run *Run) Step() Step {
	return Step(run.step.Load())
}

func (run *Run) checkpoint() error {
	if run.guard.Cancelled() {
		return ErrCancelled
	}
	return nil
}

func (run *Run) advance(step Step, detail string) {
	run.step.Store(int32(step))
	run.percent.Store(0)
	if run.guard.Cancelled() {
		return
	}
	run.stream.push(Event{Step: step, Detail: detail}, false)
}

// emit reports progress within the current step. It never blocks the engine
// and stays silent once the run is cancelled.
func (run *Run) emit(step Step, percent int, detail string) {
	if run.guard.Cancelled() {
		return
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	run.percent.Store(int32(percent))
	run.stream.push(Event{Step: step, Percent: percent, Detail: detail}, true)
}

func (run *Run) terminal(err error, completedDetail string) Event {
	event := Event{
		LastStep: run.Step(),
		Percent:  int(run.percent.Load()),
	}
	switch {
	case err == nil:
		event.Step = StepCompleted
		event.Percent = 100
		event.Detail = completedDetail
	case errors.Is(err, ErrCancelled) || run.guard.Cancelled():
		event.Step = StepCancelled
		event.Detail = "Installation cancelled"
		event.Err = ErrCancelled
	default:
		event.Step = StepFailed
		event.Detail = err.Error()
		event.Err = err
	}
	return event
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
