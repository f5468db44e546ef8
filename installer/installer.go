package installer

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"github.com/ngyewch/sideloader/adb"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/extract"
	"github.com/ngyewch/sideloader/procexec"
	log "github.com/sirupsen/logrus"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Options struct {
	BaseDir           string
	Bridge            *adb.Bridge
	Extract           extract.Options
	StaleAge          time.Duration
	SweepInterval     time.Duration
	CleanupRetryDelay time.Duration
	KillGrace         time.Duration
	TempRoots         []string
}

func DefaultOptions() Options {
	return Options{
		BaseDir:           os.TempDir(),
		StaleAge:          24 * time.Hour,
		SweepInterval:     time.Hour,
		CleanupRetryDelay: 2 * time.Second,
		KillGrace:         3 * time.Second,
	}
}

// Controller runs at most one installation at a time and owns its working
// directory from creation to removal.
type Controller struct {
	options   Options
	mutex     sync.Mutex
	run       *Run
	removeAll func(path string) error
	now       func() time.Time
}

func New(options Options) *Controller {
	defaults := DefaultOptions()
	if options.BaseDir == "" {
		options.BaseDir = defaults.BaseDir
	}
	if options.Bridge == nil {
		options.Bridge = adb.New("", options.Extract.Runner)
	}
	if options.StaleAge <= 0 {
		options.StaleAge = defaults.StaleAge
	}
	if options.SweepInterval <= 0 {
		options.SweepInterval = defaults.SweepInterval
	}
	if options.CleanupRetryDelay <= 0 {
		options.CleanupRetryDelay = defaults.CleanupRetryDelay
	}
	if options.KillGrace <= 0 {
		options.KillGrace = defaults.KillGrace
	}
	return &Controller{
		options:   options,
		removeAll: os.RemoveAll,
		now:       time.Now,
	}
}

// Scan classifies the bundle at path without extracting it.
func (controller *Controller) Scan(path string) (*archive.ScanResult, error) {
	source, err := archive.ParseSource(path)
	if err != nil {
		return nil, err
	}
	return archive.Scan(source)
}

// Active returns the running installation, if any.
func (controller *Controller) Active() *Run {
	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	return controller.run
}

// Start begins an installation and returns its event stream. The stream
// ends with exactly one terminal event and is then closed. A consumer that
// falls behind misses intermediate percentages, never step changes.
func (controller *Controller) Start(ctx context.Context, request Request) (<-chan Event, error) {
	if request.Source == nil {
		return nil, fmt.Errorf("source not specified")
	}
	if request.Mode == 0 {
		request.Mode = ModePackageAndAssets
	}

	controller.mutex.Lock()
	defer controller.mutex.Unlock()
	if controller.run != nil {
		return nil, ErrBusy
	}

	workDir, err := createWorkDir(controller.options.BaseDir, controller.now())
	if err != nil {
		return nil, fmt.Errorf("could not create working directory: %w", err)
	}

	guard := procexec.NewGuard(controller.options.KillGrace)
	run := &Run{
		ID:      uuid.NewString(),
		Request: request,
		WorkDir: workDir,
		guard:   guard,
		stream:  newStream(guard.Done()),
	}
	controller.run = run

	log.WithFields(log.Fields{
		"run":     run.ID,
		"source":  request.Source.String(),
		"mode":    request.Mode.String(),
		"workDir": workDir,
	}).Info("installation started")

	go controller.execute(ctx, run)

	return run.stream.out, nil
}

// Cancel asks the running installation to stop. It reports whether an
// installation was running. Once it returns, the only event still delivered
// is the terminal one.
func (controller *Controller) Cancel() bool {
	run := controller.Active()
	if run == nil {
		return false
	}
	cancelled := run.guard.Cancel()
	run.stream.settle()
	if cancelled {
		log.WithField("run", run.ID).Info("cancellation requested")
		go func() {
			err := controller.removeAll(run.WorkDir)
			if err != nil {
				log.WithField("run", run.ID).Debugf("early working directory removal: %v", err)
			}
		}()
	}
	return true
}

// StartHousekeeping sweeps stale working directories now and then on every
// sweep interval until ctx is done.
func (controller *Controller) StartHousekeeping(ctx context.Context) {
	sweep := func() {
		err := controller.Sweep()
		if err != nil {
			log.Warnf("sweep: %v", err)
		}
	}
	sweep()
	go func() {
		ticker := time.NewTicker(controller.options.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()
}

func (controller *Controller) execute(ctx context.Context, run *Run) {
	completed, err := controller.perform(ctx, run)
	event := run.terminal(err, completed)

	controller.cleanup(run)

	controller.mutex.Lock()
	if controller.run == run {
		controller.run = nil
	}
	controller.mutex.Unlock()

	logger := log.WithFields(log.Fields{
		"run":  run.ID,
		"step": event.LastStep.String(),
	})
	switch event.Step {
	case StepCompleted:
		logger.Info(event.Detail)
	case StepCancelled:
		logger.Warn(event.Detail)
	default:
		logger.Error(event.Detail)
	}

	run.stream.finish(event)
}

func (controller *Controller) perform(ctx context.Context, run *Run) (string, error) {
	request := run.Request
	source := request.Source

	run.advance(StepInitializing, fmt.Sprintf("Preparing %s", filepath.Base(source.Path)))

	root := source.Path
	if source.IsArchive() {
		preview, err := archive.Scan(source)
		if err != nil {
			return "", err
		}
		if !preview.HasPackage {
			return "", ErrNoPackageFound
		}

		if err := run.checkpoint(); err != nil {
			return "", err
		}
		run.advance(StepExtracting, fmt.Sprintf("Extracting %s", filepath.Base(source.Path)))
		extractor := extract.For(source.Format, controller.options.Extract)
		err = extractor.Extract(ctx, run.guard, source, run.WorkDir, func(done, total int, current string) {
			run.emit(StepExtracting, percentOf(done, total), current)
		})
		if err != nil {
			return "", err
		}
		root = run.WorkDir
	}

	if err := run.checkpoint(); err != nil {
		return "", err
	}
	layout, err := archive.Locate(root, source.Kind)
	if err != nil {
		return "", err
	}
	if layout.PackagePath == "" {
		return "", ErrNoPackageFound
	}

	plan := &adb.Plan{
		PackagePath: layout.PackagePath,
		AssetDir:    layout.AssetDir,
		DeviceID:    request.DeviceID,
	}
	bridge := controller.options.Bridge
	forward := func(step Step) adb.ProgressFunc {
		return func(phase adb.Phase, percent int, detail string) {
			run.emit(step, percent, detail)
		}
	}

	if err := run.checkpoint(); err != nil {
		return "", err
	}
	run.advance(StepInstallingPackage, fmt.Sprintf("Installing %s", filepath.Base(plan.PackagePath)))
	err = bridge.Install(ctx, run.guard, plan, forward(StepInstallingPackage))
	if err != nil {
		return "", err
	}
	completed := fmt.Sprintf("Installed %s", filepath.Base(plan.PackagePath))

	if request.Mode != ModePackageAndAssets {
		return completed, run.checkpoint()
	}
	if plan.AssetDir == "" {
		log.WithField("run", run.ID).Info("no asset folder found, skipping assets")
		return completed, run.checkpoint()
	}

	if err := run.checkpoint(); err != nil {
		return "", err
	}
	run.advance(StepPushingAssets, fmt.Sprintf("Pushing assets from %s", filepath.Base(plan.AssetDir)))
	err = bridge.PushAssets(ctx, run.guard, plan, forward(StepPushingAssets))
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s with assets %s", completed, filepath.Base(plan.AssetDir)), run.checkpoint()
}
