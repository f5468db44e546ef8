package installer

import (
	"errors"
	"fmt"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const WorkDirPrefix = "sideloader-"

func createWorkDir(base string, now time.Time) (string, error) {
	err := os.MkdirAll(base, 0755)
	if err != nil {
		return "", err
	}
	ms := now.UnixMilli()
	for i := int64(0); i < 1000; i++ {
		dir := filepath.Join(base, WorkDirPrefix+strconv.FormatInt(ms+i, 10))
		err = os.Mkdir(dir, 0700)
		if err == nil {
			return dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("could not allocate a working directory below %s", base)
}

func isWorkDirName(name string) bool {
	if !strings.HasPrefix(name, WorkDirPrefix) {
		return false
	}
	_, err := strconv.ParseInt(strings.TrimPrefix(name, WorkDirPrefix), 10, 64)
	return err == nil
}

func (controller *Controller) tempRoots() []string {
	candidates := append([]string{controller.options.BaseDir, os.TempDir()}, controller.options.TempRoots...)
	seen := map[string]bool{}
	var roots []string
	for _, root := range candidates {
		if root == "" {
			continue
		}
		root = filepath.Clean(root)
		if seen[root] {
			continue
		}
		seen[root] = true
		roots = append(roots, root)
	}
	return roots
}

// Sweep removes working directories left behind by earlier processes once
// they are older than the stale age. The active run's directory is kept.
func (controller *Controller) Sweep() error {
	active := ""
	if run := controller.Active(); run != nil {
		active = filepath.Clean(run.WorkDir)
	}
	now := controller.now()

	var result *multierror.Error
	for _, root := range controller.tempRoots() {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				result = multierror.Append(result, err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() || !isWorkDirName(entry.Name()) {
				continue
			}
			path := filepath.Join(root, entry.Name())
			if path == active {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			age := now.Sub(info.ModTime())
			if age < controller.options.StaleAge {
				continue
			}
			err = controller.removeAll(path)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("could not remove stale working directory %s: %w", path, err))
				continue
			}
			log.WithFields(log.Fields{
				"path": path,
				"age":  age.Round(time.Second),
			}).Info("removed stale working directory")
		}
	}
	return result.ErrorOrNil()
}

// cleanup removes the run's working directory. A failure is logged and
// retried once after the configured delay.
func (controller *Controller) cleanup(run *Run) {
	err := controller.removeAll(run.WorkDir)
	if err == nil {
		return
	}
	logger := log.WithFields(log.Fields{
		"run":  run.ID,
		"path": run.WorkDir,
	})
	logger.Warnf("CleanupFailed: %v, retrying in %s", err, controller.options.CleanupRetryDelay)
	time.AfterFunc(controller.options.CleanupRetryDelay, func() {
		err := controller.removeAll(run.WorkDir)
		if err != nil {
			logger.Errorf("CleanupFailed: %v", err)
		}
	})
}
