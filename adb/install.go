package adb

import (
	"context"
	"fmt"
	"github.com/ngyewch/sideloader/archive"
	"github.com/ngyewch/sideloader/procexec"
	log "github.com/sirupsen/logrus"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	StagingPath = "/data/local/tmp/sideload.apk"
	AssetsRoot  = "/sdcard/Android/obb"
)

type Phase int

const (
	PhasePackage Phase = iota + 1
	PhaseAssets
)

type ProgressFunc func(phase Phase, percent int, detail string)

// Plan names the local files of one installation and its target device.
type Plan struct {
	PackagePath string
	AssetDir    string
	DeviceID    string
}

// Install pushes the package to the staging path, installs it replacing any
// existing installation and removes the staged copy.
func (bridge *Bridge) Install(ctx context.Context, guard *procexec.Guard, plan *Plan, onProgress ProgressFunc) error {
	name := filepath.Base(plan.PackagePath)

	onProgress(PhasePackage, 0, fmt.Sprintf("Pushing %s", name))
	_, err := bridge.run(ctx, guard, plan.DeviceID, func(percent int) {
		onProgress(PhasePackage, percent, fmt.Sprintf("Pushing %s", name))
	}, "push", plan.PackagePath, StagingPath)
	if err != nil {
		return err
	}

	onProgress(PhasePackage, 100, fmt.Sprintf("Installing %s", name))
	result, err := bridge.run(ctx, guard, plan.DeviceID, nil, "shell", "pm", "install", "-r", StagingPath)
	if err == nil {
		err = installFailure(result)
	}

	_, rmErr := bridge.run(ctx, guard, plan.DeviceID, nil, "shell", "rm", "-f", StagingPath)
	if rmErr != nil {
		log.WithField("path", StagingPath).Warnf("could not remove staged package: %v", rmErr)
	}

	return err
}

// installFailure catches package manager failures reported with exit code 0,
// which older devices do.
func installFailure(result *procexec.Result) error {
	for _, line := range result.Tail {
		if strings.HasPrefix(line, "Failure") || strings.Contains(line, "Failure [") {
			return &ToolFailedError{
				Command:  "shell pm",
				ExitCode: result.ExitCode,
				Lines:    result.Tail,
			}
		}
	}
	return nil
}

// PushAssets copies every file of the asset folder, one at a time in
// directory order, into a folder of the same name below AssetsRoot. Package
// files sharing the folder are left out.
func (bridge *Bridge) PushAssets(ctx context.Context, guard *procexec.Guard, plan *Plan, onProgress ProgressFunc) error {
	entries, err := os.ReadDir(plan.AssetDir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !archive.IsPackage(entry.Name()) {
			files = append(files, entry.Name())
		}
	}

	remoteDir := path.Join(AssetsRoot, filepath.Base(plan.AssetDir))

	_, err = bridge.run(ctx, guard, plan.DeviceID, nil, "shell", "mkdir", "-p", shellQuote(AssetsRoot))
	if err != nil {
		log.WithField("path", AssetsRoot).Warnf("could not create assets root: %v", err)
	}
	_, err = bridge.run(ctx, guard, plan.DeviceID, nil, "shell", "mkdir", "-p", shellQuote(remoteDir))
	if err != nil {
		return err
	}

	total := len(files)
	for i, file := range files {
		index := i
		detail := fmt.Sprintf("Pushing %s (%d/%d)", file, index+1, total)
		onProgress(PhaseAssets, index*100/total, detail)
		_, err = bridge.run(ctx, guard, plan.DeviceID, func(percent int) {
			onProgress(PhaseAssets, (index*100+percent)/total, detail)
		}, "push", filepath.Join(plan.AssetDir, file), remoteDir+"/")
		if err != nil {
			return err
		}
	}
	onProgress(PhaseAssets, 100, fmt.Sprintf("Pushed %d files to %s", total, remoteDir))

	return nil
}
