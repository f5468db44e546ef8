package adb

import (
	"context"
	"fmt"
	"github.com/Masterminds/semver/v3"
	"github.com/ngyewch/sideloader/procexec"
	"strings"
)

type Device struct {
	Serial     string            `json:"serial" yaml:"serial"`
	State      string            `json:"state" yaml:"state"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

func (bridge *Bridge) output(ctx context.Context, args ...string) (string, error) {
	var sb strings.Builder
	result, err := bridge.Runner.Run(ctx, procexec.NewGuard(0), procexec.Invocation{
		Name: bridge.Path,
		Args: args,
		OnChunk: func(stream procexec.Stream, chunk string) {
			if stream == procexec.Stdout {
				sb.WriteString(chunk)
			}
		},
	})
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", &ToolFailedError{
			Command:  commandName(args),
			ExitCode: result.ExitCode,
			Lines:    result.Tail,
		}
	}
	return sb.String(), nil
}

func (bridge *Bridge) Devices(ctx context.Context) ([]Device, error) {
	output, err := bridge.output(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	return parseDevices(output), nil
}

func parseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		device := Device{
			Serial: fields[0],
			State:  fields[1],
		}
		for _, field := range fields[2:] {
			key, value, ok := strings.Cut(field, ":")
			if !ok {
				continue
			}
			if device.Attributes == nil {
				device.Attributes = map[string]string{}
			}
			device.Attributes[key] = value
		}
		devices = append(devices, device)
	}
	return devices
}

func (bridge *Bridge) Version(ctx context.Context) (*semver.Version, error) {
	output, err := bridge.output(ctx, "version")
	if err != nil {
		return nil, err
	}
	return parseVersion(output)
}

func parseVersion(output string) (*semver.Version, error) {
	for _, line := range strings.Split(output, "\n") {
		expecter := procexec.NewExpecter(strings.TrimSpace(line))
		if !expecter.ExpectString("Android Debug Bridge version") || !expecter.SkipSpaces() {
			continue
		}
		fields := strings.Fields(expecter.Rest())
		if len(fields) == 0 {
			break
		}
		return semver.NewVersion(fields[0])
	}
	return nil, fmt.Errorf("could not find adb version in output")
}

// CheckVersion verifies that the installed adb satisfies constraint.
func (bridge *Bridge) CheckVersion(ctx context.Context, constraint string) (*semver.Version, error) {
	version, err := bridge.Version(ctx)
	if err != nil {
		return nil, err
	}
	if constraint == "" {
		return version, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return version, err
	}
	if !c.Check(version) {
		return version, fmt.Errorf("adb %s does not satisfy %s", version, constraint)
	}
	return version, nil
}
