package fssnapshot

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/function61/gokit/logex"
)

// I wrote an overview of this process @ https://github.com/restic/restic/issues/340#issuecomment-442446540
// thanks for pointers: https://github.com/restic/restic/issues/340#issuecomment-307636386

// executes a command, returning its combined stdout+stderr
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	//nolint:gosec // args are built by us, not by user input
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// snapshots via the Volume Shadow Copy Service. the provider service itself (VSS) must
// be running, see package servicestate.
func VssProvider(logger *log.Logger, run Runner) Provider {
	if run == nil {
		run = ExecRunner
	}

	return &vssProvider{
		run: run,
		log: logex.Levels(logex.NonNil(logger)),
	}
}

type vssProvider struct {
	run Runner
	log *logex.Leveled
}

func (v *vssProvider) Create(ctx context.Context, volume string) (Handle, error) {
	driveLetter, err := driveLetterFromVolume(volume)
	if err != nil {
		return Handle{}, err
	}

	// Microsoft disables creating snapshots from vssadmin on non-server OSs, therefore we
	// must bypass the restriction by using wmic instead. https://superuser.com/a/1125605/284803
	// "ClientAccessible" context makes the snapshot readable by us without a driver.
	createOutput, execErr := v.run(
		ctx,
		"wmic",
		"shadowcopy",
		"call",
		"create",
		fmt.Sprintf(`Context="ClientAccessible",Volume="%s:\"`, driveLetter))

	returnCode, hasReturnCode := findReturnValueFromCreateOutput(string(createOutput))
	if hasReturnCode && returnCode != 0 {
		return Handle{}, &CreationFailedError{ReturnCode: returnCode}
	}

	if execErr != nil {
		return Handle{}, fmt.Errorf(
			"%w: wmic: %v, output: %s",
			ErrSnapshotCreationFailed,
			execErr,
			createOutput)
	}

	snapshotID := findSnapshotIDFromCreateOutput(string(createOutput))
	if snapshotID == "" {
		return Handle{}, fmt.Errorf(
			"%w: unable to find snapshot ID from create output: %s",
			ErrSnapshotCreationFailed,
			createOutput)
	}

	v.log.Debug.Printf("created snapshot %s of %s:", snapshotID, driveLetter)

	return Handle{
		ID:     snapshotID,
		Volume: driveLetter + ":",
	}, nil
}

func (v *vssProvider) ResolveDevicePath(ctx context.Context, handle Handle) (string, error) {
	detailsOutput, err := v.run(
		ctx,
		"vssadmin",
		"list",
		"shadows",
		"/Shadow="+handle.ID)

	// vssadmin exits non-zero when the query matches nothing, so check the output first
	if strings.Contains(string(detailsOutput), "No items found") {
		return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, handle.ID)
	}

	if err != nil {
		return "", fmt.Errorf(
			"unable to list snapshot details: %v, output: %s",
			err,
			detailsOutput)
	}

	deviceObjectPath := findSnapshotDeviceFromDetailsOutput(string(detailsOutput))
	if deviceObjectPath == "" {
		return "", fmt.Errorf(
			"%w: no device for %s in list output",
			ErrSnapshotNotFound,
			handle.ID)
	}

	return deviceObjectPath, nil
}

func (v *vssProvider) Delete(ctx context.Context, handle Handle) error {
	removeOutput, err := v.run(
		ctx,
		"vssadmin",
		"delete",
		"shadows",
		"/Quiet",
		"/Shadow="+handle.ID)
	if err != nil {
		return fmt.Errorf(
			"unable to remove snapshot %s: %v, output: %s",
			handle.ID,
			err,
			removeOutput)
	}

	return nil
}

var findSnapshotDeviceFromDetailsOutputRe = regexp.MustCompile(`Shadow Copy Volume: (\S+)`)

func findSnapshotDeviceFromDetailsOutput(output string) string {
	match := findSnapshotDeviceFromDetailsOutputRe.FindStringSubmatch(output)
	if match == nil {
		return ""
	}

	return match[1]
}

var findSnapshotIDFromCreateOutputRe = regexp.MustCompile(`ShadowID = "([^ "]+)"`)

func findSnapshotIDFromCreateOutput(output string) string {
	match := findSnapshotIDFromCreateOutputRe.FindStringSubmatch(output)
	if match == nil {
		return ""
	}

	return match[1]
}

var findReturnValueFromCreateOutputRe = regexp.MustCompile(`ReturnValue = (\d+);`)

func findReturnValueFromCreateOutput(output string) (int, bool) {
	match := findReturnValueFromCreateOutputRe.FindStringSubmatch(output)
	if match == nil {
		return 0, false
	}

	code, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}

	return code, true
}
