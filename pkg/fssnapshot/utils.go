package fssnapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// "C", "C:", `C:\`, "c:/windows" => "C"
func driveLetterFromVolume(volume string) (string, error) {
	if volume == "" {
		return "", fmt.Errorf("%w: empty volume", ErrSnapshotCreationFailed)
	}

	letter := strings.ToUpper(volume[0:1])
	if letter[0] < 'A' || letter[0] > 'Z' {
		return "", fmt.Errorf("%w: not a drive letter: %s", ErrSnapshotCreationFailed, volume)
	}

	if rest := volume[1:]; rest != "" && !strings.HasPrefix(rest, ":") {
		return "", fmt.Errorf("%w: not a drive letter: %s", ErrSnapshotCreationFailed, volume)
	}

	return letter, nil
}

// NormalizeVolume turns user input into the "C:" form used in Handle.Volume
func NormalizeVolume(volume string) (string, error) {
	letter, err := driveLetterFromVolume(volume)
	if err != nil {
		return "", err
	}

	return letter + ":", nil
}

// LeakHint tells the operator how to reclaim a snapshot that we failed to delete
func LeakHint(handle Handle) string {
	return fmt.Sprintf(
		"snapshot %s on %s was not deleted. list with `vssadmin list shadows /For=%s\\` and remove with `vssadmin delete shadows /Shadow=%s`",
		handle.ID,
		handle.Volume,
		handle.Volume,
		handle.ID)
}

// JoinUnderRoot joins a slash-separated relative path under a (snapshot device) root.
// device paths look like `\\?\GLOBALROOT\Device\HarddiskVolumeShadowCopy2` and
// filepath.Join() would Clean() the "\\?\" prefix away, so we concatenate instead.
func JoinUnderRoot(root string, relativePath string) string {
	return strings.TrimRight(root, `\/`) + string(os.PathSeparator) + filepath.FromSlash(relativePath)
}
