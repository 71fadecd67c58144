package fssnapshot

import (
	"context"
)

// you can use NullProvider when the user opts out of snapshotting. the extraction logic
// stays the same (take snapshot, read files, release snapshot), but reads hit the live
// volume, so files locked by the OS will fail to copy.

func NullProvider() Provider {
	return &nullProvider{}
}

type nullProvider struct{}

func (n *nullProvider) Create(_ context.Context, volume string) (Handle, error) {
	driveLetter, err := driveLetterFromVolume(volume)
	if err != nil {
		return Handle{}, err
	}

	return Handle{
		ID:     "No snapshotting was used",
		Volume: driveLetter + ":",
	}, nil
}

func (n *nullProvider) ResolveDevicePath(_ context.Context, handle Handle) (string, error) {
	return handle.Volume + `\`, nil
}

func (n *nullProvider) Delete(context.Context, Handle) error {
	return nil
}
