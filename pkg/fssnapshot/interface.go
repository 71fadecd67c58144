// Point-in-time volume snapshots for reading files that the running OS keeps locked
package fssnapshot

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrSnapshotCreationFailed = errors.New("snapshot creation failed")
	ErrSnapshotNotFound       = errors.New("snapshot not found")
)

// Handle identifies one snapshot. it is owned by whoever called Create() and must be
// passed to Delete() exactly once.
type Handle struct {
	ID     string // opaque provider-specific string (do not use for anything)
	Volume string // normalized, like "C:"
}

// Provider is the OS snapshot API as seen by the extraction lifecycle
type Provider interface {
	Create(ctx context.Context, volume string) (Handle, error)
	// root path into the snapshot's file namespace. valid only while the handle is alive.
	ResolveDevicePath(ctx context.Context, handle Handle) (string, error)
	Delete(ctx context.Context, handle Handle) error
}

// provider returned a non-success code from create
type CreationFailedError struct {
	ReturnCode int
}

func (c *CreationFailedError) Error() string {
	return fmt.Sprintf(
		"%s: return code %d (%s)",
		ErrSnapshotCreationFailed.Error(),
		c.ReturnCode,
		describeCreateReturnCode(c.ReturnCode))
}

func (c *CreationFailedError) Unwrap() error {
	return ErrSnapshotCreationFailed
}

// from Win32_ShadowCopy.Create() documentation
func describeCreateReturnCode(code int) string {
	switch code {
	case 0:
		return "success"
	case 1:
		return "access denied"
	case 2:
		return "invalid argument"
	case 3:
		return "specified volume not found"
	case 4:
		return "specified volume not supported"
	case 5:
		return "unsupported shadow copy context"
	case 6:
		return "insufficient storage"
	case 7:
		return "volume is in use"
	case 8:
		return "maximum number of shadow copies reached"
	case 9:
		return "another shadow copy operation is already in progress"
	case 10:
		return "shadow copy provider vetoed the operation"
	case 11:
		return "shadow copy provider not registered"
	case 12:
		return "shadow copy provider failure"
	default:
		return "unknown error"
	}
}
