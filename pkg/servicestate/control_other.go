//go:build !windows

package servicestate

import (
	"context"
)

func PlatformControl() Control {
	return unsupportedControl{}
}

type unsupportedControl struct{}

func (unsupportedControl) IsRunning(context.Context, string) (bool, error) {
	return false, ErrUnsupportedPlatform
}

func (unsupportedControl) Start(context.Context, string) error {
	return ErrUnsupportedPlatform
}

func (unsupportedControl) Stop(context.Context, string) error {
	return ErrUnsupportedPlatform
}
